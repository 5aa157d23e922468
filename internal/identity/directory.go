// Package identity es el almacén de identidades que consulta el login:
// resuelve el rol de un subject y verifica su secreto.
//
// MemoryDirectory es la implementación incluida; se carga de un YAML con
// hashes argon2id. Otros backends solo tienen que cumplir Directory.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/security/password"
	"github.com/dropDatabas3/sessionguard/internal/util/atomicwrite"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound = errors.New("identity: principal not found")
	ErrDisabled = errors.New("identity: principal disabled")
)

// Principal es lo que el núcleo lee de una identidad.
type Principal struct {
	ID   string
	Role jwtx.Role
}

// Directory es el contrato que consume session.
type Directory interface {
	// Lookup devuelve ErrNotFound / ErrDisabled si el subject no puede recibir tokens.
	Lookup(ctx context.Context, subjectID string) (Principal, error)
	// VerifySecret devuelve false (sin error) para subjects desconocidos.
	VerifySecret(ctx context.Context, subjectID, secret string) (bool, error)
}

// User es una entrada del archivo de usuarios.
type User struct {
	ID           string `yaml:"id"`
	Role         string `yaml:"role"`
	PasswordHash string `yaml:"password_hash"`
	Disabled     bool   `yaml:"disabled,omitempty"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// MemoryDirectory guarda los usuarios en memoria. Seguro para uso concurrente.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]User

	dummyOnce sync.Once
	dummy     string
}

// NewMemoryDirectory valida y carga users.
func NewMemoryDirectory(users ...User) (*MemoryDirectory, error) {
	d := &MemoryDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		if err := d.Upsert(u); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// LoadFile lee un archivo YAML de la forma:
//
//	users:
//	  - id: u1
//	    role: admin
//	    password_hash: $argon2id$v=19$...
func LoadFile(path string) (*MemoryDirectory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	d, err := NewMemoryDirectory(f.Users...)
	if err != nil {
		return nil, fmt.Errorf("users file %s: %w", path, err)
	}
	return d, nil
}

// Upsert agrega o reemplaza un usuario.
func (d *MemoryDirectory) Upsert(u User) error {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return errors.New("identity: user id required")
	}
	role, err := jwtx.ParseRole(u.Role)
	if err != nil {
		return fmt.Errorf("user %q: %w", u.ID, err)
	}
	u.Role = string(role)
	if !strings.HasPrefix(u.PasswordHash, "$argon2id$") {
		return fmt.Errorf("user %q: password_hash must be an argon2id PHC string", u.ID)
	}
	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()
	return nil
}

// Save escribe el directorio en path (atómico, 0600), ordenado por id.
func (d *MemoryDirectory) Save(path string) error {
	d.mu.RLock()
	f := usersFile{Users: make([]User, 0, len(d.users))}
	for _, u := range d.users {
		f.Users = append(f.Users, u)
	}
	d.mu.RUnlock()
	sort.Slice(f.Users, func(i, j int) bool { return f.Users[i].ID < f.Users[j].ID })

	b, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return atomicwrite.WriteFile(path, b, 0o600)
}

// Len retorna la cantidad de usuarios.
func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

func (d *MemoryDirectory) get(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

func (d *MemoryDirectory) Lookup(_ context.Context, subjectID string) (Principal, error) {
	u, ok := d.get(subjectID)
	if !ok {
		return Principal{}, ErrNotFound
	}
	if u.Disabled {
		return Principal{}, ErrDisabled
	}
	return Principal{ID: u.ID, Role: jwtx.Role(u.Role)}, nil
}

// dummyHash es un PHC válido contra el que se verifica cuando el subject no
// existe, para que la latencia no delate si la cuenta existe.
func (d *MemoryDirectory) dummyHash() string {
	d.dummyOnce.Do(func() {
		h, err := password.Hash(password.Default, "sessionguard-dummy-secret")
		if err == nil {
			d.dummy = h
		}
	})
	return d.dummy
}

func (d *MemoryDirectory) VerifySecret(_ context.Context, subjectID, secret string) (bool, error) {
	u, ok := d.get(subjectID)
	if !ok || u.Disabled {
		_ = password.Verify(secret, d.dummyHash())
		return false, nil
	}
	return password.Verify(secret, u.PasswordHash), nil
}

var _ Directory = (*MemoryDirectory)(nil)
