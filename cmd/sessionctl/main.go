package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/sessionguard/internal/identity"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/security/password"
	tokens "github.com/dropDatabas3/sessionguard/internal/security/token"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Herramientas offline para sessiond (secretos, usuarios, tokens)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(secretCmd(), passwordCmd(), userCmd(), tokenCmd())
	return root
}

// secret gen
func secretCmd() *cobra.Command {
	var size int
	gen := &cobra.Command{
		Use:   "gen",
		Short: "Genera un secreto HMAC aleatorio (base64url)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := tokens.GenerateSecret(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	gen.Flags().IntVar(&size, "bytes", 48, fmt.Sprintf("largo en bytes (mínimo %d)", tokens.MinSecretBytes))

	c := &cobra.Command{Use: "secret", Short: "Secretos de firma"}
	c.AddCommand(gen)
	return c
}

// readSecret toma el password de --password o de la primera línea de stdin.
func readSecret(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password vacío (usar --password o stdin)")
	}
	return line, nil
}

// password hash
func passwordCmd() *cobra.Command {
	var plain string
	hash := &cobra.Command{
		Use:   "hash",
		Short: "Hashea un password con argon2id (lee stdin si no se pasa --password)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readSecret(cmd, plain)
			if err != nil {
				return err
			}
			h, err := password.Hash(password.Default, secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	hash.Flags().StringVar(&plain, "password", "", "password en claro (preferir stdin)")

	c := &cobra.Command{Use: "password", Short: "Hashing de passwords"}
	c.AddCommand(hash)
	return c
}

// user add / user disable sobre el archivo YAML del directorio.
func userCmd() *cobra.Command {
	var file string

	load := func() (*identity.MemoryDirectory, error) {
		d, err := identity.LoadFile(file)
		if errors.Is(err, os.ErrNotExist) {
			return identity.NewMemoryDirectory()
		}
		return d, err
	}

	var id, role, plain string
	add := &cobra.Command{
		Use:   "add",
		Short: "Agrega o reemplaza un usuario en el archivo de usuarios",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" {
				return errors.New("--id es requerido")
			}
			secret, err := readSecret(cmd, plain)
			if err != nil {
				return err
			}
			d, err := load()
			if err != nil {
				return err
			}
			h, err := password.Hash(password.Default, secret)
			if err != nil {
				return err
			}
			if err := d.Upsert(identity.User{ID: id, Role: role, PasswordHash: h}); err != nil {
				return err
			}
			if err := d.Save(file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved (%d users)\n", id, d.Len())
			return nil
		},
	}
	add.Flags().StringVar(&id, "id", "", "subject id")
	add.Flags().StringVar(&role, "role", "user", "rol: user|admin")
	add.Flags().StringVar(&plain, "password", "", "password en claro (preferir stdin)")

	c := &cobra.Command{Use: "user", Short: "Usuarios del directorio local"}
	c.PersistentFlags().StringVar(&file, "file", "users.yaml", "archivo de usuarios")
	c.AddCommand(add)
	return c
}

// token inspect: decodifica sin verificar firma.
func tokenCmd() *cobra.Command {
	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Muestra las claims de un token SIN verificar la firma",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := jwtx.Inspect(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			view := map[string]any{
				"kind":    claims.Kind,
				"subject": claims.Subject,
				"jti":     claims.ID,
				"issuer":  claims.Issuer,
			}
			if claims.Role != "" {
				view["role"] = claims.Role
			}
			if claims.ExpiresAt != nil {
				view["expires_at"] = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
				view["expired"] = time.Now().After(claims.ExpiresAt.Time)
			}
			if claims.IssuedAt != nil {
				view["issued_at"] = claims.IssuedAt.Time.UTC().Format(time.RFC3339)
			}
			if m := claims.Meta(); !m.IsZero() {
				view["client"] = m
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}

	c := &cobra.Command{Use: "token", Short: "Inspección de tokens"}
	c.AddCommand(inspect)
	return c
}
