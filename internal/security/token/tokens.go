package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// MinSecretBytes es el largo mínimo aceptado para un secreto de firma HMAC.
const MinSecretBytes = 32

// GenerateSecret genera nBytes aleatorios en base64url sin padding.
// Usado por sessionctl para crear los secretos de access/refresh.
func GenerateSecret(nBytes int) (string, error) {
	if nBytes < MinSecretBytes {
		return "", fmt.Errorf("secret too short: %d < %d bytes", nBytes, MinSecretBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Fingerprint devuelve sha256(token) en base64url sin padding.
// Es la clave con la que los registros guardan tokens: nunca el string crudo.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
