package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parámetros chicos para que el test sea rápido
var fast = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify(t *testing.T) {
	phc, err := Hash(fast, "correct horse")
	require.NoError(t, err)
	assert.True(t, Verify("correct horse", phc))
	assert.False(t, Verify("correct horsf", phc))
}

func TestHash_Empty(t *testing.T) {
	_, err := Hash(fast, "")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestVerify_Malformed(t *testing.T) {
	for _, phc := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$ZGs",
	} {
		assert.False(t, Verify("x", phc), phc)
	}
}
