package blob

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	assert.Equal(t, "5348681b35c29e1c5d0d5d1c49d779aab3761a95", Hash([]byte("c1\n")))
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Hash(nil))

	b := New([]byte("c1\n"))
	assert.Equal(t, int64(3), b.Size())
	assert.True(t, Matches(b.Hash, b.Data))
	assert.False(t, Matches(b.Hash, []byte("c2\n")))
}

func TestHashReader(t *testing.T) {
	h, n, err := HashReader(strings.NewReader("c1\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, Hash([]byte("c1\n")), h)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("5348681b35c29e1c5d0d5d1c49d779aab3761a95"))
	assert.False(t, Valid("5348681B35C29E1C5D0D5D1C49D779AAB3761A95"))
	assert.False(t, Valid("5348681b"))
	assert.False(t, Valid("../../../../../../../../../../etc/passwd"))
	assert.False(t, Valid(""))

	err := Check("nope")
	require.ErrorIs(t, err, ErrInvalidHash)
	assert.Contains(t, err.Error(), `"nope"`)
}
