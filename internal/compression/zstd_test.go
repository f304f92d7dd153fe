package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c, err := NewCompressor(2, true)
	require.NoError(t, err)
	defer c.Close()

	data := bytes.Repeat([]byte("largefile "), 1000)
	compressed := c.Compress(data)
	assert.Less(t, len(compressed), len(data))
	assert.True(t, bytes.HasPrefix(compressed, magic))

	out, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestSmallPayloadStaysRaw(t *testing.T) {
	c, err := NewCompressor(1, true)
	require.NoError(t, err)
	defer c.Close()

	data := []byte("c1\n")
	assert.Equal(t, data, c.Compress(data))

	out, err := c.Decompress(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDisabledStillDecodes(t *testing.T) {
	enc, err := NewCompressor(3, true)
	require.NoError(t, err)
	defer enc.Close()

	dec, err := NewCompressor(0, false)
	require.NoError(t, err)
	defer dec.Close()
	assert.False(t, dec.Enabled())

	data := bytes.Repeat([]byte{'x'}, 4096)
	assert.Equal(t, data, dec.Compress(data))

	out, err := dec.Decompress(enc.Compress(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestBrokenFrame(t *testing.T) {
	c, err := NewCompressor(2, true)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Decompress(append(append([]byte{}, magic...), 0xff, 0xff, 0xff))
	require.Error(t, err)
}
