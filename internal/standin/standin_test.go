package standin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const c1Hash = "5348681b35c29e1c5d0d5d1c49d779aab3761a95"

func TestEncodeDecode(t *testing.T) {
	p := FromContent([]byte("c1\n"))
	assert.Equal(t, Pointer{Hash: c1Hash, Size: 3}, p)

	b := Encode(p)
	assert.Equal(t, c1Hash+"\n3\n", string(b))

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.True(t, got.Matches([]byte("c1\n")))
	assert.False(t, got.Matches([]byte("c1\n\n")))
}

func TestDecodeRejects(t *testing.T) {
	for name, input := range map[string]string{
		"empty":           "",
		"hash only":       c1Hash + "\n",
		"no newline":      c1Hash + "\n3",
		"extra line":      c1Hash + "\n3\n\n",
		"three lines":     c1Hash + "\n3\nx\n",
		"short hash":      "5348681b\n3\n",
		"upper hash":      "5348681B35C29E1C5D0D5D1C49D779AAB3761A95\n3\n",
		"negative size":   c1Hash + "\n-3\n",
		"plus size":       c1Hash + "\n+3\n",
		"leading zero":    c1Hash + "\n03\n",
		"spaces":          c1Hash + " \n3\n",
		"crlf":            c1Hash + "\r\n3\r\n",
		"size overflow":   c1Hash + "\n99999999999999999999\n",
		"raw content":     "c1\n",
		"empty size line": c1Hash + "\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			require.ErrorIs(t, err, ErrFormat)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.NotEmpty(t, fe.Reason)
		})
	}
}

func TestDecodeZeroSize(t *testing.T) {
	p, err := Decode([]byte("da39a3ee5e6b4b0d3255bfef95601890afd80709\n0\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Size)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, ".hglf/sub/f1", StandinPath("sub/f1"))
	assert.Equal(t, ".hglf/sub/f1", StandinPath(`sub\f1`))

	assert.True(t, IsStandin(".hglf/f1"))
	assert.True(t, IsStandin(".hglf"))
	assert.False(t, IsStandin(".hglfx/f1"))
	assert.False(t, IsStandin("f1"))

	f, ok := SplitStandin(".hglf/sub/f1")
	require.True(t, ok)
	assert.Equal(t, "sub/f1", f)

	_, ok = SplitStandin("sub/f1")
	assert.False(t, ok)
	_, ok = SplitStandin(".hglf/")
	assert.False(t, ok)
}
