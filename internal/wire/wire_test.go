package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilities(t *testing.T) {
	caps := ParseCapabilities("largefiles=serve batch  hash=sha1")
	assert.True(t, caps.ServesLargefiles())
	assert.True(t, caps.Has(CapBatch))
	assert.Equal(t, HashSHA1, caps.Get(CapHash))
	assert.False(t, caps.Has("unbundle"))
	assert.Equal(t, "batch hash=sha1 largefiles=serve", caps.String())

	assert.False(t, ParseCapabilities("batch").ServesLargefiles())
	assert.False(t, ParseCapabilities("largefiles").ServesLargefiles())
	assert.Empty(t, ParseCapabilities(""))
}

func TestEscape(t *testing.T) {
	for _, s := range []string{"", "plain", "a:b", "a,b;c=d", "::;;", ":c"} {
		got, err := UnescapeArg(EscapeArg(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, "a:cb:oc:sd:ee", EscapeArg("a:b,c;d=e"))

	_, err := UnescapeArg("bad:")
	require.Error(t, err)
	_, err = UnescapeArg("bad:x")
	require.Error(t, err)
}

func TestBatchRequest(t *testing.T) {
	calls := []Call{
		{Cmd: CmdStat, Args: []Arg{{Name: ArgHash, Value: "aa"}}},
		{Cmd: "weird", Args: []Arg{{Name: "one", Value: "x,y;z=w:v"}, {Name: "two", Value: ""}}},
		{Cmd: CmdCapabilities},
	}
	enc := EncodeBatch(calls)
	assert.Equal(t, "statlfile sha=aa;weird one=x:oy:sz:ew:cv,two=;capabilities ", enc)

	dec, err := DecodeBatch(enc)
	require.NoError(t, err)
	require.Len(t, dec, 3)
	assert.Equal(t, calls[0], dec[0])
	assert.Equal(t, calls[1], dec[1])
	assert.Equal(t, CmdCapabilities, dec[2].Cmd)
	assert.Empty(t, dec[2].Args)

	_, err = DecodeBatch("statlfile shaaa")
	require.Error(t, err)
	_, err = DecodeBatch(";")
	require.Error(t, err)
}

func TestBatchResults(t *testing.T) {
	results := [][]byte{[]byte("0\n"), []byte("a;b"), []byte("")}
	enc := EncodeBatchResults(results)

	dec, err := DecodeBatchResults(enc, 3)
	require.NoError(t, err)
	assert.Equal(t, results, dec)

	_, err = DecodeBatchResults(enc, 2)
	require.Error(t, err)

	dec, err = DecodeBatchResults(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestBlobReply(t *testing.T) {
	data := []byte("c1\nwith\nnewlines")
	got, err := DecodeBlob(EncodeBlob(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = DecodeBlob(EncodeBlob(nil))
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{"", "12", "5\nabc", "2\nabc", "x\nab", "-1\n"} {
		_, err := DecodeBlob([]byte(bad))
		require.ErrorIs(t, err, ErrTruncated, bad)
	}
}

func TestPutReply(t *testing.T) {
	ok, msg, err := DecodePutReply(EncodePutReply(""))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, msg)

	ok, msg, err = DecodePutReply(EncodePutReply("largefile contents do not match hash"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "largefile contents do not match hash", msg)

	_, _, err = DecodePutReply([]byte("7\n"))
	require.Error(t, err)
}

func TestLookup(t *testing.T) {
	args := []Arg{{Name: ArgHash, Value: "aa"}}
	v, ok := Lookup(args, ArgHash)
	assert.True(t, ok)
	assert.Equal(t, "aa", v)
	_, ok = Lookup(args, ArgCmds)
	assert.False(t, ok)
}

func TestCommandError(t *testing.T) {
	err := &CommandError{Cmd: CmdPut, Code: CodeUnsupported, Message: "no largefiles here"}
	assert.Equal(t, "putlfile: no largefiles here", err.Error())
}
