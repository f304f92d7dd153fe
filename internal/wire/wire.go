// Package wire defines the largefile wire protocol vocabulary shared by the
// remote store client and server: command names, capabilities, the batch
// encoding and reply payloads. Request framing belongs to the transport.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Commands.
const (
	CmdCapabilities = "capabilities"
	CmdStat         = "statlfile"
	CmdBatch        = "batch"
	CmdGet          = "getlfile"
	CmdPut          = "putlfile"
)

// Capability names.
const (
	CapLargefiles = "largefiles"
	CapBatch      = "batch"
	CapHash       = "hash"

	LargefilesServe = "serve"
	HashSHA1        = "sha1"
)

// Argument names.
const (
	ArgHash = "sha"
	ArgCmds = "cmds"
)

// statlfile replies.
const (
	StatPresent = "0"
	StatMissing = "2"
)

// putlfile replies.
const (
	PutOK     = "0"
	PutReject = "1"
)

// Command error codes.
const (
	CodeRejected       = 1
	CodeNotFound       = 2
	CodeUnsupported    = 3
	CodeCorrupt        = 4
	CodeUnknownCommand = 5
	CodeBadRequest     = 6
)

// HeaderCode carries CommandError codes on HTTP replies, which use status
// 422 and the message as body.
const HeaderCode = "X-Largefiles-Code"

// ErrTruncated is returned when a blob reply is shorter or longer than announced.
var ErrTruncated = errors.New("truncated largefile reply")

// Arg is one named command argument. Order is preserved on the wire.
type Arg struct {
	Name  string
	Value string
}

// Lookup finds an argument by name.
func Lookup(args []Arg, name string) (string, bool) {
	for _, a := range args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// CommandError is a failure reported by the remote for one command, as
// opposed to a failure to reach it.
type CommandError struct {
	Cmd     string
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cmd, e.Message)
}

// Capabilities advertised by a peer, name to value ("" for flags).
type Capabilities map[string]string

// ParseCapabilities parses a space separated "name[=value]" list.
func ParseCapabilities(s string) Capabilities {
	caps := Capabilities{}
	for _, field := range strings.Fields(s) {
		name, value, _ := strings.Cut(field, "=")
		caps[name] = value
	}
	return caps
}

func (c Capabilities) Has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c Capabilities) Get(name string) string { return c[name] }

// ServesLargefiles reports whether the peer has a largefile store.
func (c Capabilities) ServesLargefiles() bool {
	return c[CapLargefiles] == LargefilesServe
}

// String renders the capabilities sorted by name.
func (c Capabilities) String() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]string, 0, len(names))
	for _, name := range names {
		if v := c[name]; v != "" {
			fields = append(fields, name+"="+v)
		} else {
			fields = append(fields, name)
		}
	}
	return strings.Join(fields, " ")
}

// EncodeBlob frames a getlfile reply: decimal length, newline, bytes.
func EncodeBlob(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) + 21)
	buf.WriteString(strconv.Itoa(len(data)))
	buf.WriteByte('\n')
	buf.Write(data)
	return buf.Bytes()
}

// DecodeBlob parses a getlfile reply.
func DecodeBlob(reply []byte) ([]byte, error) {
	head, data, ok := bytes.Cut(reply, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("%w: missing length", ErrTruncated)
	}
	n, err := strconv.Atoi(string(head))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad length %q", ErrTruncated, head)
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrTruncated, n, len(data))
	}
	return data, nil
}

// EncodePutReply renders a putlfile reply; an empty message is an ack.
func EncodePutReply(rejection string) []byte {
	if rejection == "" {
		return []byte(PutOK + "\n")
	}
	return []byte(PutReject + "\n" + rejection)
}

// DecodePutReply parses a putlfile reply into an ack flag and rejection message.
func DecodePutReply(reply []byte) (ok bool, rejection string, err error) {
	code, msg, _ := strings.Cut(string(reply), "\n")
	switch strings.TrimSpace(code) {
	case PutOK:
		return true, "", nil
	case PutReject:
		return false, strings.TrimSpace(msg), nil
	default:
		return false, "", fmt.Errorf("unexpected putlfile reply %q", code)
	}
}
