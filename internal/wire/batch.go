package wire

import (
	"fmt"
	"strings"
)

// Call is one command inside a batch.
type Call struct {
	Cmd  string
	Args []Arg
}

var (
	escaper = strings.NewReplacer(
		":", ":c",
		",", ":o",
		";", ":s",
		"=", ":e",
	)
)

// EscapeArg escapes the batch separators in s.
func EscapeArg(s string) string { return escaper.Replace(s) }

// UnescapeArg reverses EscapeArg.
func UnescapeArg(s string) (string, error) {
	if !strings.Contains(s, ":") {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != ':' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		i++
		switch s[i] {
		case 'c':
			b.WriteByte(':')
		case 'o':
			b.WriteByte(',')
		case 's':
			b.WriteByte(';')
		case 'e':
			b.WriteByte('=')
		default:
			return "", fmt.Errorf("unknown escape :%c in %q", s[i], s)
		}
	}
	return b.String(), nil
}

// EncodeBatch renders calls as "cmd name=value,name=value;cmd ...".
func EncodeBatch(calls []Call) string {
	parts := make([]string, 0, len(calls))
	for _, call := range calls {
		args := make([]string, 0, len(call.Args))
		for _, a := range call.Args {
			args = append(args, a.Name+"="+EscapeArg(a.Value))
		}
		parts = append(parts, call.Cmd+" "+strings.Join(args, ","))
	}
	return strings.Join(parts, ";")
}

// DecodeBatch parses the cmds argument of a batch request.
func DecodeBatch(s string) ([]Call, error) {
	if s == "" {
		return nil, nil
	}

	var calls []Call
	for _, part := range strings.Split(s, ";") {
		cmd, rawArgs, _ := strings.Cut(part, " ")
		if cmd == "" {
			return nil, fmt.Errorf("empty command in batch")
		}

		call := Call{Cmd: cmd}
		if rawArgs != "" {
			for _, kv := range strings.Split(rawArgs, ",") {
				name, value, ok := strings.Cut(kv, "=")
				if !ok {
					return nil, fmt.Errorf("malformed argument %q for %s", kv, cmd)
				}
				v, err := UnescapeArg(value)
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, Arg{Name: name, Value: v})
			}
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// EncodeBatchResults escapes and joins per-call results.
func EncodeBatchResults(results [][]byte) []byte {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, EscapeArg(string(r)))
	}
	return []byte(strings.Join(parts, ";"))
}

// DecodeBatchResults splits a batch reply, expecting n results.
func DecodeBatchResults(reply []byte, n int) ([][]byte, error) {
	parts := strings.Split(string(reply), ";")
	if n == 0 && len(reply) == 0 {
		return nil, nil
	}
	if len(parts) != n {
		return nil, fmt.Errorf("batch reply has %d results, expected %d", len(parts), n)
	}

	results := make([][]byte, 0, n)
	for _, p := range parts {
		v, err := UnescapeArg(p)
		if err != nil {
			return nil, err
		}
		results = append(results, []byte(v))
	}
	return results, nil
}
