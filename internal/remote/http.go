package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aweris/largefiles/internal/wire"
)

// HTTPTransport sends commands as "?cmd=<name>&<args>" requests. Commands
// with a body are POSTed. A 422 reply is a command error whose message is
// the body.
type HTTPTransport struct {
	base   *url.URL
	client *http.Client
}

func NewHTTPTransport(rawURL string, client *http.Client) (*HTTPTransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote url %q: %w", rawURL, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: u, client: client}, nil
}

func (t *HTTPTransport) String() string { return t.base.Redacted() }

func (t *HTTPTransport) Call(ctx context.Context, cmd string, args ...wire.Arg) ([]byte, error) {
	return t.do(ctx, http.MethodGet, cmd, nil, args)
}

func (t *HTTPTransport) Push(ctx context.Context, cmd string, body []byte, args ...wire.Arg) ([]byte, error) {
	return t.do(ctx, http.MethodPost, cmd, body, args)
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) do(ctx context.Context, method, cmd string, body []byte, args []wire.Arg) ([]byte, error) {
	u := *t.base
	q := u.Query()
	q.Set("cmd", cmd)
	for _, a := range args {
		q.Add(a.Name, a.Value)
	}
	u.RawQuery = q.Encode()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, &TransportError{Remote: t.String(), Op: cmd, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Remote: t.String(), Op: cmd, Err: err}
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Remote: t.String(), Op: cmd, Err: fmt.Errorf("read reply: %w", err)}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return reply, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthorizationError{Remote: t.String(), Err: fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(reply)))}
	case http.StatusUnprocessableEntity:
		code, _ := strconv.Atoi(resp.Header.Get(wire.HeaderCode))
		return nil, &wire.CommandError{Cmd: cmd, Code: code, Message: strings.TrimSpace(string(reply))}
	default:
		return nil, &TransportError{Remote: t.String(), Op: cmd, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
}
