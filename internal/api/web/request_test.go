package web

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// TestParseCommand covers the reset token, other paths and garbage input.
func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := map[string]alert.Command{
		"GET /resetar HTTP/1.1\r\nHost: 192.168.0.10\r\n\r\n": alert.CommandReset,
		"GET /resetar? HTTP/1.1\r\n\r\n":                      alert.CommandReset,
		"GET /resetar/now HTTP/1.1\r\n\r\n":                   alert.CommandReset,
		"GET / HTTP/1.1\r\nReferer: GET /resetar\r\n\r\n":     alert.CommandReset,
		"GET / HTTP/1.1\r\nHost: 192.168.0.10\r\n\r\n":        alert.CommandNone,
		"POST /resetar HTTP/1.1\r\n\r\n":                      alert.CommandNone,
		"GET /RESETAR HTTP/1.1\r\n\r\n":                       alert.CommandNone,
		"get /resetar":                                        alert.CommandNone,
		"":                                                    alert.CommandNone,
		"\x00\xff\xfe":                                        alert.CommandNone,
	}

	for request, want := range cases {
		require.Equal(t, want, ParseCommand([]byte(request)), "request %q", request)
	}

	require.Equal(t, alert.CommandNone, ParseCommand(nil))
}

// TestRequestLine extracts the first line for logs.
func TestRequestLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, "GET / HTTP/1.1", RequestLine([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")))
	require.Equal(t, "GET /", RequestLine([]byte("GET /")))
	require.Empty(t, RequestLine(nil))
}
