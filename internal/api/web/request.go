package web

import (
	"bytes"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// ResetPath is the form target that clears the alert.
const ResetPath = "/resetar"

// resetToken is matched anywhere in the request, not only on the request
// line, so existing bookmarks and the page form keep working.
//
//nolint:gochecknoglobals // Read-only byte form of the matched token.
var resetToken = []byte("GET " + ResetPath)

// ParseCommand returns CommandReset when the request contains "GET /resetar"
// and CommandNone for anything else, including empty or malformed input.
func ParseCommand(request []byte) alert.Command {
	if bytes.Contains(request, resetToken) {
		return alert.CommandReset
	}

	return alert.CommandNone
}

// RequestLine returns the first line of request without its terminator,
// for logging.
func RequestLine(request []byte) string {
	line, _, _ := bytes.Cut(request, []byte("\n"))

	return string(bytes.TrimRight(line, "\r"))
}
