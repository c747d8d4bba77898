// Package web implements the single-page HTTP status surface on raw bytes.
//
// ParseCommand looks at an inbound request for the reset command and Render
// builds the complete HTTP/1.1 response for the current reading and state.
// There is no routing and no header parsing: the page has one form and the
// controller answers every request with the same document.
package web
