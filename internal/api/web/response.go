package web

import (
	"errors"
	"fmt"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

// MaxResponseSize is the largest response the controller will send.
const MaxResponseSize = 1024

const (
	// AlertMessage is shown while the alert is latched.
	AlertMessage = "<p class='info' style='color:red;'>Alerta: Umidade muito baixa!</p>"
	// NormalMessage is shown while moisture is within range.
	NormalMessage = "<p class='info' style='color:green;'>Nível dentro do ideal.</p>"
)

// page is the whole response. The verbs are the moisture with two decimals
// and one of the two status messages.
const page = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: text/html\r\n\r\n" +
	"<!DOCTYPE html><html><head><meta charset='utf-8'><title>AgroSmart</title><style>" +
	"body { font-family: sans-serif; text-align: center; background-color: #e6ffe6; }" +
	"h1 { font-size: 40px; margin-top: 30px; }" +
	".info { font-size: 28px; margin-top: 20px; }" +
	"button { font-size: 24px; padding: 10px 30px; margin-top: 30px; }" +
	"</style></head><body>" +
	"<h1>AgroSmart - Umidade do Solo</h1>" +
	"<p class='info'>Umidade atual: %.2f%%</p>" +
	"%s" +
	"<form action='" + ResetPath + "'><button>Resetar Alerta</button></form>" +
	"</body></html>"

// ErrResponseTooLarge is returned instead of a response that would not fit
// in MaxResponseSize.
var ErrResponseTooLarge = errors.New("response exceeds buffer")

// Render builds the status page response.
func Render(moisture alert.Moisture, state alert.State) ([]byte, error) {
	return render(moisture, state, MaxResponseSize)
}

// render builds the response and rejects it when it exceeds limit bytes.
func render(moisture alert.Moisture, state alert.State, limit int) ([]byte, error) {
	status := NormalMessage
	if state == alert.Latched {
		status = AlertMessage
	}

	response := fmt.Appendf(make([]byte, 0, limit), page, float64(moisture.Clamp()), status)
	if len(response) > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrResponseTooLarge, len(response), limit)
	}

	return response, nil
}
