// Package controller runs the soil-moisture controller.
//
// A single loop goroutine owns the alert machine. Accepted connections and
// control API calls are queued to it and handled one at a time, start to
// finish, so the machine and the actuators never see concurrent access.
package controller
