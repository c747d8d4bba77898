// Package alert implements the latching alert state machine.
//
// The Machine is not safe for concurrent use: it is owned by the controller
// loop, which is the only goroutine that evaluates or resets it.
package alert
