// Package notify publishes alert transitions to an MQTT broker.
//
// Transitions are queued by the controller loop and published from a
// separate goroutine, so a slow or missing broker never delays a status
// page. Publishes go through a circuit breaker and are dropped while it is
// open.
package notify
