// Package client implements the operator commands of agrosmart-ctl.
//
// Status prints the controller status once, Reset clears the alert and
// Watch polls the status on an interval, logging every change.
package client
