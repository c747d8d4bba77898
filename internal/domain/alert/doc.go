// Package alert contains core domain types for the soil-moisture alert.
//
// It defines Moisture (a calibrated reading), State (Normal or Latched),
// Command (what a request asks for), Indicator (the two actuators bound to
// the state) and the Snapshot/Transition values handed out of the
// controller loop.
package alert
