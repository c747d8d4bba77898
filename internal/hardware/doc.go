// Package hardware implements the boards the controller can run on.
//
// RaspberryPi samples an MCP3208 over SPI and drives the indicator pins
// through go-rpio. Simulated keeps everything in memory so the controller
// can run on a desktop and in tests.
package hardware
