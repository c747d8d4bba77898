// Package config defines controller settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds listen addresses for the status page, the control
// API and metrics, the session deadline, the hardware wiring and the
// optional MQTT notifier.
package config
