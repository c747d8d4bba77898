// Package common holds helpers shared by several services.
//
// It provides a gRPC client for the controller's control API with call
// timeouts, detection of the operator (hostname/username) sent along with
// every call for the audit log, and the single-instance guard used by the
// server binary.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
