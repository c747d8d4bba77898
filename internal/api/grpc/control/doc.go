// Package control implements the gRPC control API of the controller.
//
// The service is declared by hand on top of protobuf well-known types
// (google.protobuf.Empty in, google.protobuf.Struct out), so no generated
// code is needed on either side. Encode and Decode translate between the
// status struct and the domain Snapshot.
package control
