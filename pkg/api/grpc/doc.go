// Package grpc exposes the standard gRPC health service for the host.
// The host service reports SERVING while the host is connected to the
// platform.
package grpc
