// Package server runs the HTTP and gRPC transports of the service and shuts
// them down together when the context ends or one of them fails.
package server
