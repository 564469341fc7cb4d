// Package types holds the service and tool descriptors shared by the
// service registry, the providers and the HTTP layer.
package types
