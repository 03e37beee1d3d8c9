// Package observability builds the process logger and the prometheus
// collectors used by the authentication and authorization path.
package observability
