// Package middleware provides reusable store.Middleware: structured logging,
// Prometheus instrumentation, filtering and action mapping.
//
// Every constructor is generic over the state type so the result plugs
// straight into store.WithMiddleware.
package middleware
