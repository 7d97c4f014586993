// Package server hosts the Fiber HTTP service, the request middleware chain and
// the repository registry that maps Host headers onto configured repositories.
// Handlers for the repository content live in internal/proxy; diagnostics in
// internal/server/routes.
package server
