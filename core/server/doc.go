// Package server holds the HTTP server partial configuration.
//
// The actual Fiber application is assembled in cmd/start.go; this package
// only owns the knobs (listen port, API key) so that core/config can compose
// them into the application configuration.
package server
