// Package cli wires configuration, definitions and the session for the tendril
// command: an interactive console and the HTTP server.
package cli
