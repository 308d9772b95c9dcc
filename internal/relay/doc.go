// Package relay implements the connection/session core of the ipchat server:
// session lifecycle tracking, the active-session registry, message validation
// and fan-out, and the read-only status surface consumed by the HTTP layer.
//
// The package is transport-agnostic. Connections reach it as Transport values
// (websocket adapter in internal/server, newline-delimited net.Conn adapter
// here) and every invariant holds regardless of the framing in use.
package relay
