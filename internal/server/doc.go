// Package server is the HTTP face of ipchat: it upgrades websocket
// connections and hands them to the relay core, and serves the status page,
// stats endpoint, and health check. The relay itself lives in
// internal/relay; this package only adapts transports and renders state.
package server
