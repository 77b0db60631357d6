// Package server is the WebSocket front door: it upgrades connections,
// runs the per-client read/write pumps, and dispatches each JSON command
// through authentication, authorisation, the device action engine and
// persistence, then answers the caller directly and broadcasts the state
// change to everyone else in the house.
package server
