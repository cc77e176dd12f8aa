// Package broadcast implements the connection registry and message fan-out using the actor pattern.
//
// A single goroutine owns the registry (actor -> connections) and processes register, unregister,
// unicast and broadcast commands in arrival order, so every client observes broadcasts in the same
// order. Per-connection writer goroutines isolate slow or dead clients: a full buffer or failed
// write evicts that connection without affecting delivery to the others.
package broadcast
