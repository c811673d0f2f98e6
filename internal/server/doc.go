// Package server is the protocol core: it wires the transport framer and
// message codec to a fixed tool registry, dispatches requests concurrently,
// and drives the session lifecycle (initialize handshake through shutdown).
//
// Requests are handled on their own goroutines, bounded by a semaphore, so a
// slow index query never delays an independent request. Every request gets
// exactly one response carrying its original identifier; completion order is
// unrelated to arrival order. Notifications are never answered.
package server
