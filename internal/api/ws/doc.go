// Package ws implements the websocket broadcast fan-out server.
//
// The Broadcaster owns two pieces of state under one lock: the latest
// serialized pose payload and the set of connected clients. A producer-side
// observer overwrites the payload slot on every pose update; an independent
// fixed-period timer pushes the slot's content to all clients.
//
// Load shedding is most-recent-wins: the slot is overwritten, never queued,
// so clients observe an effectively lower refresh rate when the producer
// outpaces the broadcast period, and never a backlog.
//
// Lifecycle: Idle -> Running (Run) -> Stopping -> Stopped (context cancel).
// Per-client send failures remove that client only; other sends in the same
// tick proceed unaffected.
package ws
