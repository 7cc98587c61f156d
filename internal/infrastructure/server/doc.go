// Package server wires the pose pipeline into a runnable service.
//
// Construction assembles, in order:
//   - logger (production or development)
//   - metrics collector
//   - merge engine with the configured smoothing strategy
//   - observable pose store with the broadcaster attached as an observer
//   - payload adapter (NaN policy, rounding)
//   - websocket broadcaster
//   - Gin router with recovery, metrics, CORS, and rate limit middleware
//
// Server lifecycle:
//  1. Load and validate configuration
//  2. New(cfg) builds the pipeline; nothing runs yet
//  3. Run(ctx) starts the broadcast loop, optional producer loop, and HTTP
//     server
//  4. Cancelling ctx shuts everything down top-down: HTTP stops accepting,
//     the producer is joined with a bounded timeout, and the broadcaster
//     closes all clients before Run returns
package server
