/*
Package monitoring provides Prometheus-based metrics collection.

# Overview

This package tracks the pipeline end to end: HTTP requests, merge engine
throughput and gate decisions, observable-store failures, and websocket
broadcast activity.

# Usage

	metrics := monitoring.NewMetrics()

	// Gin middleware for HTTP request metrics
	router.Use(monitoring.Middleware(metrics))

	// Exposition endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

Each Metrics value owns a private registry, so tests and embedded servers can
create collectors freely without duplicate-registration panics.
*/
package monitoring
