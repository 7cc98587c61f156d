// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Example usage:
//
//	logger := logging.NewDefault()
//	logger.Info("broadcaster started", zap.Float64("hz", 30))
//	logger.Error("send failed", zap.Error(err))
package logging
