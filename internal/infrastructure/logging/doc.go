// Package logging provides structured logging for the irrigation controller.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text during development, with service and version fields
// on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	progLogger := logger.Component("irrigation")
//	progLogger.Info("program started", "program_id", id)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
