// Package api implements the HTTP REST API and WebSocket server for the
// irrigation controller.
//
// This package provides:
//   - REST endpoints to list programs, start and stop them, and read run history
//   - The stop_programs fan-out as POST /api/v1/programs/stop?ignore={id}
//   - WebSocket hub streaming program attribute changes
//   - Prometheus exposition on /api/v1/metrics when a handler is supplied
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API sits beside the MQTT command topics as a second external command
// surface. Both drive the same irrigation.Registry, so a start from the API
// and a start from MQTT are indistinguishable manual runs. Program attribute
// changes reach WebSocket clients through irrigation.HubNotifier.
//
// # Graceful Degradation
//
// The server operates without MQTT or run history: program control still
// works, /status reports MQTT as disconnected and /runs answers 503.
package api
