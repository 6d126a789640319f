package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemStatus represents the complete status response.
type SystemStatus struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeStatus  `json:"runtime"`
	WebSocket     WSStatus       `json:"websocket"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Programs      ProgramsStatus `json:"programs"`
}

// RuntimeStatus contains Go runtime statistics.
type RuntimeStatus struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSStatus contains WebSocket hub statistics.
type WSStatus struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTStatus contains MQTT client statistics.
type MQTTStatus struct {
	Connected bool `json:"connected"`
}

// ProgramsStatus counts registered and running programs.
type ProgramsStatus struct {
	Total   int      `json:"total"`
	Running []string `json:"running"`
}

// handleStatus returns runtime and program statistics.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStatus{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Programs: ProgramsStatus{Running: []string{}},
	}

	if s.hub != nil {
		status.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		status.MQTT.Connected = s.mqtt.IsConnected()
	}

	for _, p := range s.programs.List() {
		status.Programs.Total++
		if p.Running() {
			status.Programs.Running = append(status.Programs.Running, p.ID())
		}
	}

	writeJSON(w, http.StatusOK, status)
}
