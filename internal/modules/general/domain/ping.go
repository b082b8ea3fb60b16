package domain

import (
	"fmt"
	"time"
)

// PingResult represents the result of a ping operation.
type PingResult struct {
	Message    string
	Latency    time.Duration
	APILatency time.Duration
}

// NewPingResult creates a PingResult from the round-trip latency and the
// gateway heartbeat latency.
func NewPingResult(latency, apiLatency time.Duration) *PingResult {
	return &PingResult{
		Message: fmt.Sprintf("Pong! 🏓\nLatency: %dms\nAPI Latency: %dms",
			latency.Milliseconds(), apiLatency.Milliseconds()),
		Latency:    latency,
		APILatency: apiLatency,
	}
}
