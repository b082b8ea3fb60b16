package application

import (
	"time"

	"github.com/sglre6355/dispatchbot/internal/modules/general/domain"
)

// PingInteractor handles the ping use case.
type PingInteractor struct{}

// NewPingInteractor creates a new PingInteractor.
func NewPingInteractor() *PingInteractor {
	return &PingInteractor{}
}

// Execute measures the latency between an interaction being created and
// its reply being sent.
func (p *PingInteractor) Execute(createdAt, repliedAt time.Time, apiLatency time.Duration) *domain.PingResult {
	latency := repliedAt.Sub(createdAt)
	if latency < 0 {
		latency = 0
	}
	return domain.NewPingResult(latency, apiLatency)
}
