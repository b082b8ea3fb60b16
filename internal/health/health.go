// Package health reports whether the bot is connected and its record store
// reachable, and serves that report over HTTP next to the metrics endpoint.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Gateway reports the state of the Discord gateway connection.
type Gateway interface {
	Connected() bool
	Latency() time.Duration
	Guilds() int
}

// Pinger checks that a database is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Status is the body of the /health endpoint.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	// Uptime is in milliseconds.
	Uptime int64  `json:"uptime"`
	Checks Checks `json:"checks"`
}

// Checks holds the individual probes.
type Checks struct {
	Discord  DiscordStatus   `json:"discord"`
	Database *DatabaseStatus `json:"database,omitempty"`
}

// DiscordStatus describes the gateway connection. Ping is the heartbeat
// latency in milliseconds, or -1 when disconnected.
type DiscordStatus struct {
	Connected bool  `json:"connected"`
	Ping      int64 `json:"ping"`
	Guilds    int   `json:"guilds"`
}

// DatabaseStatus describes the database probe. ResponseTime is in milliseconds.
type DatabaseStatus struct {
	Connected    bool   `json:"connected"`
	ResponseTime int64  `json:"responseTime,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Healthy reports whether every probe passed.
func (s Status) Healthy() bool {
	return s.Status == StatusHealthy
}

// Checker runs the probes.
type Checker struct {
	gateway Gateway
	db      Pinger
	timeout time.Duration
	started time.Time
	now     func() time.Time
}

// NewChecker creates a Checker. db may be nil when the bot runs without a
// database, in which case the database probe is left out.
func NewChecker(gateway Gateway, db Pinger) *Checker {
	return &Checker{
		gateway: gateway,
		db:      db,
		timeout: 5 * time.Second,
		started: time.Now(),
		now:     time.Now,
	}
}

// Check runs every probe.
func (c *Checker) Check(ctx context.Context) Status {
	now := c.now()
	status := Status{
		Timestamp: now.UTC(),
		Uptime:    now.Sub(c.started).Milliseconds(),
		Checks: Checks{
			Discord: c.checkDiscord(),
		},
	}

	healthy := status.Checks.Discord.Connected
	if c.db != nil {
		db := c.checkDatabase(ctx)
		status.Checks.Database = &db
		healthy = healthy && db.Connected
	}

	status.Status = StatusUnhealthy
	if healthy {
		status.Status = StatusHealthy
	} else {
		slog.Warn("failed health check",
			"discord_connected", status.Checks.Discord.Connected,
			"database", status.Checks.Database,
		)
	}
	return status
}

// Ready reports whether every probe passes, the database included.
func (c *Checker) Ready(ctx context.Context) bool {
	return c.Check(ctx).Healthy()
}

func (c *Checker) checkDiscord() DiscordStatus {
	if !c.gateway.Connected() {
		return DiscordStatus{Ping: -1}
	}
	return DiscordStatus{
		Connected: true,
		Ping:      c.gateway.Latency().Milliseconds(),
		Guilds:    c.gateway.Guilds(),
	}
}

func (c *Checker) checkDatabase(ctx context.Context) DatabaseStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	if err := c.db.PingContext(ctx); err != nil {
		return DatabaseStatus{Error: err.Error()}
	}
	return DatabaseStatus{
		Connected:    true,
		ResponseTime: c.now().Sub(start).Milliseconds(),
	}
}

// SessionGateway adapts a discordgo session to Gateway.
func SessionGateway(s *discordgo.Session) Gateway {
	return sessionGateway{s}
}

type sessionGateway struct {
	s *discordgo.Session
}

func (g sessionGateway) Connected() bool {
	g.s.RLock()
	defer g.s.RUnlock()
	return g.s.DataReady
}

func (g sessionGateway) Latency() time.Duration {
	return g.s.HeartbeatLatency()
}

func (g sessionGateway) Guilds() int {
	if g.s.State == nil {
		return 0
	}
	g.s.State.RLock()
	defer g.s.State.RUnlock()
	return len(g.s.State.Guilds)
}
