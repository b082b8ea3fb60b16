package guilds

import "time"

// Config holds the guilds module configuration.
type Config struct {
	SyncTimeout time.Duration `env:"GUILDS_SYNC_TIMEOUT" envDefault:"30s"`
}
