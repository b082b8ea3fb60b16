package guilds

import (
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/sglre6355/dispatchbot/internal/bot"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/application"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/domain"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/infrastructure"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/presentation"
	"github.com/sglre6355/dispatchbot/internal/storage"
)

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*GuildsModule)(nil)

// GuildsModule keeps a record of the guilds the bot is a member of.
type GuildsModule struct {
	config   *Config
	repo     domain.GuildRepository
	handlers *presentation.GuildHandlers
}

// New creates a GuildsModule.
func New() *GuildsModule {
	return &GuildsModule{}
}

// Name returns the module name.
func (m *GuildsModule) Name() string {
	return "guilds"
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *GuildsModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module. Guilds are stored in Postgres when a
// database is available and in memory otherwise.
func (m *GuildsModule) Init(deps bot.ModuleDependencies) error {
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}

	if deps.DB != nil {
		m.repo = infrastructure.NewPostgresRepository(storage.NewGuildStore(deps.DB))
	} else {
		slog.Warn("guilds module initialized without database, using in-memory store")
		m.repo = infrastructure.NewMemoryRepository()
	}

	m.handlers = presentation.NewGuildHandlers(
		application.NewGuildService(m.repo, m.config.SyncTimeout),
	)
	return nil
}

// Bind registers the module's handlers.
func (m *GuildsModule) Bind(c *bot.Catalog) {
	c.Event("registerGuild", bot.On(m.handlers.HandleGuildCreate))
	c.Event("unregisterGuild", bot.On(m.handlers.HandleGuildDelete))
	c.Event("refreshGuilds", bot.On(m.handlers.HandleReady))
	c.Task("hourlySync", m.handlers.HandleSync)
}

// Shutdown cleans up module resources.
func (m *GuildsModule) Shutdown() error {
	return nil
}
