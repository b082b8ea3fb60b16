package bot

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`

	// DevGuildIDs are the guilds devOnly commands are deployed to.
	DevGuildIDs []string `env:"DEV_GUILD_IDS" envSeparator:","`

	// UseSmartCommandDeployment diffs commands against the remote registry
	// instead of replacing them in bulk.
	UseSmartCommandDeployment bool `env:"USE_SMART_COMMAND_DEPLOYMENT" envDefault:"true"`

	// Intents lists gateway intent names. Empty means every non-privileged intent.
	Intents []string `env:"DISCORD_INTENTS" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL"`

	HealthCheckEnabled bool   `env:"HEALTH_CHECK_ENABLED" envDefault:"false"`
	HealthCheckAddr    string `env:"HEALTH_CHECK_ADDR" envDefault:":8080"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

var intentNames = map[string]discordgo.Intent{
	"guilds":                      discordgo.IntentGuilds,
	"guildMembers":                discordgo.IntentGuildMembers,
	"guildModeration":             discordgo.IntentGuildModeration,
	"guildEmojis":                 discordgo.IntentGuildEmojis,
	"guildIntegrations":           discordgo.IntentGuildIntegrations,
	"guildWebhooks":               discordgo.IntentGuildWebhooks,
	"guildInvites":                discordgo.IntentGuildInvites,
	"guildVoiceStates":            discordgo.IntentGuildVoiceStates,
	"guildPresences":              discordgo.IntentGuildPresences,
	"guildMessages":               discordgo.IntentGuildMessages,
	"guildMessageReactions":       discordgo.IntentGuildMessageReactions,
	"guildMessageTyping":          discordgo.IntentGuildMessageTyping,
	"directMessages":              discordgo.IntentDirectMessages,
	"directMessageReactions":      discordgo.IntentDirectMessageReactions,
	"directMessageTyping":         discordgo.IntentDirectMessageTyping,
	"messageContent":              discordgo.IntentMessageContent,
	"guildScheduledEvents":        discordgo.IntentGuildScheduledEvents,
	"autoModerationConfiguration": discordgo.IntentAutoModerationConfiguration,
	"autoModerationExecution":     discordgo.IntentAutoModerationExecution,
}

// LoadConfig loads configuration from environment variables.
// Returns an error if required fields are missing or invalid.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	for _, id := range cfg.DevGuildIDs {
		if _, err := snowflake.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid DEV_GUILD_IDS entry %q: %w", id, err)
		}
	}

	if _, err := cfg.GatewayIntents(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GatewayIntents resolves the configured intent names.
func (c *Config) GatewayIntents() (discordgo.Intent, error) {
	if len(c.Intents) == 0 {
		return discordgo.IntentsAllWithoutPrivileged, nil
	}

	var intents discordgo.Intent
	for _, name := range c.Intents {
		intent, ok := intentNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown gateway intent %q", name)
		}
		intents |= intent
	}
	return intents, nil
}
