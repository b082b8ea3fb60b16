package bot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// InteractionHandler handles a Discord interaction and returns a response.
type InteractionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error

// EventHandler handles one gateway event. The event is the discordgo event
// struct for the kind the handler was registered under, e.g. *discordgo.GuildCreate.
type EventHandler func(s *discordgo.Session, event any) error

// TaskHandler runs one occurrence of a scheduled task.
type TaskHandler func(ctx context.Context, s *discordgo.Session) error

// ErrorHandler reacts to an error raised while handling an interaction,
// event or task.
type ErrorHandler func(s *discordgo.Session, err error, ectx ErrorContext) error

// On adapts a typed event function to an EventHandler.
func On[T any](fn func(s *discordgo.Session, event T) error) EventHandler {
	return func(s *discordgo.Session, event any) error {
		e, ok := event.(T)
		if !ok {
			var want T
			return fmt.Errorf("%w: got %T, want %T", ErrEventType, event, want)
		}
		return fn(s, e)
	}
}

// ModuleDependencies provides dependencies that modules may need during initialization.
type ModuleDependencies struct {
	Session *discordgo.Session
	Config  *Config
	// DB is nil when no database is configured.
	DB *sql.DB
	// Emojis is filled with the application emojis once the gateway is ready.
	Emojis *Emojis
}

// Module defines the interface that all bot modules must implement.
type Module interface {
	// Name returns the unique identifier for this module.
	Name() string

	// Init initializes the module with the provided dependencies.
	Init(deps ModuleDependencies) error

	// Bind registers the module's handler implementations in the catalog.
	// Called after Init.
	Bind(c *Catalog)

	// Shutdown gracefully shuts down the module.
	Shutdown() error
}

// ConfigurableModule is an optional interface for modules that need configuration.
// Modules implementing this interface will have LoadConfig called before Init.
type ConfigurableModule interface {
	// LoadConfig loads and validates module-specific configuration.
	// Called before Init() and before Discord connection is established.
	// Should return an error if required configuration is missing or invalid.
	LoadConfig() error
}
