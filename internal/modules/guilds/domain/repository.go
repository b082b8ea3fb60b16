package domain

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// GuildRepository stores the guilds the bot is a member of.
type GuildRepository interface {
	// Get returns the guild, or ErrGuildNotFound.
	Get(ctx context.Context, id snowflake.ID) (Guild, error)

	// Create registers the guild, or returns ErrGuildAlreadyRegistered.
	Create(ctx context.Context, id snowflake.ID) (Guild, error)

	// Delete unregisters the guild, or returns ErrGuildNotFound.
	Delete(ctx context.Context, id snowflake.ID) error

	// Sync makes the registered set equal to ids.
	Sync(ctx context.Context, ids []snowflake.ID) (SyncResult, error)
}
