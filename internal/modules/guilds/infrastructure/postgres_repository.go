package infrastructure

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/domain"
	"github.com/sglre6355/dispatchbot/internal/storage"
)

// PostgresRepository implements GuildRepository on top of storage.GuildStore.
type PostgresRepository struct {
	store *storage.GuildStore
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(store *storage.GuildStore) *PostgresRepository {
	return &PostgresRepository{store: store}
}

// Get returns the guild with the given id.
func (r *PostgresRepository) Get(ctx context.Context, id snowflake.ID) (domain.Guild, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return domain.Guild{}, translate(err)
	}
	return toGuild(rec), nil
}

// Create registers a guild.
func (r *PostgresRepository) Create(ctx context.Context, id snowflake.ID) (domain.Guild, error) {
	rec, err := r.store.Create(ctx, id)
	if err != nil {
		return domain.Guild{}, translate(err)
	}
	return toGuild(rec), nil
}

// Delete unregisters a guild.
func (r *PostgresRepository) Delete(ctx context.Context, id snowflake.ID) error {
	return translate(r.store.Delete(ctx, id))
}

// Sync makes the registered set equal to ids.
func (r *PostgresRepository) Sync(ctx context.Context, ids []snowflake.ID) (domain.SyncResult, error) {
	counts, err := r.store.Refresh(ctx, domain.UniqueIDs(ids))
	if err != nil {
		return domain.SyncResult{}, err
	}
	return domain.SyncResult{
		Created: counts.Created,
		Updated: counts.Updated,
		Deleted: counts.Deleted,
	}, nil
}

func toGuild(rec storage.GuildRecord) domain.Guild {
	return domain.Guild{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrGuildNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		return domain.ErrGuildAlreadyRegistered
	}
	return err
}

// Ensure PostgresRepository implements GuildRepository.
var _ domain.GuildRepository = (*PostgresRepository)(nil)
