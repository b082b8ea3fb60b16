package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/domain"
)

// MemoryRepository is an in-memory implementation of GuildRepository.
type MemoryRepository struct {
	mu     sync.RWMutex
	guilds map[snowflake.ID]domain.Guild
	now    func() time.Time
}

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		guilds: make(map[snowflake.ID]domain.Guild),
		now:    time.Now,
	}
}

// Get returns the guild with the given id.
func (r *MemoryRepository) Get(_ context.Context, id snowflake.ID) (domain.Guild, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	guild, ok := r.guilds[id]
	if !ok {
		return domain.Guild{}, domain.ErrGuildNotFound
	}
	return guild, nil
}

// Create registers a guild.
func (r *MemoryRepository) Create(_ context.Context, id snowflake.ID) (domain.Guild, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.guilds[id]; ok {
		return domain.Guild{}, domain.ErrGuildAlreadyRegistered
	}
	now := r.now()
	guild := domain.Guild{ID: id, CreatedAt: now, UpdatedAt: now}
	r.guilds[id] = guild
	return guild, nil
}

// Delete unregisters a guild.
func (r *MemoryRepository) Delete(_ context.Context, id snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.guilds[id]; !ok {
		return domain.ErrGuildNotFound
	}
	delete(r.guilds, id)
	return nil
}

// Sync makes the registered set equal to ids.
func (r *MemoryRepository) Sync(_ context.Context, ids []snowflake.ID) (domain.SyncResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered := make([]snowflake.ID, 0, len(r.guilds))
	for id := range r.guilds {
		registered = append(registered, id)
	}
	plan := domain.PlanSync(registered, ids)
	now := r.now()

	for _, id := range plan.Delete {
		delete(r.guilds, id)
	}
	for _, id := range plan.Keep {
		guild := r.guilds[id]
		guild.UpdatedAt = now
		r.guilds[id] = guild
	}
	for _, id := range plan.Create {
		r.guilds[id] = domain.Guild{ID: id, CreatedAt: now, UpdatedAt: now}
	}

	return domain.SyncResult{
		Created: len(plan.Create),
		Updated: len(plan.Keep),
		Deleted: len(plan.Delete),
	}, nil
}

// Count returns the number of registered guilds (for testing/monitoring).
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.guilds)
}

// Ensure MemoryRepository implements GuildRepository.
var _ domain.GuildRepository = (*MemoryRepository)(nil)
