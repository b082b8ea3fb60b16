package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/domain"
)

// GuildService keeps the guild repository in line with the guilds the bot
// is a member of.
type GuildService struct {
	repo    domain.GuildRepository
	timeout time.Duration
}

// NewGuildService creates a new GuildService. Every operation is bounded by timeout.
func NewGuildService(repo domain.GuildRepository, timeout time.Duration) *GuildService {
	return &GuildService{repo: repo, timeout: timeout}
}

// Register records a guild the bot joined. It reports false when the guild
// was already registered.
func (s *GuildService) Register(ctx context.Context, id snowflake.ID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.repo.Get(ctx, id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrGuildNotFound) {
		return false, err
	}

	if _, err := s.repo.Create(ctx, id); err != nil {
		if errors.Is(err, domain.ErrGuildAlreadyRegistered) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Unregister forgets a guild the bot left. It reports false when the guild
// was not registered.
func (s *GuildService) Unregister(ctx context.Context, id snowflake.ID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrGuildNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Sync reconciles the registered guilds with ids.
func (s *GuildService) Sync(ctx context.Context, ids []snowflake.ID) (domain.SyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.repo.Sync(ctx, ids)
	if err != nil {
		return domain.SyncResult{}, err
	}

	slog.Info("synced guilds",
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
	)
	return result, nil
}
