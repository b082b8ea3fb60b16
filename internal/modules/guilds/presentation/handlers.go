package presentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds/application"
)

// GuildHandlers connects gateway events and the sync task to the guild service.
type GuildHandlers struct {
	service *application.GuildService
}

// NewGuildHandlers creates a new GuildHandlers.
func NewGuildHandlers(service *application.GuildService) *GuildHandlers {
	return &GuildHandlers{service: service}
}

// HandleGuildCreate registers a guild the bot joined or that became available.
func (h *GuildHandlers) HandleGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) error {
	id, err := snowflake.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("invalid guild id %q: %w", e.ID, err)
	}

	registered, err := h.service.Register(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to register guild %s: %w", id, err)
	}
	if registered {
		slog.Info("registered guild", "guild_id", id, "name", e.Name)
	} else {
		slog.Debug("found guild already registered", "guild_id", id)
	}
	return nil
}

// HandleGuildDelete unregisters a guild the bot left. Guilds that only
// became unavailable are kept.
func (h *GuildHandlers) HandleGuildDelete(_ *discordgo.Session, e *discordgo.GuildDelete) error {
	if e.Unavailable {
		slog.Warn("guild became unavailable", "guild_id", e.ID)
		return nil
	}

	id, err := snowflake.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("invalid guild id %q: %w", e.ID, err)
	}

	removed, err := h.service.Unregister(context.Background(), id)
	if err != nil {
		return fmt.Errorf("failed to unregister guild %s: %w", id, err)
	}
	if removed {
		slog.Info("unregistered guild", "guild_id", id)
	}
	return nil
}

// HandleReady reconciles the registered guilds with the guilds in the ready payload.
func (h *GuildHandlers) HandleReady(_ *discordgo.Session, r *discordgo.Ready) error {
	ids, err := parseGuildIDs(r.Guilds)
	if err != nil {
		return err
	}
	_, err = h.service.Sync(context.Background(), ids)
	return err
}

// HandleSync reconciles the registered guilds with the session state.
func (h *GuildHandlers) HandleSync(ctx context.Context, s *discordgo.Session) error {
	if s == nil || s.State == nil {
		return errors.New("no session state to sync guilds from")
	}

	s.State.RLock()
	guilds := make([]*discordgo.Guild, len(s.State.Guilds))
	copy(guilds, s.State.Guilds)
	s.State.RUnlock()

	ids, err := parseGuildIDs(guilds)
	if err != nil {
		return err
	}
	_, err = h.service.Sync(ctx, ids)
	return err
}

func parseGuildIDs(guilds []*discordgo.Guild) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(guilds))
	for _, g := range guilds {
		id, err := snowflake.Parse(g.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid guild id %q: %w", g.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
