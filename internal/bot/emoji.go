package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// MissingEmoji is rendered in place of an emoji that is not registered.
const MissingEmoji = "⛶"

// EmojiFetcher loads emojis over the REST API.
type EmojiFetcher interface {
	ApplicationEmojis(ctx context.Context, appID string) ([]*discordgo.Emoji, error)
	GuildEmojis(ctx context.Context, guildID string) ([]*discordgo.Emoji, error)
}

// SessionEmojiFetcher adapts a discordgo session to EmojiFetcher.
func SessionEmojiFetcher(s *discordgo.Session) EmojiFetcher {
	return sessionEmojiFetcher{s}
}

type sessionEmojiFetcher struct {
	s *discordgo.Session
}

func (f sessionEmojiFetcher) ApplicationEmojis(ctx context.Context, appID string) ([]*discordgo.Emoji, error) {
	endpoint := discordgo.EndpointApplications + "/" + appID + "/emojis"
	body, err := f.s.RequestWithBucketID(http.MethodGet, endpoint, nil, endpoint, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	var list struct {
		Items []*discordgo.Emoji `json:"items"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode application emojis: %w", err)
	}
	return list.Items, nil
}

func (f sessionEmojiFetcher) GuildEmojis(ctx context.Context, guildID string) ([]*discordgo.Emoji, error) {
	return f.s.GuildEmojis(guildID, discordgo.WithContext(ctx))
}

// Emojis holds the application's emojis, loaded once when the gateway is
// ready, and caches guild emoji lists on first use.
type Emojis struct {
	mu          sync.RWMutex
	fetcher     EmojiFetcher
	registered  map[string]*discordgo.Emoji
	guilds      map[string][]string
	initialized bool
}

// NewEmojis creates an empty store. Inline renders MissingEmoji until Init.
func NewEmojis() *Emojis {
	return &Emojis{
		registered: make(map[string]*discordgo.Emoji),
		guilds:     make(map[string][]string),
	}
}

// Init loads the application emojis of appID. Later calls log a warning and
// do nothing.
func (e *Emojis) Init(ctx context.Context, fetcher EmojiFetcher, appID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		slog.Warn("skipped emoji initialization", "reason", "already initialized")
		return nil
	}

	emojis, err := fetcher.ApplicationEmojis(ctx, appID)
	if err != nil {
		return fmt.Errorf("failed to fetch application emojis: %w", err)
	}
	for _, emoji := range emojis {
		e.registered[emoji.Name] = emoji
	}
	e.fetcher = fetcher
	e.initialized = true

	slog.Info("loaded application emojis", "count", len(emojis))
	return nil
}

// Inline returns the message markup of the application emoji called name.
func (e *Emojis) Inline(name string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if emoji, ok := e.registered[name]; ok {
		return emoji.MessageFormat()
	}
	return MissingEmoji
}

// GuildEmojis returns the message markup of every emoji of a guild.
func (e *Emojis) GuildEmojis(ctx context.Context, guildID string) ([]string, error) {
	e.mu.RLock()
	cached, ok := e.guilds[guildID]
	fetcher := e.fetcher
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if fetcher == nil {
		return nil, ErrEmojisNotLoaded
	}

	emojis, err := fetcher.GuildEmojis(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch emojis of guild %s: %w", guildID, err)
	}
	formatted := make([]string, 0, len(emojis))
	for _, emoji := range emojis {
		formatted = append(formatted, emoji.MessageFormat())
	}

	e.mu.Lock()
	e.guilds[guildID] = formatted
	e.mu.Unlock()
	return formatted, nil
}
