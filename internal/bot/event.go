package bot

import (
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// eventAdapters maps each supported event kind to a constructor of the typed
// discordgo handler that forwards the event to fn.
var eventAdapters = map[string]func(fn func(*discordgo.Session, any)) any{
	"ready": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.Ready) { fn(s, e) }
	},
	"resumed": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.Resumed) { fn(s, e) }
	},
	"guildCreate": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.GuildCreate) { fn(s, e) }
	},
	"guildDelete": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.GuildDelete) { fn(s, e) }
	},
	"guildMemberAdd": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.GuildMemberAdd) { fn(s, e) }
	},
	"guildMemberRemove": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.GuildMemberRemove) { fn(s, e) }
	},
	"guildMemberUpdate": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.GuildMemberUpdate) { fn(s, e) }
	},
	"messageCreate": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.MessageCreate) { fn(s, e) }
	},
	"messageDelete": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.MessageDelete) { fn(s, e) }
	},
	"messageReactionAdd": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.MessageReactionAdd) { fn(s, e) }
	},
	"interactionCreate": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.InteractionCreate) { fn(s, e) }
	},
	"voiceStateUpdate": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.VoiceStateUpdate) { fn(s, e) }
	},
	"channelCreate": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.ChannelCreate) { fn(s, e) }
	},
	"channelDelete": func(fn func(*discordgo.Session, any)) any {
		return func(s *discordgo.Session, e *discordgo.ChannelDelete) { fn(s, e) }
	},
}

// IsEventKind reports whether name is a supported event kind.
func IsEventKind(name string) bool {
	_, ok := eventAdapters[name]
	return ok
}

// EventListener is one handler bound to an event kind.
type EventListener struct {
	Name    string
	Path    string
	Once    bool
	Handler EventHandler

	fired atomic.Bool
}

// claim reports whether the listener should run for the current event.
// A once listener is claimed by the first event only.
func (l *EventListener) claim() bool {
	if !l.Once {
		return true
	}
	return l.fired.CompareAndSwap(false, true)
}

// Event holds the listeners of one event kind in registration order.
type Event struct {
	Kind string

	mu        sync.RWMutex
	listeners []*EventListener
}

func (e *Event) add(l *EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Listeners returns a snapshot of the event's listeners.
func (e *Event) Listeners() []*EventListener {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*EventListener, len(e.listeners))
	copy(out, e.listeners)
	return out
}
