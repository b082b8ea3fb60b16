package bot

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// MiddlewareResult is the outcome of one middleware step.
type MiddlewareResult struct {
	Continue bool
	// Message is shown to the user when Continue is false.
	Message string
}

// Continue lets the chain proceed.
func Continue() MiddlewareResult {
	return MiddlewareResult{Continue: true}
}

// Stop halts the chain and replies with message.
func Stop(message string) MiddlewareResult {
	return MiddlewareResult{Message: message}
}

// Middleware is a pre-handler check attached to a command.
type Middleware func(s *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult

// MiddlewareFactory builds a middleware from the arguments given in a
// command definition. It is called once per command, so state kept by the
// returned middleware is per command.
type MiddlewareFactory func(args ...string) (Middleware, error)

// runChain runs chain in order and returns the first stopping result.
func runChain(chain []Middleware, s *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult {
	for _, mw := range chain {
		if result := mw(s, i); !result.Continue {
			return result
		}
	}
	return Continue()
}

var builtinMiddleware = map[string]MiddlewareFactory{
	"guildOnly": func(args ...string) (Middleware, error) {
		return GuildOnly(), nil
	},
	"dmOnly": func(args ...string) (Middleware, error) {
		return DMOnly(), nil
	},
	"cooldown": func(args ...string) (Middleware, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("cooldown takes one duration argument, got %d", len(args))
		}
		window, err := parseWindow(args[0])
		if err != nil {
			return nil, err
		}
		return Cooldown(window), nil
	},
	"requireRole": func(args ...string) (Middleware, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("requireRole needs at least one role id")
		}
		return RequireRole(args...), nil
	},
	"requireUser": func(args ...string) (Middleware, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("requireUser needs at least one user id")
		}
		return RequireUser(args...), nil
	},
	"rateLimit": func(args ...string) (Middleware, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("rateLimit takes a rate and a burst, got %d arguments", len(args))
		}
		perSecond, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q: %w", args[0], err)
		}
		burst, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid burst %q: %w", args[1], err)
		}
		return RateLimit(rate.Limit(perSecond), burst), nil
	},
}

// parseWindow accepts a Go duration ("5s") or a plain number of seconds ("5").
func parseWindow(s string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// GuildOnly stops commands invoked outside a guild.
func GuildOnly() Middleware {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult {
		if i.GuildID == "" {
			return Stop("This command can only be used in a server.")
		}
		return Continue()
	}
}

// DMOnly stops commands invoked inside a guild.
func DMOnly() Middleware {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult {
		if i.GuildID != "" {
			return Stop("This command can only be used in direct messages.")
		}
		return Continue()
	}
}

// RequireRole lets members holding at least one of roleIDs through.
func RequireRole(roleIDs ...string) Middleware {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult {
		if i.GuildID == "" || i.Member == nil {
			return Stop("This command can only be used in a server.")
		}
		for _, id := range roleIDs {
			if slices.Contains(i.Member.Roles, id) {
				return Continue()
			}
		}
		return Stop("You don't have the required role to use this command.")
	}
}

// RequireUser lets only the listed users through.
func RequireUser(userIDs ...string) Middleware {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult {
		if !slices.Contains(userIDs, userID(i)) {
			return Stop("You don't have permission to use this command.")
		}
		return Continue()
	}
}

// Cooldown stops a user from invoking the command again within window.
// The check and the update are not atomic: two near-simultaneous invocations
// by the same user may both pass.
func Cooldown(window time.Duration) Middleware {
	return newCooldown(window).check
}

type cooldown struct {
	mu     sync.Mutex
	window time.Duration
	until  map[string]time.Time
	now    func() time.Time
}

func newCooldown(window time.Duration) *cooldown {
	return &cooldown{
		window: window,
		until:  make(map[string]time.Time),
		now:    time.Now,
	}
}

func (c *cooldown) check(_ *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult {
	key := userID(i) + "-" + commandName(i)
	now := c.now()

	c.mu.Lock()
	end, ok := c.until[key]
	c.mu.Unlock()

	if ok && now.Before(end) {
		remaining := int(math.Ceil(end.Sub(now).Seconds()))
		return Stop(fmt.Sprintf("Please wait %d more second(s) before using this command again.", remaining))
	}

	c.mu.Lock()
	c.until[key] = now.Add(c.window)
	c.prune(now)
	c.mu.Unlock()

	return Continue()
}

// prune drops expired entries. Callers hold c.mu.
func (c *cooldown) prune(now time.Time) {
	for key, end := range c.until {
		if !now.Before(end) {
			delete(c.until, key)
		}
	}
}

// RateLimit allows each user perSecond invocations per second with bursts
// of up to burst.
func RateLimit(perSecond rate.Limit, burst int) Middleware {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) MiddlewareResult {
		id := userID(i)

		mu.Lock()
		limiter, ok := limiters[id]
		if !ok {
			limiter = rate.NewLimiter(perSecond, burst)
			limiters[id] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			return Stop("You're doing that too often. Try again in a moment.")
		}
		return Continue()
	}
}

// userID returns the id of the user behind an interaction.
func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func commandName(i *discordgo.InteractionCreate) string {
	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		return i.ApplicationCommandData().Name
	}
	return ""
}
