package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/dispatchbot/internal/metrics"
)

// Interaction kinds used in logs and metrics.
const (
	interactionCommand      = "command"
	interactionAutocomplete = "autocomplete"
	interactionComponent    = "component"
	interactionOther        = "other"
)

// Dispatcher routes interactions and events to the handlers held by a Registry.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.Metrics

	newResponder func(s *discordgo.Session, i *discordgo.Interaction) Responder

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over an initialized registry.
func NewDispatcher(registry *Registry, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		metrics:  m,
		newResponder: func(s *discordgo.Session, i *discordgo.Interaction) Responder {
			return NewDiscordResponder(s, i)
		},
	}
}

// HandleInteraction dispatches i in its own goroutine and returns immediately.
// Interactions arriving after Wait has been called are dropped.
func (d *Dispatcher) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		slog.Warn("dropped interaction during shutdown", "type", i.Type.String(), "id", i.ID)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.Dispatch(s, i, d.newResponder(s, i.Interaction))
	}()
}

// Wait stops accepting interactions, then blocks until every dispatch
// started by HandleInteraction has returned, or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain interactions: %w", ctx.Err())
	}
}

// Dispatch runs the full pipeline for i synchronously. Failures are routed
// to the registry's error handlers; Dispatch never panics.
func (d *Dispatcher) Dispatch(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) {
	start := time.Now()
	kind, outcome := interactionOther, metrics.OutcomeUnhandled

	defer func() {
		if rec := recover(); rec != nil {
			outcome = metrics.OutcomeError
			d.registry.ErrorHandlers().Handle(s,
				fmt.Errorf("panic while dispatching %s interaction: %v", kind, rec),
				UncaughtErrorContext{Origin: kind})
		}
		d.metrics.ObserveInteraction(kind, outcome, time.Since(start))
	}()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		kind = interactionCommand
		outcome = d.dispatchCommand(s, i, r)
	case discordgo.InteractionApplicationCommandAutocomplete:
		kind = interactionAutocomplete
		outcome = d.dispatchAutocomplete(s, i, r)
	case discordgo.InteractionMessageComponent, discordgo.InteractionModalSubmit:
		kind = interactionComponent
		outcome = d.dispatchComponent(s, i, r)
	default:
		slog.Debug("ignored interaction", "type", i.Type.String())
	}
}

func (d *Dispatcher) dispatchCommand(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) string {
	name := i.ApplicationCommandData().Name
	cmd, ok := d.registry.Command(name)
	if !ok {
		slog.Warn("found no handler for command", "command", name)
		return metrics.OutcomeUnhandled
	}

	logger := slog.With("command", name, "user_id", userID(i), "guild_id", i.GuildID)
	logger.Debug("received command")

	if missing := missingUserPermissions(i, cmd.UserPermissions); missing != 0 {
		msg := "You don't have permission to use this command. Missing: " +
			strings.Join(PermissionNames(missing), ", ")
		return d.reject(s, i, r, cmd, msg)
	}
	if missing := missingBotPermissions(i, cmd.BotPermissions); missing != 0 {
		msg := "I don't have the required permissions. Missing: " +
			strings.Join(PermissionNames(missing), ", ")
		return d.reject(s, i, r, cmd, msg)
	}

	result, err := safeChain(cmd.Middleware, s, i)
	if err != nil {
		logger.Error("failed to run middleware", "error", err)
		d.registry.ErrorHandlers().Handle(s, err,
			MiddlewareErrorContext{Interaction: i, Responder: r, Command: cmd})
		return metrics.OutcomeError
	}
	if !result.Continue {
		return d.reject(s, i, r, cmd, result.Message)
	}

	if err := safeInvoke(cmd.Run, s, i, r); err != nil {
		logger.Error("failed to handle command", "error", err)
		d.registry.ErrorHandlers().Handle(s, err,
			CommandErrorContext{Interaction: i, Responder: r, Command: cmd})
		return metrics.OutcomeError
	}

	return metrics.OutcomeOK
}

// reject replies with message and stops the command.
func (d *Dispatcher) reject(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r Responder,
	cmd *Command,
	message string,
) string {
	if err := r.Respond(ephemeral(message)); err != nil {
		slog.Error("failed to send rejection", "command", cmd.Name, "error", err)
		d.registry.ErrorHandlers().Handle(s, err,
			MiddlewareErrorContext{Interaction: i, Responder: r, Command: cmd})
		return metrics.OutcomeError
	}
	return metrics.OutcomeRejected
}

func (d *Dispatcher) dispatchAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) string {
	name := i.ApplicationCommandData().Name
	cmd, ok := d.registry.Command(name)
	if !ok {
		slog.Warn("found no handler for command", "command", name)
		return metrics.OutcomeUnhandled
	}
	if cmd.Autocomplete == nil {
		slog.Warn("found no autocomplete handler", "command", name)
		return metrics.OutcomeUnhandled
	}

	if err := safeInvoke(cmd.Autocomplete, s, i, r); err != nil {
		slog.Error("failed to handle autocomplete", "command", name, "error", err)
		d.registry.ErrorHandlers().Handle(s, err,
			AutocompleteErrorContext{Interaction: i, Responder: r, Command: cmd})
		return metrics.OutcomeError
	}

	return metrics.OutcomeOK
}

func (d *Dispatcher) dispatchComponent(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) string {
	kind, customID, ok := componentTarget(i)
	if !ok {
		slog.Debug("ignored component interaction", "type", i.Type.String())
		return metrics.OutcomeUnhandled
	}

	handler, ok := d.registry.Components().Resolve(kind, customID)
	if !ok {
		slog.Warn("found no handler for component", "kind", kind, "custom_id", customID)
		return metrics.OutcomeUnhandled
	}

	if err := safeInvoke(handler, s, i, r); err != nil {
		slog.Error("failed to handle component", "kind", kind, "custom_id", customID, "error", err)
		d.registry.ErrorHandlers().Handle(s, err,
			ComponentErrorContext{Interaction: i, Responder: r, Kind: kind, CustomID: customID})
		return metrics.OutcomeError
	}

	return metrics.OutcomeOK
}

// DispatchEvent runs every listener registered for kind, in registration
// order. A failing listener does not stop the others.
func (d *Dispatcher) DispatchEvent(s *discordgo.Session, kind string, payload any) {
	ev, ok := d.registry.Event(kind)
	if !ok {
		return
	}

	for _, l := range ev.Listeners() {
		if !l.claim() {
			continue
		}
		if err := safeEvent(l.Handler, s, payload); err != nil {
			slog.Error("failed to handle event", "event", kind, "handler", l.Name, "error", err)
			d.registry.ErrorHandlers().Handle(s, err,
				EventErrorContext{Event: kind, Handler: l.Name, Payload: payload})
		}
	}
}

func safeInvoke(h InteractionHandler, s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h(s, i, r)
}

func safeChain(chain []Middleware, s *discordgo.Session, i *discordgo.InteractionCreate) (result MiddlewareResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return runChain(chain, s, i), nil
}

func safeEvent(h EventHandler, s *discordgo.Session, payload any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h(s, payload)
}
