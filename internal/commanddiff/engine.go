package commanddiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Operation names reported to a Recorder.
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpOverwrite = "overwrite"
)

// Remote is the command registry the engine reconciles against.
// *discordgo.Session satisfies it.
type Remote interface {
	ApplicationCommands(
		appID, guildID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(
		appID, guildID string,
		cmd *discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) (*discordgo.ApplicationCommand, error)
	ApplicationCommandEdit(
		appID, guildID, cmdID string,
		cmd *discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(
		appID, guildID, cmdID string,
		options ...discordgo.RequestOption,
	) error
	ApplicationCommandBulkOverwrite(
		appID, guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)
}

// Recorder observes individual remote operations.
type Recorder interface {
	ObserveCommandSync(scope, op string, err error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-item reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets a Recorder notified of every remote write.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Engine computes and applies command diffs for one application.
type Engine struct {
	remote   Remote
	appID    string
	logger   *slog.Logger
	recorder Recorder
}

// NewEngine creates an Engine for the given application.
func NewEngine(remote Remote, appID string, opts ...Option) *Engine {
	e := &Engine{
		remote: remote,
		appID:  appID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Diff fetches the commands registered in scope and compares them with local.
func (e *Engine) Diff(
	ctx context.Context,
	local []*discordgo.ApplicationCommand,
	scope Scope,
) (Diff, error) {
	remote, err := e.remote.ApplicationCommands(
		e.appID,
		scope.GuildID(),
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return Diff{}, fmt.Errorf("failed to fetch %s commands: %w", scope, err)
	}

	return Compute(local, remote), nil
}

// Apply executes diff against scope: creates, then updates, then deletes,
// one call at a time. A failed item is logged and skipped; earlier successful
// items are not rolled back, so a partially applied diff is possible. The
// returned error joins every per-item failure.
func (e *Engine) Apply(ctx context.Context, diff Diff, scope Scope) error {
	var errs []error

	for _, cmd := range diff.ToCreate {
		_, err := e.remote.ApplicationCommandCreate(
			e.appID,
			scope.GuildID(),
			cmd,
			discordgo.WithContext(ctx),
		)
		e.record(scope, OpCreate, err)
		if err != nil {
			e.logger.Error("failed to create command",
				"scope", scope.String(), "command", cmd.Name, "error", err)
			errs = append(errs, fmt.Errorf("create %s: %w", cmd.Name, err))
			continue
		}
		e.logger.Debug("created command", "scope", scope.String(), "command", cmd.Name)
	}

	for _, upd := range diff.ToUpdate {
		_, err := e.remote.ApplicationCommandEdit(
			e.appID,
			scope.GuildID(),
			upd.ID,
			upd.Command,
			discordgo.WithContext(ctx),
		)
		e.record(scope, OpUpdate, err)
		if err != nil {
			e.logger.Error("failed to update command",
				"scope", scope.String(), "command", upd.Command.Name, "id", upd.ID, "error", err)
			errs = append(errs, fmt.Errorf("update %s: %w", upd.Command.Name, err))
			continue
		}
		e.logger.Debug("updated command", "scope", scope.String(), "command", upd.Command.Name)
	}

	for _, del := range diff.ToDelete {
		err := e.remote.ApplicationCommandDelete(
			e.appID,
			scope.GuildID(),
			del.ID,
			discordgo.WithContext(ctx),
		)
		e.record(scope, OpDelete, err)
		if err != nil {
			e.logger.Error("failed to delete command",
				"scope", scope.String(), "command", del.Name, "id", del.ID, "error", err)
			errs = append(errs, fmt.Errorf("delete %s: %w", del.Name, err))
			continue
		}
		e.logger.Debug("deleted command", "scope", scope.String(), "command", del.Name)
	}

	return errors.Join(errs...)
}

// Register replaces every command in scope with one bulk call. If the bulk
// call fails, each command is created individually so that the commands the
// registry does accept still get deployed; the error then reports which
// individual creates failed.
func (e *Engine) Register(
	ctx context.Context,
	commands []*discordgo.ApplicationCommand,
	scope Scope,
) error {
	created, bulkErr := e.remote.ApplicationCommandBulkOverwrite(
		e.appID,
		scope.GuildID(),
		commands,
		discordgo.WithContext(ctx),
	)
	e.record(scope, OpOverwrite, bulkErr)
	if bulkErr == nil {
		e.logger.Debug("overwrote commands", "scope", scope.String(), "count", len(created))
		return nil
	}

	e.logger.Error("failed to bulk-overwrite commands", "scope", scope.String(), "error", bulkErr)

	var errs []error
	for _, cmd := range commands {
		_, err := e.remote.ApplicationCommandCreate(
			e.appID,
			scope.GuildID(),
			cmd,
			discordgo.WithContext(ctx),
		)
		e.record(scope, OpCreate, err)
		if err != nil {
			e.logger.Error("failed to create command",
				"scope", scope.String(), "command", cmd.Name, "error", err)
			errs = append(errs, fmt.Errorf("create %s: %w", cmd.Name, err))
		}
	}

	if len(errs) == 0 {
		e.logger.Warn("created all commands individually after bulk failure",
			"scope", scope.String(), "initial_error", bulkErr)
		return nil
	}

	return errors.Join(append([]error{fmt.Errorf("bulk overwrite: %w", bulkErr)}, errs...)...)
}

func (e *Engine) record(scope Scope, op string, err error) {
	if e.recorder != nil {
		e.recorder.ObserveCommandSync(scope.String(), op, err)
	}
}
