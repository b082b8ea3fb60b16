package presentation

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/dispatchbot/internal/bot"
)

// Apologies shown to users when a handler fails.
const (
	CommandFailedMessage     = "An error occurred while executing this command."
	ComponentFailedMessage   = "An error occurred while processing this interaction."
	InteractionFailedMessage = "Something went wrong. Please try again later."
)

// HandleCommandError logs a failed command and apologizes to the user.
func HandleCommandError(_ *discordgo.Session, err error, ectx bot.ErrorContext) error {
	c, ok := ectx.(bot.CommandErrorContext)
	if !ok {
		return nil
	}
	slog.Error("command failed", "command", c.Command.Name, "error", err)
	return bot.Reply(c.Responder, CommandFailedMessage, true)
}

// HandleComponentError logs a failed component interaction and apologizes
// to the user.
func HandleComponentError(_ *discordgo.Session, err error, ectx bot.ErrorContext) error {
	c, ok := ectx.(bot.ComponentErrorContext)
	if !ok {
		return nil
	}
	slog.Error("component failed", "kind", c.Kind, "custom_id", c.CustomID, "error", err)
	return bot.Reply(c.Responder, ComponentFailedMessage, true)
}

// HandleGlobalError logs every other failure. Where a user is waiting on
// an interaction, it also apologizes.
func HandleGlobalError(_ *discordgo.Session, err error, ectx bot.ErrorContext) error {
	switch c := ectx.(type) {
	case bot.MiddlewareErrorContext:
		slog.Error("middleware failed", "command", c.Command.Name, "error", err)
		return bot.Reply(c.Responder, InteractionFailedMessage, true)
	case bot.CommandErrorContext:
		slog.Error("command failed", "command", c.Command.Name, "error", err)
		return bot.Reply(c.Responder, InteractionFailedMessage, true)
	case bot.ComponentErrorContext:
		slog.Error("component failed", "custom_id", c.CustomID, "error", err)
		return bot.Reply(c.Responder, InteractionFailedMessage, true)
	case bot.AutocompleteErrorContext:
		slog.Warn("autocomplete failed", "command", c.Command.Name, "error", err)
	case bot.EventErrorContext:
		slog.Error("event handler failed", "event", c.Event, "handler", c.Handler, "error", err)
	case bot.TaskErrorContext:
		slog.Error("task failed", "task", c.Task, "error", err)
	default:
		slog.Error("uncaught error", "kind", bot.KindOf(ectx), "error", err)
	}
	return nil
}
