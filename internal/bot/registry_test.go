package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/bwmarrin/discordgo"
)

func noopInteraction(*discordgo.Session, *discordgo.InteractionCreate, Responder) error { return nil }

func noopEvent(*discordgo.Session, any) error { return nil }

func noopTask(context.Context, *discordgo.Session) error { return nil }

func noopErrorHandler(*discordgo.Session, error, ErrorContext) error { return nil }

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

// newTestRegistry builds a registry without built-ins over fsys.
func newTestRegistry(t *testing.T, fsys fstest.MapFS, catalog *Catalog) *Registry {
	t.Helper()
	return NewRegistry(fsys, catalog,
		WithBuiltins(nil),
		WithErrorSink(&bytes.Buffer{}),
	)
}

func TestRegistry_Init_RegistersEveryKind(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/general/ping.yaml":             file("description: Replies with Pong!\n"),
		"events/guildCreate/registerGuild.yaml":  file(""),
		"components/buttons/confirm.yaml":        file("customId: \"^confirm_\"\n"),
		"components/selects/colour.yml":          file(""),
		"tasks/hourlySync.yaml":                  file("name: Hourly Sync\nschedule: \"0 0 * * * *\"\nrunOnStart: true\n"),
		"errorHandlers/command.yaml":             file(""),
		"errorHandlers/global.yaml":              file("handler: fallback\n"),
		"commands/general/README.md":             file("ignored"),
		"events/guildCreate/notes.txt":           file("ignored"),
		"components/modals/.keep":                file(""),
		"errorHandlers/component.yaml.disabled":  file(""),
		"tasks/nested/cleanup.yaml":              file("schedule: \"0 0 0 * * *\"\n"),
		"events/guildDelete/unregisterGuild.yml": file(""),
	}

	catalog := NewCatalog()
	catalog.Command("ping", noopInteraction)
	catalog.Event("registerGuild", noopEvent)
	catalog.Event("unregisterGuild", noopEvent)
	catalog.Component("confirm", noopInteraction)
	catalog.Component("colour", noopInteraction)
	catalog.Task("hourlySync", noopTask)
	catalog.Task("cleanup", noopTask)
	catalog.ErrorHandler("command", noopErrorHandler)
	catalog.ErrorHandler("fallback", noopErrorHandler)

	reg := newTestRegistry(t, fsys, catalog)
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmd, ok := reg.Command("ping")
	if !ok {
		t.Fatal("expected ping command to be registered")
	}
	if cmd.Category != "general" {
		t.Errorf("expected category %q, got %q", "general", cmd.Category)
	}
	if cmd.Definition.Description != "Replies with Pong!" {
		t.Errorf("expected description %q, got %q", "Replies with Pong!", cmd.Definition.Description)
	}

	if len(reg.Events()) != 2 {
		t.Errorf("expected 2 event kinds, got %d", len(reg.Events()))
	}
	if _, ok := reg.Components().Resolve(ComponentButton, "confirm_42"); !ok {
		t.Error("expected confirm pattern to resolve")
	}
	if _, ok := reg.Components().Resolve(ComponentSelect, "colour"); !ok {
		t.Error("expected colour select to resolve")
	}
	if reg.Tasks().Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", reg.Tasks().Len())
	}
	if !reg.ErrorHandlers().Has(KindCommand) {
		t.Error("expected command error handler to be registered")
	}
	if reg.ErrorHandlers().Has(KindComponent) {
		t.Error("expected component error handler not to be registered")
	}
}

func TestRegistry_Init_IsIdempotent(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/general/ping.yaml": file("description: d\n"),
		"events/ready/hello.yaml":    file(""),
	}
	catalog := NewCatalog()
	catalog.Command("ping", noopInteraction)
	catalog.Event("hello", noopEvent)

	reg := newTestRegistry(t, fsys, catalog)
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Init(); err != nil {
		t.Fatalf("expected second Init to be a no-op, got %v", err)
	}

	ev, ok := reg.Event("ready")
	if !ok {
		t.Fatal("expected ready event")
	}
	if n := len(ev.Listeners()); n != 1 {
		t.Errorf("expected 1 listener after repeated Init, got %d", n)
	}
}

func TestRegistry_Init_RequiresCommandsAndEvents(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{
			name: "missing commands",
			fsys: fstest.MapFS{"events/ready/hello.yaml": file("")},
		},
		{
			name: "missing events",
			fsys: fstest.MapFS{"commands/general/ping.yaml": file("")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t, tt.fsys, NewCatalog())

			err := reg.Init()
			if !errors.Is(err, ErrDirectoryNotFound) {
				t.Errorf("expected ErrDirectoryNotFound, got %v", err)
			}
		})
	}
}

func TestRegistry_Init_RetriesAfterFailure(t *testing.T) {
	fsys := fstest.MapFS{"events/ready/hello.yaml": file("")}
	catalog := NewCatalog()
	catalog.Event("hello", noopEvent)
	catalog.Command("ping", noopInteraction)
	reg := newTestRegistry(t, fsys, catalog)

	for range 2 {
		if err := reg.Init(); !errors.Is(err, ErrDirectoryNotFound) {
			t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
		}
	}

	fsys["commands/general/ping.yaml"] = file("description: Replies with Pong!\n")
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := reg.Command("ping"); !ok {
		t.Error("expected ping to be registered after retry")
	}
	ready, ok := reg.Event("ready")
	if !ok {
		t.Fatal("expected ready listeners")
	}
	if n := len(ready.Listeners()); n != 1 {
		t.Errorf("expected 1 listener after retry, got %d", n)
	}
}

func TestRegistry_Init_ToleratesMissingOptionalDirectories(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/general/ping.yaml": file(""),
		"events/ready/hello.yaml":    file(""),
	}
	reg := newTestRegistry(t, fsys, NewCatalog())

	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Tasks().Len() != 0 {
		t.Errorf("expected no tasks, got %d", reg.Tasks().Len())
	}
}

func TestRegistry_DuplicateCommandLastWins(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/a/ping.yaml": file("description: first\nhandler: first\n"),
		"commands/b/ping.yaml": file("description: second\nhandler: second\n"),
		"events/ready/x.yaml":  file(""),
	}
	catalog := NewCatalog()
	catalog.Command("first", noopInteraction)
	catalog.Command("second", noopInteraction)

	reg := newTestRegistry(t, fsys, catalog)
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	commands := reg.Commands()
	if len(commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(commands))
	}
	if commands[0].Category != "b" {
		t.Errorf("expected later definition to win, got category %q", commands[0].Category)
	}
	if commands[0].Definition.Description != "second" {
		t.Errorf("expected description %q, got %q", "second", commands[0].Definition.Description)
	}
}

func TestRegistry_SkipsMisplacedAndUnboundHandlers(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/general/ping.yaml":    file(""),
		"commands/general/orphan.yaml":  file(""),
		"commands/general/broken.yaml":  file("options: [{type: nonsense, name: x}]\n"),
		"events/atRoot.yaml":            file(""),
		"events/notAnEvent/hello.yaml":  file(""),
		"events/ready/hello.yaml":       file(""),
		"errorHandlers/unknown.yaml":    file(""),
		"commands/general/badmw.yaml":   file("middleware: [doesNotExist]\n"),
		"commands/general/badperm.yaml": file("permissions: {user: [FlyPlanes]}\n"),
	}
	catalog := NewCatalog()
	catalog.Command("ping", noopInteraction)
	catalog.Command("broken", noopInteraction)
	catalog.Command("badmw", noopInteraction)
	catalog.Command("badperm", noopInteraction)
	catalog.Event("atRoot", noopEvent)
	catalog.Event("hello", noopEvent)
	catalog.ErrorHandler("unknown", noopErrorHandler)

	reg := newTestRegistry(t, fsys, catalog)
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(reg.Commands()); n != 1 {
		t.Errorf("expected only ping to register, got %d commands", n)
	}
	events := reg.Events()
	if len(events) != 1 || events[0].Kind != "ready" {
		t.Errorf("expected only the ready event, got %d events", len(events))
	}
}

func TestRegistry_RegistersMiddlewareAndPermissions(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/admin/purge.yaml": file(`
description: Purge messages
permissions:
  user: [ManageMessages]
  bot: [ManageMessages, ReadMessageHistory]
middleware:
  - guildOnly
  - cooldown: 5s
`),
		"events/ready/x.yaml": file(""),
	}
	catalog := NewCatalog()
	catalog.Command("purge", noopInteraction)

	reg := newTestRegistry(t, fsys, catalog)
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmd, ok := reg.Command("purge")
	if !ok {
		t.Fatal("expected purge command")
	}
	if len(cmd.Middleware) != 2 {
		t.Errorf("expected 2 middleware, got %d", len(cmd.Middleware))
	}
	if cmd.UserPermissions != discordgo.PermissionManageMessages {
		t.Errorf("expected user permissions %d, got %d", discordgo.PermissionManageMessages, cmd.UserPermissions)
	}
	wantBot := int64(discordgo.PermissionManageMessages | discordgo.PermissionReadMessageHistory)
	if cmd.BotPermissions != wantBot {
		t.Errorf("expected bot permissions %d, got %d", wantBot, cmd.BotPermissions)
	}
}

func TestRegistry_BuiltinEventsComeFirst(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/general/ping.yaml":         file(""),
		"events/interactionCreate/log.yaml":  file(""),
		"events/ready/refreshGuilds.yaml":    file("once: true\n"),
	}
	catalog := NewCatalog()
	catalog.Command("ping", noopInteraction)
	catalog.Event("log", noopEvent)
	catalog.Event("refreshGuilds", noopEvent)
	catalog.Event(BuiltinDispatchInteraction, noopEvent)
	catalog.Event(BuiltinUpdateCommandAPI, noopEvent)
	catalog.Event(BuiltinRegisterEmoji, noopEvent)

	reg := NewRegistry(fsys, catalog, WithErrorSink(&bytes.Buffer{}))
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, ok := reg.Event("interactionCreate")
	if !ok {
		t.Fatal("expected interactionCreate listeners")
	}
	listeners := ev.Listeners()
	if len(listeners) != 2 {
		t.Fatalf("expected 2 listeners, got %d", len(listeners))
	}
	if listeners[0].Name != BuiltinDispatchInteraction {
		t.Errorf("expected built-in listener first, got %q", listeners[0].Name)
	}

	ready, _ := reg.Event("ready")
	readyListeners := ready.Listeners()
	if len(readyListeners) != 3 {
		t.Fatalf("expected 3 ready listeners, got %d", len(readyListeners))
	}
	for _, l := range readyListeners[:2] {
		if !strings.HasPrefix(l.Name, "builtin.") || !l.Once {
			t.Errorf("expected built-in once ready listener first, got %q", l.Name)
		}
	}
	if readyListeners[2].Name != "refreshGuilds" {
		t.Errorf("expected user listener last, got %q", readyListeners[2].Name)
	}
}
