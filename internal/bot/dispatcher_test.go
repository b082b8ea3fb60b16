package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/bwmarrin/discordgo"
)

// dispatchFixture builds a dispatcher over a small definition tree and
// records the error contexts that reach the error handlers.
type dispatchFixture struct {
	dispatcher *Dispatcher
	handled    []ErrorContext
	errs       []error
	calls      []string
}

func newDispatchFixture(t *testing.T, fsys fstest.MapFS, bind func(f *dispatchFixture, c *Catalog)) *dispatchFixture {
	t.Helper()

	f := &dispatchFixture{}
	if _, ok := fsys["events/ready/hello.yaml"]; !ok {
		fsys["events/ready/hello.yaml"] = file("")
	}

	catalog := NewCatalog()
	catalog.Event("hello", noopEvent)
	catalog.ErrorHandler("global", func(_ *discordgo.Session, err error, ectx ErrorContext) error {
		f.errs = append(f.errs, err)
		f.handled = append(f.handled, ectx)
		return nil
	})
	fsys["errorHandlers/global.yaml"] = file("")
	bind(f, catalog)

	reg := NewRegistry(fsys, catalog, WithBuiltins(nil), WithErrorSink(&bytes.Buffer{}))
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.dispatcher = NewDispatcher(reg, nil)
	return f
}

func (f *dispatchFixture) record(name string) InteractionHandler {
	return func(*discordgo.Session, *discordgo.InteractionCreate, Responder) error {
		f.calls = append(f.calls, name)
		return nil
	}
}

func TestDispatch_RunsCommand(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/ping.yaml": file("description: Replies with Pong!\n"),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("ping", f.record("ping"))
	})

	f.dispatcher.Dispatch(nil, commandInteraction("ping"), &MockResponder{})

	if strings.Join(f.calls, ",") != "ping" {
		t.Errorf("expected ping to run, got %v", f.calls)
	}
	if len(f.handled) != 0 {
		t.Errorf("expected no errors, got %v", f.errs)
	}
}

func TestDispatch_UnknownCommandIsIgnored(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/ping.yaml": file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("ping", f.record("ping"))
	})

	r := &MockResponder{}
	f.dispatcher.Dispatch(nil, commandInteraction("nope"), r)

	if len(f.calls) != 0 || r.Responded() || len(f.handled) != 0 {
		t.Errorf("expected unknown command to be ignored, calls=%v responded=%v", f.calls, r.Responded())
	}
}

func TestDispatch_MissingUserPermissions(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/purge.yaml": file("permissions:\n  user: [ManageMessages]\n"),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("purge", f.record("purge"))
	})

	r := &MockResponder{}
	f.dispatcher.Dispatch(nil, commandInteraction("purge"), r)

	if len(f.calls) != 0 {
		t.Error("expected handler not to run")
	}
	want := "You don't have permission to use this command. Missing: ManageMessages"
	if r.LastResponse == nil || r.LastResponse.Data.Content != want {
		t.Fatalf("expected rejection %q, got %+v", want, r.LastResponse)
	}
	if r.LastResponse.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Error("expected rejection to be ephemeral")
	}
}

func TestDispatch_MissingBotPermissions(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/kick.yaml": file("permissions:\n  bot: [KickMembers, SendMessages]\n"),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("kick", f.record("kick"))
	})

	i := commandInteraction("kick")
	i.AppPermissions = discordgo.PermissionSendMessages
	r := &MockResponder{}
	f.dispatcher.Dispatch(nil, i, r)

	want := "I don't have the required permissions. Missing: KickMembers"
	if r.LastResponse == nil || r.LastResponse.Data.Content != want {
		t.Errorf("expected rejection %q, got %+v", want, r.LastResponse)
	}
	if len(f.calls) != 0 {
		t.Error("expected handler not to run")
	}
}

func TestDispatch_AdministratorPassesPermissionChecks(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/purge.yaml": file("permissions:\n  user: [ManageMessages]\n  bot: [ManageMessages]\n"),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("purge", f.record("purge"))
	})

	i := commandInteraction("purge")
	i.Member.Permissions = discordgo.PermissionAdministrator
	i.AppPermissions = discordgo.PermissionAdministrator
	f.dispatcher.Dispatch(nil, i, &MockResponder{})

	if len(f.calls) != 1 {
		t.Errorf("expected handler to run, got %v", f.calls)
	}
}

func TestDispatch_MiddlewareStop(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/server.yaml": file("middleware: [guildOnly]\n"),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("server", f.record("server"))
	})

	r := &MockResponder{}
	f.dispatcher.Dispatch(nil, dmCommandInteraction("server"), r)

	if len(f.calls) != 0 {
		t.Error("expected handler not to run")
	}
	if r.LastResponse == nil || r.LastResponse.Data.Content != "This command can only be used in a server." {
		t.Errorf("unexpected response %+v", r.LastResponse)
	}
}

func TestDispatch_FailedRejectionIsRouted(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/server.yaml": file("middleware: [guildOnly]\n"),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("server", f.record("server"))
	})

	sendErr := errors.New("unknown interaction")
	f.dispatcher.Dispatch(nil, dmCommandInteraction("server"), &MockResponder{Err: sendErr})

	if len(f.handled) != 1 {
		t.Fatalf("expected one routed error, got %d", len(f.handled))
	}
	if KindOf(f.handled[0]) != KindMiddleware || !errors.Is(f.errs[0], sendErr) {
		t.Errorf("unexpected routed error %v (%T)", f.errs[0], f.handled[0])
	}
}

func TestDispatch_CommandErrorIsRouted(t *testing.T) {
	boom := errors.New("boom")
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/fail.yaml": file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("fail", func(*discordgo.Session, *discordgo.InteractionCreate, Responder) error {
			return boom
		})
	})

	f.dispatcher.Dispatch(nil, commandInteraction("fail"), &MockResponder{})

	if len(f.handled) != 1 {
		t.Fatalf("expected one routed error, got %d", len(f.handled))
	}
	ectx, ok := f.handled[0].(CommandErrorContext)
	if !ok {
		t.Fatalf("expected CommandErrorContext, got %T", f.handled[0])
	}
	if ectx.Command.Name != "fail" || !errors.Is(f.errs[0], boom) {
		t.Errorf("unexpected context %+v with error %v", ectx, f.errs[0])
	}
}

func TestDispatch_CommandPanicIsRouted(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/panic.yaml": file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("panic", func(*discordgo.Session, *discordgo.InteractionCreate, Responder) error {
			panic("kaboom")
		})
	})

	f.dispatcher.Dispatch(nil, commandInteraction("panic"), &MockResponder{})

	if len(f.handled) != 1 || KindOf(f.handled[0]) != KindCommand {
		t.Fatalf("expected one command error, got %v", f.handled)
	}
	if !strings.Contains(f.errs[0].Error(), "kaboom") {
		t.Errorf("expected panic value in error, got %v", f.errs[0])
	}
}

func TestDispatch_Autocomplete(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/search.yaml": file(""),
		"commands/plain.yaml":  file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("search", f.record("search"))
		c.Autocomplete("search", f.record("search:autocomplete"))
		c.Command("plain", f.record("plain"))
	})

	search := commandInteraction("search")
	search.Type = discordgo.InteractionApplicationCommandAutocomplete
	plain := commandInteraction("plain")
	plain.Type = discordgo.InteractionApplicationCommandAutocomplete

	f.dispatcher.Dispatch(nil, search, &MockResponder{})
	f.dispatcher.Dispatch(nil, plain, &MockResponder{})

	if strings.Join(f.calls, ",") != "search:autocomplete" {
		t.Errorf("expected only the autocomplete handler to run, got %v", f.calls)
	}
}

func TestDispatch_Component(t *testing.T) {
	boom := errors.New("boom")
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/ping.yaml":              file(""),
		"components/buttons/confirm.yaml": file("customId: \"^confirm_\"\n"),
		"components/modals/feedback.yaml": file(""),
		"components/selects/colour.yaml":  file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("ping", f.record("ping"))
		c.Component("confirm", f.record("confirm"))
		c.Component("feedback", func(*discordgo.Session, *discordgo.InteractionCreate, Responder) error {
			return boom
		})
		c.Component("colour", f.record("colour"))
	})

	button := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{CustomID: "confirm_42", ComponentType: discordgo.ButtonComponent},
	}}
	modal := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionModalSubmit,
		Data: discordgo.ModalSubmitInteractionData{CustomID: "feedback"},
	}}
	unmatched := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{CustomID: "cancel_42", ComponentType: discordgo.ButtonComponent},
	}}

	f.dispatcher.Dispatch(nil, button, &MockResponder{})
	f.dispatcher.Dispatch(nil, modal, &MockResponder{})
	f.dispatcher.Dispatch(nil, unmatched, &MockResponder{})

	if strings.Join(f.calls, ",") != "confirm" {
		t.Errorf("expected only confirm to run, got %v", f.calls)
	}
	if len(f.handled) != 1 {
		t.Fatalf("expected one routed error, got %d", len(f.handled))
	}
	ectx, ok := f.handled[0].(ComponentErrorContext)
	if !ok || ectx.Kind != ComponentModal || ectx.CustomID != "feedback" {
		t.Errorf("unexpected error context %+v", f.handled[0])
	}
}

func TestDispatchEvent_OnceAndOrder(t *testing.T) {
	var calls []string
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/ping.yaml":           file(""),
		"events/guildCreate/a.yaml":    file("once: true\n"),
		"events/guildCreate/b.yaml":    file(""),
		"events/guildCreate/fail.yaml": file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("ping", f.record("ping"))
		c.Event("a", On(func(_ *discordgo.Session, g *discordgo.GuildCreate) error {
			calls = append(calls, "a:"+g.ID)
			return nil
		}))
		c.Event("b", On(func(_ *discordgo.Session, g *discordgo.GuildCreate) error {
			calls = append(calls, "b:"+g.ID)
			return nil
		}))
		c.Event("fail", func(*discordgo.Session, any) error {
			return errors.New("listener failed")
		})
	})

	first := &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "1"}}
	second := &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "2"}}
	f.dispatcher.DispatchEvent(nil, "guildCreate", first)
	f.dispatcher.DispatchEvent(nil, "guildCreate", second)

	want := "a:1,b:1,b:2"
	if strings.Join(calls, ",") != want {
		t.Errorf("expected %s, got %v", want, calls)
	}
	if len(f.handled) != 2 {
		t.Fatalf("expected the failing listener to be routed twice, got %d", len(f.handled))
	}
	ectx, ok := f.handled[0].(EventErrorContext)
	if !ok || ectx.Event != "guildCreate" || ectx.Handler != "fail" {
		t.Errorf("unexpected error context %+v", f.handled[0])
	}
}

func TestDispatchEvent_WrongPayloadTypeIsRouted(t *testing.T) {
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/ping.yaml":          file(""),
		"events/guildDelete/bye.yaml": file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("ping", f.record("ping"))
		c.Event("bye", On(func(*discordgo.Session, *discordgo.GuildDelete) error { return nil }))
	})

	f.dispatcher.DispatchEvent(nil, "guildDelete", &discordgo.GuildCreate{})

	if len(f.errs) != 1 || !errors.Is(f.errs[0], ErrEventType) {
		t.Errorf("expected ErrEventType to be routed, got %v", f.errs)
	}
}

func TestDispatcher_HandleInteractionAndWait(t *testing.T) {
	release := make(chan struct{})
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/slow.yaml": file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("slow", func(*discordgo.Session, *discordgo.InteractionCreate, Responder) error {
			<-release
			return nil
		})
	})
	f.dispatcher.newResponder = func(*discordgo.Session, *discordgo.Interaction) Responder {
		return &MockResponder{}
	}

	f.dispatcher.HandleInteraction(nil, commandInteraction("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := f.dispatcher.Wait(ctx); err == nil {
		t.Fatal("expected Wait to time out while the handler is blocked")
	}

	close(release)
	if err := f.dispatcher.Wait(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcher_WaitWhileInteractionsArrive(t *testing.T) {
	var runs atomic.Int32
	f := newDispatchFixture(t, fstest.MapFS{
		"commands/ping.yaml": file(""),
	}, func(f *dispatchFixture, c *Catalog) {
		c.Command("ping", func(*discordgo.Session, *discordgo.InteractionCreate, Responder) error {
			runs.Add(1)
			return nil
		})
	})
	f.dispatcher.newResponder = func(*discordgo.Session, *discordgo.Interaction) Responder {
		return &MockResponder{}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				f.dispatcher.HandleInteraction(nil, commandInteraction("ping"))
			}
		}
	}()

	for range 50 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := f.dispatcher.Wait(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		cancel()
	}
	close(stop)
	wg.Wait()

	after := runs.Load()
	f.dispatcher.HandleInteraction(nil, commandInteraction("ping"))
	if err := f.dispatcher.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := runs.Load(); got != after {
		t.Errorf("expected no runs after Wait, got %d more", got-after)
	}
}
