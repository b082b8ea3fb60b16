package bot

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/bwmarrin/discordgo"
)

type countingRecorder struct {
	kinds []string
}

func (r *countingRecorder) ObserveHandledError(kind string) {
	r.kinds = append(r.kinds, kind)
}

func TestErrorHandlers_SpecificBeforeGlobal(t *testing.T) {
	var sink bytes.Buffer
	h := NewErrorHandlers(&sink)

	var got []string
	h.Set(KindCommand, func(_ *discordgo.Session, err error, _ ErrorContext) error {
		got = append(got, "command:"+err.Error())
		return nil
	})
	h.SetGlobal(func(_ *discordgo.Session, err error, ectx ErrorContext) error {
		got = append(got, "global:"+string(KindOf(ectx)))
		return nil
	})

	h.Handle(nil, errors.New("boom"), CommandErrorContext{})
	h.Handle(nil, errors.New("boom"), ComponentErrorContext{CustomID: "confirm_1"})

	want := []string{"command:boom", "global:component"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
	if sink.Len() != 0 {
		t.Errorf("expected nothing written to sink, got %q", sink.String())
	}
}

func TestErrorHandlers_NoHandlerWritesToSink(t *testing.T) {
	var sink bytes.Buffer
	h := NewErrorHandlers(&sink)

	h.Handle(nil, errors.New("lost"), TaskErrorContext{Task: "hourlySync"})

	if !strings.Contains(sink.String(), "unhandled task error: lost") {
		t.Errorf("unexpected sink output %q", sink.String())
	}
}

func TestErrorHandlers_FailingHandlerWritesToSink(t *testing.T) {
	var sink bytes.Buffer
	h := NewErrorHandlers(&sink)
	h.Set(KindEvent, func(*discordgo.Session, error, ErrorContext) error {
		return errors.New("handler broke")
	})

	h.Handle(nil, errors.New("original"), EventErrorContext{Event: "ready"})

	out := sink.String()
	if !strings.Contains(out, "handler broke") || !strings.Contains(out, "original") {
		t.Errorf("expected both errors in sink output, got %q", out)
	}
}

func TestErrorHandlers_PanickingHandlerIsContained(t *testing.T) {
	var sink bytes.Buffer
	h := NewErrorHandlers(&sink)
	h.SetGlobal(func(*discordgo.Session, error, ErrorContext) error {
		panic("kaboom")
	})

	h.Handle(nil, errors.New("original"), UncaughtErrorContext{Origin: "command"})

	if !strings.Contains(sink.String(), "kaboom") {
		t.Errorf("expected panic value in sink output, got %q", sink.String())
	}
}

func TestErrorHandlers_RecordsEveryHandledError(t *testing.T) {
	h := NewErrorHandlers(&bytes.Buffer{})
	rec := &countingRecorder{}
	h.SetRecorder(rec)

	h.Handle(nil, errors.New("a"), AutocompleteErrorContext{})
	h.Handle(nil, errors.New("b"), MiddlewareErrorContext{})

	if strings.Join(rec.kinds, ",") != "autocomplete,middleware" {
		t.Errorf("unexpected recorded kinds %v", rec.kinds)
	}
}

func TestErrorHandlers_RegisteredFromDefinitions(t *testing.T) {
	fsys := fstest.MapFS{
		"commands/ping.yaml":         file(""),
		"events/ready/hello.yaml":    file(""),
		"errorHandlers/command.yaml": file(""),
		"errorHandlers/global.yaml":  file(""),
	}

	var got []ErrorKind
	record := func(_ *discordgo.Session, _ error, ectx ErrorContext) error {
		got = append(got, KindOf(ectx))
		return nil
	}
	var globalCalls int

	catalog := NewCatalog()
	catalog.Command("ping", noopInteraction)
	catalog.Event("hello", noopEvent)
	catalog.ErrorHandler("command", record)
	catalog.ErrorHandler("global", func(s *discordgo.Session, err error, ectx ErrorContext) error {
		globalCalls++
		return record(s, err, ectx)
	})

	reg := newTestRegistry(t, fsys, catalog)
	if err := reg.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reg.ErrorHandlers().Has(KindCommand) {
		t.Error("expected command handler to be registered")
	}
	if reg.ErrorHandlers().Has(KindComponent) {
		t.Error("expected no component handler")
	}

	reg.ErrorHandlers().Handle(nil, errors.New("x"), ComponentErrorContext{})
	reg.ErrorHandlers().Handle(nil, errors.New("y"), CommandErrorContext{})

	if globalCalls != 1 {
		t.Errorf("expected global handler to be called once, got %d", globalCalls)
	}
	if len(got) != 2 || got[0] != KindComponent || got[1] != KindCommand {
		t.Errorf("unexpected handled kinds %v", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		ectx ErrorContext
		want ErrorKind
	}{
		{CommandErrorContext{}, KindCommand},
		{AutocompleteErrorContext{}, KindAutocomplete},
		{ComponentErrorContext{}, KindComponent},
		{MiddlewareErrorContext{}, KindMiddleware},
		{EventErrorContext{}, KindEvent},
		{TaskErrorContext{}, KindTask},
		{UncaughtErrorContext{}, KindUncaught},
	}

	for _, tt := range tests {
		if got := KindOf(tt.ectx); got != tt.want {
			t.Errorf("KindOf(%T) = %q, want %q", tt.ectx, got, tt.want)
		}
	}
}
