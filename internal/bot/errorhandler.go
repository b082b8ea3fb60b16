package bot

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// ErrorKind names an error context variant. Error handler files are named
// after these values.
type ErrorKind string

const (
	KindCommand      ErrorKind = "command"
	KindAutocomplete ErrorKind = "autocomplete"
	KindComponent    ErrorKind = "component"
	KindEvent        ErrorKind = "event"
	KindMiddleware   ErrorKind = "middleware"
	KindTask         ErrorKind = "task"
	KindUncaught     ErrorKind = "uncaught"
)

// globalHandlerName is the error handler file that catches every kind
// without its own handler.
const globalHandlerName = "global"

var errorKinds = []ErrorKind{
	KindCommand, KindAutocomplete, KindComponent, KindEvent,
	KindMiddleware, KindTask, KindUncaught,
}

// ErrorContext describes where an error happened. It is implemented only by
// the *ErrorContext types of this package.
type ErrorContext interface {
	errorContext()
}

// CommandErrorContext is passed for failures of a command handler.
type CommandErrorContext struct {
	Interaction *discordgo.InteractionCreate
	Responder   Responder
	Command     *Command
}

// AutocompleteErrorContext is passed for failures of an autocomplete handler.
type AutocompleteErrorContext struct {
	Interaction *discordgo.InteractionCreate
	Responder   Responder
	Command     *Command
}

// ComponentErrorContext is passed for failures of a component handler.
type ComponentErrorContext struct {
	Interaction *discordgo.InteractionCreate
	Responder   Responder
	Kind        ComponentKind
	CustomID    string
}

// MiddlewareErrorContext is passed when a middleware stop message could not
// be delivered.
type MiddlewareErrorContext struct {
	Interaction *discordgo.InteractionCreate
	Responder   Responder
	Command     *Command
}

// EventErrorContext is passed for failures of an event handler.
type EventErrorContext struct {
	Event   string
	Handler string
	Payload any
}

// TaskErrorContext is passed for failed task runs.
type TaskErrorContext struct {
	Task string
}

// UncaughtErrorContext is passed for failures outside any handler.
type UncaughtErrorContext struct {
	Origin string
}

func (CommandErrorContext) errorContext()      {}
func (AutocompleteErrorContext) errorContext() {}
func (ComponentErrorContext) errorContext()    {}
func (MiddlewareErrorContext) errorContext()   {}
func (EventErrorContext) errorContext()        {}
func (TaskErrorContext) errorContext()         {}
func (UncaughtErrorContext) errorContext()     {}

// KindOf returns the kind of ectx.
func KindOf(ectx ErrorContext) ErrorKind {
	switch ectx.(type) {
	case CommandErrorContext:
		return KindCommand
	case AutocompleteErrorContext:
		return KindAutocomplete
	case ComponentErrorContext:
		return KindComponent
	case MiddlewareErrorContext:
		return KindMiddleware
	case EventErrorContext:
		return KindEvent
	case TaskErrorContext:
		return KindTask
	case UncaughtErrorContext:
		return KindUncaught
	default:
		return KindUncaught
	}
}

// ErrorRecorder observes errors routed through ErrorHandlers.
type ErrorRecorder interface {
	ObserveHandledError(kind string)
}

// ErrorHandlers routes errors to the handler registered for their context
// kind, then to the global handler, then to a last-resort writer. Handle
// never panics.
type ErrorHandlers struct {
	mu       sync.RWMutex
	handlers map[ErrorKind]ErrorHandler
	global   ErrorHandler

	sink     io.Writer
	recorder ErrorRecorder
}

// NewErrorHandlers creates an empty registry writing unhandled errors to
// sink, or to os.Stderr when sink is nil.
func NewErrorHandlers(sink io.Writer) *ErrorHandlers {
	if sink == nil {
		sink = os.Stderr
	}
	return &ErrorHandlers{
		handlers: make(map[ErrorKind]ErrorHandler),
		sink:     sink,
	}
}

// Set registers the handler for kind.
func (h *ErrorHandlers) Set(kind ErrorKind, handler ErrorHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[kind] = handler
}

// SetGlobal registers the fallback handler.
func (h *ErrorHandlers) SetGlobal(handler ErrorHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.global = handler
}

// Has reports whether a handler is registered for kind.
func (h *ErrorHandlers) Has(kind ErrorKind) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.handlers[kind]
	return ok
}

// SetRecorder sets the recorder notified for every handled error.
func (h *ErrorHandlers) SetRecorder(r ErrorRecorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorder = r
}

// Handle routes err to the handler for ectx.
func (h *ErrorHandlers) Handle(s *discordgo.Session, err error, ectx ErrorContext) {
	kind := KindOf(ectx)

	h.mu.RLock()
	handler, ok := h.handlers[kind]
	if !ok {
		handler = h.global
	}
	recorder := h.recorder
	h.mu.RUnlock()

	if recorder != nil {
		recorder.ObserveHandledError(string(kind))
	}

	if handler == nil {
		fmt.Fprintf(h.sink, "unhandled %s error: %v\n", kind, err)
		return
	}

	if herr := invokeErrorHandler(handler, s, err, ectx); herr != nil {
		fmt.Fprintf(h.sink, "error handler for %s failed: %v (original error: %v)\n", kind, herr, err)
	}
}

func invokeErrorHandler(handler ErrorHandler, s *discordgo.Session, err error, ectx ErrorContext) (herr error) {
	defer func() {
		if r := recover(); r != nil {
			herr = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(s, err, ectx)
}
