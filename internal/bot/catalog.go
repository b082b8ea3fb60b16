package bot

import (
	"log/slog"
	"maps"
)

// CommandBinding is the behaviour behind a command definition.
type CommandBinding struct {
	Run          InteractionHandler
	Autocomplete InteractionHandler
}

// Catalog maps handler names used in definition documents to their Go
// implementations. Modules fill it in Bind; the Registry resolves every
// definition against it.
type Catalog struct {
	commands      map[string]CommandBinding
	events        map[string]EventHandler
	components    map[string]InteractionHandler
	tasks         map[string]TaskHandler
	errorHandlers map[string]ErrorHandler
	middleware    map[string]MiddlewareFactory
}

// NewCatalog creates a catalog that already knows the built-in middleware.
func NewCatalog() *Catalog {
	c := &Catalog{
		commands:      make(map[string]CommandBinding),
		events:        make(map[string]EventHandler),
		components:    make(map[string]InteractionHandler),
		tasks:         make(map[string]TaskHandler),
		errorHandlers: make(map[string]ErrorHandler),
		middleware:    make(map[string]MiddlewareFactory),
	}
	maps.Copy(c.middleware, builtinMiddleware)
	return c
}

// Command binds a command handler.
func (c *Catalog) Command(name string, run InteractionHandler) {
	b := c.commands[name]
	if b.Run != nil {
		slog.Warn("replaced command binding", "handler", name)
	}
	b.Run = run
	c.commands[name] = b
}

// Autocomplete binds the autocomplete handler of a command.
func (c *Catalog) Autocomplete(name string, fn InteractionHandler) {
	b := c.commands[name]
	b.Autocomplete = fn
	c.commands[name] = b
}

// Event binds an event handler.
func (c *Catalog) Event(name string, fn EventHandler) {
	warnReplaced(c.events, "event", name)
	c.events[name] = fn
}

// Component binds a button, modal or select menu handler.
func (c *Catalog) Component(name string, fn InteractionHandler) {
	warnReplaced(c.components, "component", name)
	c.components[name] = fn
}

// Task binds a scheduled task handler.
func (c *Catalog) Task(name string, fn TaskHandler) {
	warnReplaced(c.tasks, "task", name)
	c.tasks[name] = fn
}

// ErrorHandler binds an error handler.
func (c *Catalog) ErrorHandler(name string, fn ErrorHandler) {
	warnReplaced(c.errorHandlers, "error handler", name)
	c.errorHandlers[name] = fn
}

// Middleware makes a middleware factory available to command definitions.
func (c *Catalog) Middleware(name string, factory MiddlewareFactory) {
	warnReplaced(c.middleware, "middleware", name)
	c.middleware[name] = factory
}

func warnReplaced[V any](m map[string]V, kind, name string) {
	if _, ok := m[name]; ok {
		slog.Warn("replaced binding", "kind", kind, "handler", name)
	}
}
