package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/dispatchbot/internal/metrics"
	"github.com/sglre6355/dispatchbot/internal/scheduler"
)

// Paths locates each handler kind inside the definition tree.
type Paths struct {
	Commands      string
	Events        string
	Components    string
	Tasks         string
	ErrorHandlers string
}

// DefaultPaths returns the conventional layout.
func DefaultPaths() Paths {
	return Paths{
		Commands:      "commands",
		Events:        "events",
		Components:    "components",
		Tasks:         "tasks",
		ErrorHandlers: "errorHandlers",
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPaths overrides the definition tree layout.
func WithPaths(p Paths) RegistryOption {
	return func(r *Registry) { r.paths = p }
}

// WithBuiltins replaces the built-in definition tree. nil disables it.
func WithBuiltins(fsys fs.FS) RegistryOption {
	return func(r *Registry) { r.builtins = fsys }
}

// WithSession sets the session passed to task and error handlers.
func WithSession(s *discordgo.Session) RegistryOption {
	return func(r *Registry) { r.session = s }
}

// WithErrorSink sets the last-resort writer for unhandled errors.
func WithErrorSink(w io.Writer) RegistryOption {
	return func(r *Registry) { r.sink = w }
}

// WithRegistryMetrics sets the metrics errors and task runs are recorded in.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithSchedulerOptions passes options to the task scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) RegistryOption {
	return func(r *Registry) { r.schedulerOpts = append(r.schedulerOpts, opts...) }
}

// Registry discovers handler definitions, binds them to the catalog and
// holds the resulting lookup tables. The tables are built once by Init and
// only read afterwards.
type Registry struct {
	fsys     fs.FS
	builtins fs.FS
	catalog  *Catalog
	paths    Paths

	session       *discordgo.Session
	sink          io.Writer
	metrics       *metrics.Metrics
	schedulerOpts []scheduler.Option

	mu          sync.Mutex
	initialized bool

	commands      map[string]*Command
	commandOrder  []string
	events        map[string]*Event
	eventOrder    []string
	components    *ComponentRouter
	tasks         *scheduler.Scheduler
	errorHandlers *ErrorHandlers
}

// NewRegistry creates a registry over the definition tree fsys.
func NewRegistry(fsys fs.FS, catalog *Catalog, opts ...RegistryOption) *Registry {
	r := &Registry{
		fsys:       fsys,
		builtins:   builtinDefinitions(),
		catalog:    catalog,
		paths:      DefaultPaths(),
		commands:   make(map[string]*Command),
		events:     make(map[string]*Event),
		components: NewComponentRouter(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.errorHandlers = NewErrorHandlers(r.sink)
	if r.metrics != nil {
		r.errorHandlers.SetRecorder(r.metrics)
	}

	schedOpts := []scheduler.Option{
		scheduler.WithErrorHandler(func(task string, err error) {
			r.errorHandlers.Handle(r.session, err, TaskErrorContext{Task: task})
		}),
	}
	if r.metrics != nil {
		schedOpts = append(schedOpts, scheduler.WithRecorder(r.metrics))
	}
	r.tasks = scheduler.New(append(schedOpts, r.schedulerOpts...)...)

	return r
}

// Init runs the discovery passes: events (built-in, then user), commands,
// components (buttons, modals, selects), tasks and error handlers. It fails
// only when the commands or events directory is missing or unreadable.
// Calling Init again after a success logs a warning and does nothing.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		slog.Warn("skipped registry initialization", "reason", "already initialized")
		return nil
	}

	// A failed attempt may have registered some events already
	r.commands = make(map[string]*Command)
	r.commandOrder = nil
	r.events = make(map[string]*Event)
	r.eventOrder = nil

	if r.builtins != nil {
		if err := Read(r.builtins, "events", LoadDefinition[EventDefinition], r.addEvent); err != nil {
			return fmt.Errorf("failed to register built-in events: %w", err)
		}
	}
	if err := Read(r.fsys, r.paths.Events, LoadDefinition[EventDefinition], r.addEvent); err != nil {
		return fmt.Errorf("failed to register events: %w", err)
	}

	if err := Read(r.fsys, r.paths.Commands, LoadDefinition[CommandDefinition], r.addCommand); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	for _, c := range componentDirs {
		dir := path.Join(r.paths.Components, c.dir)
		kind := c.kind
		err := Read(r.fsys, dir, LoadDefinition[ComponentDefinition],
			func(node Node[ComponentDefinition], _ int) { r.addComponent(kind, node) })
		r.logOptional(dir, err)
	}

	r.logOptional(r.paths.Tasks,
		Read(r.fsys, r.paths.Tasks, LoadDefinition[TaskDefinition], r.addTask))

	r.logOptional(r.paths.ErrorHandlers,
		Read(r.fsys, r.paths.ErrorHandlers, LoadDefinition[ErrorHandlerDefinition], r.addErrorHandler))

	r.initialized = true
	slog.Info("initialized registry",
		"commands", len(r.commands),
		"events", len(r.events),
		"buttons", r.components.Len(ComponentButton),
		"modals", r.components.Len(ComponentModal),
		"selects", r.components.Len(ComponentSelect),
		"tasks", r.tasks.Len(),
	)

	return nil
}

// logOptional logs the outcome of reading a directory that may be absent.
func (r *Registry) logOptional(dir string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrDirectoryNotFound):
		slog.Info("skipped missing handler directory", "path", dir)
	default:
		slog.Error("failed to read handler directory", "path", dir, "error", err)
	}
}

func (r *Registry) reject(p string, err error) {
	slog.Error("skipped handler", "error", &RegistrationError{Path: p, Err: err})
}

func (r *Registry) addEvent(node Node[EventDefinition], depth int) {
	if depth == 0 {
		r.reject(node.Path, errors.New("event handlers must be inside a directory named after an event kind"))
		return
	}
	kind := node.ParentDir
	if !IsEventKind(kind) {
		r.reject(node.Path, fmt.Errorf("%w: %q", ErrUnknownEvent, kind))
		return
	}

	name := orDefault(node.Payload.Handler, node.Name)
	fn, ok := r.catalog.events[name]
	if !ok {
		r.reject(node.Path, fmt.Errorf("%w: event handler %q", ErrUnboundHandler, name))
		return
	}

	ev, ok := r.events[kind]
	if !ok {
		ev = &Event{Kind: kind}
		r.events[kind] = ev
		r.eventOrder = append(r.eventOrder, kind)
	}
	ev.add(&EventListener{
		Name:    name,
		Path:    node.Path,
		Once:    node.Payload.Once,
		Handler: fn,
	})

	slog.Debug("registered event handler", "event", kind, "handler", name, "once", node.Payload.Once)
}

func (r *Registry) addCommand(node Node[CommandDefinition], depth int) {
	def := node.Payload
	def.Name = orDefault(def.Name, node.Name)

	handlerName := orDefault(def.Handler, def.Name)
	binding := r.catalog.commands[handlerName]
	if binding.Run == nil {
		r.reject(node.Path, fmt.Errorf("%w: command handler %q", ErrUnboundHandler, handlerName))
		return
	}

	appCmd, err := def.ApplicationCommand()
	if err != nil {
		r.reject(node.Path, err)
		return
	}
	userPerms, err := ParsePermissions(def.Permissions.User)
	if err != nil {
		r.reject(node.Path, err)
		return
	}
	botPerms, err := ParsePermissions(def.Permissions.Bot)
	if err != nil {
		r.reject(node.Path, err)
		return
	}
	chain, err := r.buildChain(def.Middleware)
	if err != nil {
		r.reject(node.Path, err)
		return
	}

	cmd := &Command{
		Name:            def.Name,
		Path:            node.Path,
		Definition:      appCmd,
		DevOnly:         def.DevOnly,
		Deleted:         def.Deleted,
		UserPermissions: userPerms,
		BotPermissions:  botPerms,
		Middleware:      chain,
		Run:             binding.Run,
		Autocomplete:    binding.Autocomplete,
	}
	if depth > 0 {
		cmd.Category = node.ParentDir
	}

	if prev, ok := r.commands[cmd.Name]; ok {
		slog.Warn("overwrote duplicate command",
			"command", cmd.Name, "path", cmd.Path, "previous_path", prev.Path)
	} else {
		r.commandOrder = append(r.commandOrder, cmd.Name)
	}
	r.commands[cmd.Name] = cmd

	slog.Debug("registered command", "command", cmd.Name, "category", cmd.Category)
}

func (r *Registry) buildChain(specs []MiddlewareSpec) ([]Middleware, error) {
	chain := make([]Middleware, 0, len(specs))
	for _, spec := range specs {
		factory, ok := r.catalog.middleware[spec.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMiddleware, spec.Name)
		}
		mw, err := factory(spec.Args...)
		if err != nil {
			return nil, fmt.Errorf("middleware %q: %w", spec.Name, err)
		}
		chain = append(chain, mw)
	}
	return chain, nil
}

func (r *Registry) addComponent(kind ComponentKind, node Node[ComponentDefinition]) {
	customID := orDefault(node.Payload.CustomID, node.Name)
	name := orDefault(node.Payload.Handler, node.Name)

	fn, ok := r.catalog.components[name]
	if !ok {
		r.reject(node.Path, fmt.Errorf("%w: component handler %q", ErrUnboundHandler, name))
		return
	}

	r.components.Register(kind, customID, fn)
	slog.Debug("registered component handler", "kind", kind, "custom_id", customID, "handler", name)
}

func (r *Registry) addTask(node Node[TaskDefinition], _ int) {
	def := node.Payload
	name := orDefault(def.Handler, node.Name)

	fn, ok := r.catalog.tasks[name]
	if !ok {
		r.reject(node.Path, fmt.Errorf("%w: task handler %q", ErrUnboundHandler, name))
		return
	}

	r.tasks.Register(node.Name, scheduler.Task{
		Name:       def.Name,
		Schedule:   def.Schedule,
		RunOnStart: def.RunOnStart,
		Run: func(ctx context.Context) error {
			return fn(ctx, r.session)
		},
	})
	slog.Debug("registered task", "task", node.Name, "schedule", def.Schedule)
}

func (r *Registry) addErrorHandler(node Node[ErrorHandlerDefinition], _ int) {
	name := orDefault(node.Payload.Handler, node.Name)
	fn, ok := r.catalog.errorHandlers[name]
	if !ok {
		r.reject(node.Path, fmt.Errorf("%w: error handler %q", ErrUnboundHandler, name))
		return
	}

	if node.Name == globalHandlerName {
		r.errorHandlers.SetGlobal(fn)
		slog.Debug("registered global error handler", "handler", name)
		return
	}

	kind := ErrorKind(node.Name)
	if !slices.Contains(errorKinds, kind) {
		r.reject(node.Path, fmt.Errorf("unknown error context kind %q", node.Name))
		return
	}
	r.errorHandlers.Set(kind, fn)
	slog.Debug("registered error handler", "kind", kind, "handler", name)
}

// Command returns the command registered under name.
func (r *Registry) Command(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.commandOrder))
	for _, name := range r.commandOrder {
		out = append(out, r.commands[name])
	}
	return out
}

// Event returns the listeners registered for kind.
func (r *Registry) Event(kind string) (*Event, bool) {
	ev, ok := r.events[kind]
	return ev, ok
}

// Events returns the events with at least one listener, in registration order.
func (r *Registry) Events() []*Event {
	out := make([]*Event, 0, len(r.eventOrder))
	for _, kind := range r.eventOrder {
		out = append(out, r.events[kind])
	}
	return out
}

// Components returns the component router.
func (r *Registry) Components() *ComponentRouter {
	return r.components
}

// Tasks returns the task scheduler.
func (r *Registry) Tasks() *scheduler.Scheduler {
	return r.tasks
}

// ErrorHandlers returns the error handler registry.
func (r *Registry) ErrorHandlers() *ErrorHandlers {
	return r.errorHandlers
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
