package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/sglre6355/dispatchbot/internal/commanddiff"
	"github.com/sglre6355/dispatchbot/internal/metrics"
)

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config      *Config
	definitions fs.FS
	session     *discordgo.Session
	modules     []Module
	catalog     *Catalog
	metrics     *metrics.Metrics
	db          *sql.DB
	emojis      *Emojis

	registry   *Registry
	dispatcher *Dispatcher
	prepared   bool
}

// NewBot creates a new Bot that discovers its handlers in definitions.
func NewBot(cfg *Config, definitions fs.FS, modules ...Module) *Bot {
	return &Bot{
		config:      cfg,
		definitions: definitions,
		modules:     modules,
		catalog:     NewCatalog(),
		emojis:      NewEmojis(),
	}
}

// SetMetrics sets the instruments the bot records into.
func (b *Bot) SetMetrics(m *metrics.Metrics) {
	b.metrics = m
}

// SetDatabase sets the database handed to modules. Must be called before Prepare.
func (b *Bot) SetDatabase(db *sql.DB) {
	b.db = db
}

// Session returns the Discord session, or nil before Prepare.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Emojis returns the application emoji store.
func (b *Bot) Emojis() *Emojis {
	return b.emojis
}

// Registry returns the handler registry, or nil before Prepare.
func (b *Bot) Registry() *Registry {
	return b.registry
}

// Prepare creates the session, initializes modules and builds the registry
// without connecting to the gateway.
func (b *Bot) Prepare() error {
	if b.prepared {
		return nil
	}

	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	intents, err := b.config.GatewayIntents()
	if err != nil {
		return err
	}
	session.Identify.Intents = intents
	b.session = session

	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	b.bindBuiltins()
	for _, mod := range b.modules {
		mod.Bind(b.catalog)
	}

	b.registry = NewRegistry(b.definitions, b.catalog,
		WithSession(session),
		WithRegistryMetrics(b.metrics),
	)
	if err := b.registry.Init(); err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}

	b.dispatcher = NewDispatcher(b.registry, b.metrics)
	b.attachEvents()

	b.prepared = true
	return nil
}

// Start prepares the bot and connects to Discord. Commands are synced and
// tasks started once the gateway reports ready.
func (b *Bot) Start() error {
	if err := b.Prepare(); err != nil {
		return err
	}

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
	)

	return nil
}

// Stop gracefully shuts down the bot: tasks are stopped, in-flight
// interactions drained, modules shut down and the gateway closed.
func (b *Bot) Stop(ctx context.Context) error {
	var errs []error

	if b.registry != nil {
		if err := b.registry.Tasks().Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if b.dispatcher != nil {
		if err := b.dispatcher.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	if b.session != nil {
		if err := b.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// initModules loads module configuration and initializes all modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Session: b.session,
		Config:  b.config,
		DB:      b.db,
		Emojis:  b.emojis,
	}

	for _, mod := range b.modules {
		if cm, ok := mod.(ConfigurableModule); ok {
			if err := cm.LoadConfig(); err != nil {
				return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
			}
		}
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// bindBuiltins binds the listeners of the built-in definition tree.
func (b *Bot) bindBuiltins() {
	b.catalog.Event(BuiltinDispatchInteraction, On(func(s *discordgo.Session, i *discordgo.InteractionCreate) error {
		b.dispatcher.HandleInteraction(s, i)
		return nil
	}))
	b.catalog.Event(BuiltinUpdateCommandAPI, On(b.onReady))
	b.catalog.Event(BuiltinRegisterEmoji, On(b.registerEmoji))
}

// registerEmoji loads the application emojis after the first ready event.
func (b *Bot) registerEmoji(s *discordgo.Session, _ *discordgo.Ready) error {
	appID, err := b.applicationID()
	if err != nil {
		return err
	}
	return b.emojis.Init(context.Background(), SessionEmojiFetcher(s), appID)
}

// attachEvents subscribes the dispatcher to every event kind that has listeners.
func (b *Bot) attachEvents() {
	for _, ev := range b.registry.Events() {
		kind := ev.Kind
		b.session.AddHandler(eventAdapters[kind](func(s *discordgo.Session, payload any) {
			b.dispatcher.DispatchEvent(s, kind, payload)
		}))
	}
}

// onReady syncs commands and starts the scheduler after the first ready event.
func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) error {
	slog.Info("received ready", "guilds", len(r.Guilds))

	ctx := context.Background()
	syncErr := b.SyncCommands(ctx)
	if err := b.registry.Tasks().Start(ctx); err != nil {
		return errors.Join(syncErr, fmt.Errorf("failed to start tasks: %w", err))
	}
	return syncErr
}

// SyncCommands reconciles the remote command registry with the registered commands.
func (b *Bot) SyncCommands(ctx context.Context) error {
	cs, deployments, err := b.commandSync()
	if err != nil {
		return err
	}
	if err := cs.Sync(ctx, deployments); err != nil {
		return fmt.Errorf("failed to sync commands: %w", err)
	}
	slog.Info("synced commands", "scopes", len(deployments), "smart", b.config.UseSmartCommandDeployment)
	return nil
}

// DiffCommands returns the pending command changes of every scope without
// applying them.
func (b *Bot) DiffCommands(ctx context.Context) ([]ScopeDiff, error) {
	cs, deployments, err := b.commandSync()
	if err != nil {
		return nil, err
	}
	return cs.Diff(ctx, deployments)
}

func (b *Bot) commandSync() (*CommandSync, []Deployment, error) {
	if b.registry == nil {
		return nil, nil, errors.New("bot is not prepared")
	}

	appID, err := b.applicationID()
	if err != nil {
		return nil, nil, err
	}

	engine := commanddiff.NewEngine(b.session, appID, commanddiff.WithRecorder(b.metrics))
	deployments := PlanDeployments(b.registry.Commands(), b.config.DevGuildIDs)

	return NewCommandSync(engine, b.config.UseSmartCommandDeployment), deployments, nil
}

// applicationID returns the bot's application id, asking the REST API when
// the gateway is not connected.
func (b *Bot) applicationID() (string, error) {
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID, nil
	}
	user, err := b.session.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch application id: %w", err)
	}
	return user.ID, nil
}
