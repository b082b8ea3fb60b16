package general

import (
	"github.com/sglre6355/dispatchbot/internal/bot"
	"github.com/sglre6355/dispatchbot/internal/modules/general/presentation"
)

// GeneralModule provides utility commands like /ping and the default error
// handlers.
type GeneralModule struct {
	pingHandler       *presentation.PingHandler
	middlewareHandler *presentation.ExampleMiddlewareHandler
	confirmHandler    *presentation.ConfirmHandler
	pongHandler       *presentation.PongHandler
}

// New creates a GeneralModule.
func New() *GeneralModule {
	return &GeneralModule{}
}

// Name returns the module name.
func (m *GeneralModule) Name() string {
	return "general"
}

// Init initializes the module.
func (m *GeneralModule) Init(_ bot.ModuleDependencies) error {
	m.pingHandler = presentation.NewPingHandler()
	m.middlewareHandler = presentation.NewExampleMiddlewareHandler()
	m.confirmHandler = presentation.NewConfirmHandler()
	m.pongHandler = presentation.NewPongHandler()
	return nil
}

// Bind registers the module's handlers.
func (m *GeneralModule) Bind(c *bot.Catalog) {
	c.Command("ping", m.pingHandler.Handle)
	c.Command("example-middleware", m.middlewareHandler.Handle)
	c.Component("confirm", m.confirmHandler.Handle)
	c.Event("pong", bot.On(m.pongHandler.HandleMessage))

	c.ErrorHandler("command", presentation.HandleCommandError)
	c.ErrorHandler("component", presentation.HandleComponentError)
	c.ErrorHandler("global", presentation.HandleGlobalError)
}

// Shutdown cleans up module resources.
func (m *GeneralModule) Shutdown() error {
	return nil
}
