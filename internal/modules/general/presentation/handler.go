package presentation

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/dispatchbot/internal/bot"
	"github.com/sglre6355/dispatchbot/internal/modules/general/application"
	"github.com/sglre6355/dispatchbot/internal/modules/general/domain"
)

// PingHandler handles the /ping command.
type PingHandler struct {
	interactor *application.PingInteractor
	now        func() time.Time
}

// NewPingHandler creates a new PingHandler.
func NewPingHandler() *PingHandler {
	return &PingHandler{
		interactor: application.NewPingInteractor(),
		now:        time.Now,
	}
}

// Handle replies, then edits the reply with the measured latencies.
func (h *PingHandler) Handle(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	if err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Pinging...",
		},
	}); err != nil {
		return err
	}
	repliedAt := h.now()

	createdAt := repliedAt
	if id, err := snowflake.Parse(i.ID); err == nil {
		createdAt = id.Time()
	}

	var apiLatency time.Duration
	if s != nil {
		apiLatency = s.HeartbeatLatency()
	}

	result := h.interactor.Execute(createdAt, repliedAt, apiLatency)
	return r.Edit(&discordgo.WebhookEdit{Content: &result.Message})
}

// ExampleMiddlewareHandler handles the /example-middleware command.
type ExampleMiddlewareHandler struct{}

// NewExampleMiddlewareHandler creates a new ExampleMiddlewareHandler.
func NewExampleMiddlewareHandler() *ExampleMiddlewareHandler {
	return &ExampleMiddlewareHandler{}
}

// Handle replies with a confirm button owned by the invoking user.
func (h *ExampleMiddlewareHandler) Handle(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "This command has middleware! Try running it again quickly.",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Confirm",
							Style:    discordgo.PrimaryButton,
							CustomID: domain.ConfirmCustomID(invoker(i).ID),
						},
					},
				},
			},
		},
	})
}

// ConfirmHandler handles clicks on confirm buttons.
type ConfirmHandler struct{}

// NewConfirmHandler creates a new ConfirmHandler.
func NewConfirmHandler() *ConfirmHandler {
	return &ConfirmHandler{}
}

// Handle answers the click privately.
func (h *ConfirmHandler) Handle(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	user := invoker(i)
	owner, ok := domain.ConfirmOwner(i.MessageComponentData().CustomID)

	return bot.Reply(r, domain.ConfirmReply(user.Username, ok && owner == user.ID), true)
}

// PongHandler handles messages containing the 🏓 emoji.
type PongHandler struct{}

// NewPongHandler creates a new PongHandler.
func NewPongHandler() *PongHandler {
	return &PongHandler{}
}

// MessageSender sends channel messages. *discordgo.Session satisfies it.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// HandleMessage is the event handler for messageCreate events.
func (h *PongHandler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) error {
	selfID := ""
	if s != nil && s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	return h.respond(s, selfID, m)
}

func (h *PongHandler) respond(sender MessageSender, selfID string, m *discordgo.MessageCreate) error {
	// Ignore messages from bots, including this one
	if m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return nil
	}

	result := domain.NewPongResult(m.Content)
	if !result.ShouldRespond {
		return nil
	}
	if _, err := sender.ChannelMessageSend(m.ChannelID, result.Response); err != nil {
		slog.Error("failed to send message", "channel", m.ChannelID, "error", err)
		return err
	}
	return nil
}

// invoker returns the user behind an interaction.
func invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}
