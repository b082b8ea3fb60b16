package bot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/yaml.v3"
)

// CommandDefinition is the document describing one application command.
type CommandDefinition struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Type        string                `yaml:"type"`
	Handler     string                `yaml:"handler"`
	DevOnly     bool                  `yaml:"devOnly"`
	Deleted     bool                  `yaml:"deleted"`
	NSFW        bool                  `yaml:"nsfw"`
	Contexts    []string              `yaml:"contexts"`
	Permissions PermissionsDefinition `yaml:"permissions"`
	Middleware  []MiddlewareSpec      `yaml:"middleware"`
	Options     []OptionDefinition    `yaml:"options"`
}

// PermissionsDefinition lists permission names, e.g. "ManageGuild".
type PermissionsDefinition struct {
	// User is checked against the invoking member before the handler runs.
	User []string `yaml:"user"`
	// Bot is checked against the bot's permissions in the channel.
	Bot []string `yaml:"bot"`
	// Default sets the command's default member permissions.
	Default []string `yaml:"default"`
}

// OptionDefinition describes a command option or subcommand.
type OptionDefinition struct {
	Type         string             `yaml:"type"`
	Name         string             `yaml:"name"`
	Description  string             `yaml:"description"`
	Required     bool               `yaml:"required"`
	Autocomplete bool               `yaml:"autocomplete"`
	Choices      []ChoiceDefinition `yaml:"choices"`
	Options      []OptionDefinition `yaml:"options"`
	MinValue     *float64           `yaml:"minValue"`
	MaxValue     float64            `yaml:"maxValue"`
	MinLength    *int               `yaml:"minLength"`
	MaxLength    int                `yaml:"maxLength"`
}

// ChoiceDefinition is one fixed choice of an option.
type ChoiceDefinition struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

// MiddlewareSpec names a middleware and its arguments. In YAML it is either
// a bare name ("guildOnly") or a single-key mapping whose value is a scalar
// or a list ({cooldown: 5s}, {requireRole: ["1", "2"]}).
type MiddlewareSpec struct {
	Name string
	Args []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MiddlewareSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		m.Name = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: middleware entry must have exactly one key", node.Line)
		}
		m.Name = node.Content[0].Value

		value := node.Content[1]
		switch value.Kind {
		case yaml.ScalarNode:
			m.Args = []string{value.Value}
		case yaml.SequenceNode:
			for _, item := range value.Content {
				if item.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: middleware arguments must be scalars", item.Line)
				}
				m.Args = append(m.Args, item.Value)
			}
		default:
			return fmt.Errorf("line %d: invalid arguments for middleware %q", value.Line, m.Name)
		}
		return nil
	default:
		return fmt.Errorf("line %d: invalid middleware entry", node.Line)
	}
}

// EventDefinition binds a handler to the event kind named by its directory.
type EventDefinition struct {
	Handler string `yaml:"handler"`
	Once    bool   `yaml:"once"`
}

// ComponentDefinition binds a handler to a custom id or custom id pattern.
type ComponentDefinition struct {
	CustomID string `yaml:"customId"`
	Handler  string `yaml:"handler"`
}

// TaskDefinition describes a scheduled task.
type TaskDefinition struct {
	Name       string `yaml:"name"`
	Schedule   string `yaml:"schedule"`
	RunOnStart bool   `yaml:"runOnStart"`
	Handler    string `yaml:"handler"`
}

// ErrorHandlerDefinition binds a handler to the error context kind named by its file.
type ErrorHandlerDefinition struct {
	Handler string `yaml:"handler"`
}

// LoadDefinition decodes the YAML document at p into a T. Unknown keys are
// rejected and an empty document yields the zero value.
func LoadDefinition[T any](fsys fs.FS, p string) (T, error) {
	var def T

	f, err := fsys.Open(p)
	if err != nil {
		return def, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
		return def, fmt.Errorf("failed to decode %s: %w", p, err)
	}

	return def, nil
}

var commandTypes = map[string]discordgo.ApplicationCommandType{
	"":        discordgo.ChatApplicationCommand,
	"chat":    discordgo.ChatApplicationCommand,
	"user":    discordgo.UserApplicationCommand,
	"message": discordgo.MessageApplicationCommand,
}

var optionTypes = map[string]discordgo.ApplicationCommandOptionType{
	"subCommand":      discordgo.ApplicationCommandOptionSubCommand,
	"subCommandGroup": discordgo.ApplicationCommandOptionSubCommandGroup,
	"string":          discordgo.ApplicationCommandOptionString,
	"integer":         discordgo.ApplicationCommandOptionInteger,
	"boolean":         discordgo.ApplicationCommandOptionBoolean,
	"user":            discordgo.ApplicationCommandOptionUser,
	"channel":         discordgo.ApplicationCommandOptionChannel,
	"role":            discordgo.ApplicationCommandOptionRole,
	"mentionable":     discordgo.ApplicationCommandOptionMentionable,
	"number":          discordgo.ApplicationCommandOptionNumber,
	"attachment":      discordgo.ApplicationCommandOptionAttachment,
}

var interactionContexts = map[string]discordgo.InteractionContextType{
	"guild":          discordgo.InteractionContextGuild,
	"botDM":          discordgo.InteractionContextBotDM,
	"privateChannel": discordgo.InteractionContextPrivateChannel,
}

// ApplicationCommand converts the definition into the payload sent to the
// command registry. Name must already be resolved.
func (d *CommandDefinition) ApplicationCommand() (*discordgo.ApplicationCommand, error) {
	cmdType, ok := commandTypes[d.Type]
	if !ok {
		return nil, fmt.Errorf("unknown command type %q", d.Type)
	}

	cmd := &discordgo.ApplicationCommand{
		Type:        cmdType,
		Name:        d.Name,
		Description: d.Description,
	}

	if d.NSFW {
		nsfw := true
		cmd.NSFW = &nsfw
	}

	if len(d.Contexts) > 0 {
		contexts := make([]discordgo.InteractionContextType, 0, len(d.Contexts))
		for _, name := range d.Contexts {
			c, ok := interactionContexts[name]
			if !ok {
				return nil, fmt.Errorf("unknown interaction context %q", name)
			}
			contexts = append(contexts, c)
		}
		cmd.Contexts = &contexts
	}

	if len(d.Permissions.Default) > 0 {
		perms, err := ParsePermissions(d.Permissions.Default)
		if err != nil {
			return nil, err
		}
		cmd.DefaultMemberPermissions = &perms
	}

	options, err := convertOptions(d.Options)
	if err != nil {
		return nil, err
	}
	cmd.Options = options

	return cmd, nil
}

func convertOptions(defs []OptionDefinition) ([]*discordgo.ApplicationCommandOption, error) {
	if len(defs) == 0 {
		return nil, nil
	}

	options := make([]*discordgo.ApplicationCommandOption, 0, len(defs))
	for _, def := range defs {
		optType, ok := optionTypes[def.Type]
		if !ok {
			return nil, fmt.Errorf("option %q: unknown type %q", def.Name, def.Type)
		}

		sub, err := convertOptions(def.Options)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", def.Name, err)
		}

		opt := &discordgo.ApplicationCommandOption{
			Type:         optType,
			Name:         def.Name,
			Description:  def.Description,
			Required:     def.Required,
			Autocomplete: def.Autocomplete,
			Options:      sub,
			MinValue:     def.MinValue,
			MaxValue:     def.MaxValue,
			MinLength:    def.MinLength,
			MaxLength:    def.MaxLength,
		}
		for _, choice := range def.Choices {
			opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  choice.Name,
				Value: choice.Value,
			})
		}

		options = append(options, opt)
	}

	return options, nil
}
