package commanddiff

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Update is a remote command whose definition must be replaced.
type Update struct {
	ID      string
	Command *discordgo.ApplicationCommand
}

// Deletion is a remote command with no local counterpart.
type Deletion struct {
	ID   string
	Name string
}

// Diff is the minimal set of remote operations that makes a scope match the
// local command set. It is a plain value; computing it performs no writes.
type Diff struct {
	ToCreate []*discordgo.ApplicationCommand
	ToUpdate []Update
	ToDelete []Deletion
}

// Empty reports whether the diff contains no operations.
func (d Diff) Empty() bool {
	return len(d.ToCreate) == 0 && len(d.ToUpdate) == 0 && len(d.ToDelete) == 0
}

func (d Diff) String() string {
	return fmt.Sprintf("+%d ~%d -%d", len(d.ToCreate), len(d.ToUpdate), len(d.ToDelete))
}

// Compute compares local definitions against the remote state of one scope.
//
// A local command with no remote entry of the same name is created, one whose
// name, description or options differ is updated in place, and a remote
// command whose name is not defined locally is deleted. Identical commands
// are left out.
func Compute(local, remote []*discordgo.ApplicationCommand) Diff {
	remoteByName := make(map[string]*discordgo.ApplicationCommand, len(remote))
	for _, cmd := range remote {
		if _, ok := remoteByName[cmd.Name]; !ok {
			remoteByName[cmd.Name] = cmd
		}
	}

	var diff Diff
	localNames := make(map[string]struct{}, len(local))
	for _, cmd := range local {
		localNames[cmd.Name] = struct{}{}

		existing, ok := remoteByName[cmd.Name]
		if !ok {
			diff.ToCreate = append(diff.ToCreate, cmd)
			continue
		}
		if !Equal(cmd, existing) {
			diff.ToUpdate = append(diff.ToUpdate, Update{ID: existing.ID, Command: cmd})
		}
	}

	for _, cmd := range remote {
		if _, ok := localNames[cmd.Name]; !ok {
			diff.ToDelete = append(diff.ToDelete, Deletion{ID: cmd.ID, Name: cmd.Name})
		}
	}

	return diff
}

// Equal reports whether two command definitions are the same as far as the
// remote registry is concerned: same name, same description and the same
// options in the same order.
func Equal(a, b *discordgo.ApplicationCommand) bool {
	if a.Name != b.Name || a.Description != b.Description {
		return false
	}
	return reflect.DeepEqual(shapeOptions(a.Options), shapeOptions(b.Options))
}

// optionShape is the comparable projection of a command option. Fields the
// registry fills in on its own (localizations, ids) are left out and numeric
// values are kept as strings so a YAML integer equals a JSON float.
type optionShape struct {
	Type         discordgo.ApplicationCommandOptionType
	Name         string
	Description  string
	Required     bool
	Autocomplete bool
	ChannelTypes []discordgo.ChannelType
	MinValue     string
	MaxValue     string
	MinLength    string
	MaxLength    string
	Choices      []choiceShape
	Options      []optionShape
}

type choiceShape struct {
	Name  string
	Value string
}

func shapeOptions(opts []*discordgo.ApplicationCommandOption) []optionShape {
	if len(opts) == 0 {
		return nil
	}

	shapes := make([]optionShape, 0, len(opts))
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		shape := optionShape{
			Type:         opt.Type,
			Name:         opt.Name,
			Description:  opt.Description,
			Required:     opt.Required,
			Autocomplete: opt.Autocomplete,
			Options:      shapeOptions(opt.Options),
		}
		if len(opt.ChannelTypes) > 0 {
			shape.ChannelTypes = opt.ChannelTypes
		}
		if opt.MinValue != nil {
			shape.MinValue = formatFloat(*opt.MinValue)
		}
		if opt.MaxValue != 0 {
			shape.MaxValue = formatFloat(opt.MaxValue)
		}
		if opt.MinLength != nil {
			shape.MinLength = strconv.Itoa(*opt.MinLength)
		}
		if opt.MaxLength != 0 {
			shape.MaxLength = strconv.Itoa(opt.MaxLength)
		}
		for _, choice := range opt.Choices {
			if choice == nil {
				continue
			}
			shape.Choices = append(shape.Choices, choiceShape{
				Name:  choice.Name,
				Value: formatValue(choice.Value),
			})
		}
		shapes = append(shapes, shape)
	}

	if len(shapes) == 0 {
		return nil
	}
	return shapes
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return formatFloat(n)
	case float32:
		return formatFloat(float64(n))
	case int:
		return formatFloat(float64(n))
	case int64:
		return formatFloat(float64(n))
	default:
		return fmt.Sprint(v)
	}
}
