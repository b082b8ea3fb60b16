package bot

import "github.com/bwmarrin/discordgo"

// Command is a registered application command.
type Command struct {
	Name     string
	Category string
	// Path is the definition file the command was registered from.
	Path string

	Definition *discordgo.ApplicationCommand
	DevOnly    bool
	Deleted    bool

	UserPermissions int64
	BotPermissions  int64
	Middleware      []Middleware

	Run          InteractionHandler
	Autocomplete InteractionHandler
}
