// Package app assembles the bot: its definition tree and its modules.
package app

import (
	"embed"
	"io/fs"

	"github.com/sglre6355/dispatchbot/internal/bot"
	"github.com/sglre6355/dispatchbot/internal/modules/general"
	"github.com/sglre6355/dispatchbot/internal/modules/guilds"
)

//go:embed all:definitions
var definitions embed.FS

// Definitions returns the definition tree, rooted so that commands/,
// events/ and the other handler directories are at its top level.
func Definitions() fs.FS {
	sub, err := fs.Sub(definitions, "definitions")
	if err != nil {
		panic(err)
	}
	return sub
}

// Modules returns a fresh instance of every module, in initialization order.
func Modules() []bot.Module {
	return []bot.Module{
		general.New(),
		guilds.New(),
	}
}
