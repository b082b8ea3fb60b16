package bot

import (
	"embed"
	"io/fs"
)

// Handler names of the built-in event listeners.
const (
	BuiltinDispatchInteraction = "builtin.dispatchInteraction"
	BuiltinUpdateCommandAPI    = "builtin.updateCommandAPI"
	BuiltinRegisterEmoji       = "builtin.registerEmoji"
)

//go:embed builtin
var builtinFiles embed.FS

// builtinDefinitions returns the built-in definition tree rooted so that its
// event listeners live under "events".
func builtinDefinitions() fs.FS {
	sub, err := fs.Sub(builtinFiles, "builtin")
	if err != nil {
		panic(err)
	}
	return sub
}
