package commanddiff

// Scope partitions the remote command namespace. The zero value is the
// global scope.
type Scope struct {
	guildID string
}

// Global returns the application-wide scope.
func Global() Scope {
	return Scope{}
}

// Guild returns the scope of a single guild.
func Guild(guildID string) Scope {
	return Scope{guildID: guildID}
}

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool {
	return s.guildID == ""
}

// GuildID returns the guild of a guild scope, or "" for the global scope.
// The empty string is what the REST routes expect for global commands.
func (s Scope) GuildID() string {
	return s.guildID
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "guild:" + s.guildID
}
