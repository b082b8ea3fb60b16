package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// permissionTable lists the permission names accepted in definitions, in
// the order they are reported as missing.
var permissionTable = []struct {
	name string
	bit  int64
}{
	{"CreateInstantInvite", discordgo.PermissionCreateInstantInvite},
	{"KickMembers", discordgo.PermissionKickMembers},
	{"BanMembers", discordgo.PermissionBanMembers},
	{"Administrator", discordgo.PermissionAdministrator},
	{"ManageChannels", discordgo.PermissionManageChannels},
	{"ManageGuild", discordgo.PermissionManageGuild},
	{"AddReactions", discordgo.PermissionAddReactions},
	{"ViewAuditLog", discordgo.PermissionViewAuditLogs},
	{"PrioritySpeaker", discordgo.PermissionVoicePrioritySpeaker},
	{"Stream", discordgo.PermissionVoiceStreamVideo},
	{"ViewChannel", discordgo.PermissionViewChannel},
	{"SendMessages", discordgo.PermissionSendMessages},
	{"SendTTSMessages", discordgo.PermissionSendTTSMessages},
	{"ManageMessages", discordgo.PermissionManageMessages},
	{"EmbedLinks", discordgo.PermissionEmbedLinks},
	{"AttachFiles", discordgo.PermissionAttachFiles},
	{"ReadMessageHistory", discordgo.PermissionReadMessageHistory},
	{"MentionEveryone", discordgo.PermissionMentionEveryone},
	{"UseExternalEmojis", discordgo.PermissionUseExternalEmojis},
	{"ViewGuildInsights", discordgo.PermissionViewGuildInsights},
	{"Connect", discordgo.PermissionVoiceConnect},
	{"Speak", discordgo.PermissionVoiceSpeak},
	{"MuteMembers", discordgo.PermissionVoiceMuteMembers},
	{"DeafenMembers", discordgo.PermissionVoiceDeafenMembers},
	{"MoveMembers", discordgo.PermissionVoiceMoveMembers},
	{"UseVAD", discordgo.PermissionVoiceUseVAD},
	{"ChangeNickname", discordgo.PermissionChangeNickname},
	{"ManageNicknames", discordgo.PermissionManageNicknames},
	{"ManageRoles", discordgo.PermissionManageRoles},
	{"ManageWebhooks", discordgo.PermissionManageWebhooks},
	{"ManageGuildExpressions", discordgo.PermissionManageGuildExpressions},
	{"UseApplicationCommands", discordgo.PermissionUseApplicationCommands},
	{"RequestToSpeak", discordgo.PermissionVoiceRequestToSpeak},
	{"ManageEvents", discordgo.PermissionManageEvents},
	{"ManageThreads", discordgo.PermissionManageThreads},
	{"CreatePublicThreads", discordgo.PermissionCreatePublicThreads},
	{"CreatePrivateThreads", discordgo.PermissionCreatePrivateThreads},
	{"UseExternalStickers", discordgo.PermissionUseExternalStickers},
	{"SendMessagesInThreads", discordgo.PermissionSendMessagesInThreads},
	{"UseEmbeddedActivities", discordgo.PermissionUseEmbeddedActivities},
	{"ModerateMembers", discordgo.PermissionModerateMembers},
	{"SendVoiceMessages", discordgo.PermissionSendVoiceMessages},
	{"SendPolls", discordgo.PermissionSendPolls},
}

// ParsePermissions combines permission names into a bit set.
func ParsePermissions(names []string) (int64, error) {
	var bits int64
	for _, name := range names {
		found := false
		for _, p := range permissionTable {
			if strings.EqualFold(p.name, name) {
				bits |= p.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
		}
	}
	return bits, nil
}

// PermissionNames returns the names of the permissions set in bits.
func PermissionNames(bits int64) []string {
	var names []string
	for _, p := range permissionTable {
		if bits&p.bit != 0 {
			names = append(names, p.name)
			bits &^= p.bit
		}
	}
	return names
}

// missingPermissions returns the bits of want not covered by have.
// Administrator covers everything.
func missingPermissions(have, want int64) int64 {
	if have&discordgo.PermissionAdministrator != 0 {
		return 0
	}
	return want &^ have
}

// missingUserPermissions returns the permissions the invoking member lacks.
// Outside a guild there is no member, so every permission is missing.
func missingUserPermissions(i *discordgo.InteractionCreate, want int64) int64 {
	if want == 0 {
		return 0
	}
	if i.Member == nil {
		return want
	}
	return missingPermissions(i.Member.Permissions, want)
}

// missingBotPermissions returns the permissions the bot lacks in the
// interaction's channel. Outside a guild every permission is missing.
func missingBotPermissions(i *discordgo.InteractionCreate, want int64) int64 {
	if want == 0 {
		return 0
	}
	if i.GuildID == "" {
		return want
	}
	return missingPermissions(i.AppPermissions, want)
}
