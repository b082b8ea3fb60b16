package domain

import (
	"fmt"
	"strings"
)

// ConfirmPrefix starts the custom id of every confirm button.
const ConfirmPrefix = "confirm_"

// ConfirmCustomID returns the custom id of a confirm button owned by userID.
func ConfirmCustomID(userID string) string {
	return ConfirmPrefix + userID
}

// ConfirmOwner returns the user id encoded in a confirm button's custom id.
func ConfirmOwner(customID string) (string, bool) {
	owner, ok := strings.CutPrefix(customID, ConfirmPrefix)
	if !ok || owner == "" {
		return "", false
	}
	return owner, true
}

// ConfirmReply is the answer to a confirm button click.
func ConfirmReply(username string, isOwner bool) string {
	if !isOwner {
		return "This button isn't for you."
	}
	return fmt.Sprintf("Button clicked by %s!", username)
}
