package presenters

import "fmt"

func NotAdminMessage(userID string) string {
	return mention(userID) + " isn't allowed to do that."
}

func ReloadedMessage(count int) string {
	plural := "s"
	if count == 1 {
		plural = ""
	}
	return fmt.Sprintf("Loaded %d clip%s.", count, plural)
}

const (
	SkippedMessage      = "Skipped the current clip."
	DisconnectedMessage = "Left the voice channel."
	NotConnectedMessage = "I'm not in a voice channel."
	CancelledMessage    = "Cancelled."
	ExpiredMessage      = "That prompt has expired."
	GuildOnlyMessage    = "Clips only work in servers."
	GenericErrorMessage = "Something went wrong, try again later."
)
