package presenters

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/playback"
)

func VoteMessage(voterID string, outcome playback.VoteOutcome) string {
	switch err := outcome.Err(); {
	case errors.Is(err, playback.ErrNotPlaying):
		return "I'm not speaking at the moment."
	case errors.Is(err, playback.ErrAlreadyVoted):
		return mention(voterID) + " has already voted!"
	}

	switch {
	case outcome.SelfSkip:
		return mention(voterID) + " skipped their own audio."
	case outcome.Status == playback.VotePassed:
		return "Skip vote passed, skipping current audio."
	default:
		return fmt.Sprintf(
			"Skip vote added, currently at %d/%d or %d%%/%d%%",
			outcome.Votes, outcome.RequiredVotes,
			outcome.Percentage, outcome.RequiredPercentage,
		)
	}
}

// PlayErrorMessage renders why a clip requested by requesterID could not be
// played.
func PlayErrorMessage(requesterID string, err error) string {
	var (
		permErr    *playback.PermissionError
		presentErr *playback.AlreadyPresentError
		timeoutErr *playback.ConnectionTimeoutError
		sourceErr  *playback.InvalidAudioSourceError
	)

	who := mention(requesterID)
	switch {
	case errors.As(err, &permErr):
		var missing []string
		if !permErr.CanConnect {
			missing = append(missing, "connect to that channel")
		}
		if !permErr.CanSpeak {
			missing = append(missing, "speak in that channel")
		}
		return fmt.Sprintf("Sorry %s, I don't have permission to %s.", who, strings.Join(missing, " or "))
	case errors.As(err, &presentErr):
		return fmt.Sprintf("Uh oh %s, looks like I'm still in the channel! Wait until I disconnect before trying again.", who)
	case errors.As(err, &timeoutErr):
		return fmt.Sprintf("Sorry %s, I can't connect to that channel right now.", who)
	case errors.As(err, &sourceErr):
		return fmt.Sprintf("Sorry %s, I can't play that clip right now.", who)
	case errors.Is(err, playback.ErrClosed):
		return fmt.Sprintf("Sorry %s, I'm shutting down.", who)
	default:
		return fmt.Sprintf("Sorry %s, something went wrong playing that clip.", who)
	}
}

func NotInVoiceMessage(userID string) string {
	return mention(userID) + " isn't in a voice channel."
}

// TargetNotInVoiceMessage is sent to requesterID when the member they
// picked is not in a voice channel.
func TargetNotInVoiceMessage(requesterID string) string {
	return "Sorry " + mention(requesterID) + ", that person isn't in a voice channel."
}

func UnknownClipMessage(name string) string {
	return fmt.Sprintf("I don't know a clip called `%s`.", name)
}

func BlockedClipMessage(name string) string {
	return fmt.Sprintf("`%s` has been blocked by an admin.", name)
}

func RateLimitedMessage(userID string) string {
	return fmt.Sprintf("Slow down %s, you're requesting clips too quickly.", mention(userID))
}

func QueuedMessage(clip catalog.Clip) string {
	return fmt.Sprintf("Queued `%s`.", clip.Name)
}

// FoundMessage answers a search; ok is false when nothing matched.
func FoundMessage(query string, clip catalog.Clip, ok bool) string {
	if !ok {
		return fmt.Sprintf("Couldn't find anything like `%s`.", query)
	}
	if clip.Help != "" {
		return fmt.Sprintf("Found `%s`: %s", clip.Name, clip.Help)
	}
	return fmt.Sprintf("Found `%s`.", clip.Name)
}

func StatusMessage(s playback.Snapshot) string {
	if s.Active == nil {
		return "Nothing is playing."
	}
	return fmt.Sprintf("Playing `%s` with %d queued and %d skip votes.", s.Active.FilePath, s.QueueLength, s.Votes)
}
