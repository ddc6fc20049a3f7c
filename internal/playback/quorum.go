package playback

// Quorum decides when skip votes are enough to interrupt a clip.
// Either threshold passes the vote.
type Quorum struct {
	Votes      int
	Percentage int
}

// Evaluate returns the vote percentage and whether the vote passed.
// occupancy includes the bot, which is excluded from the percentage.
func (q Quorum) Evaluate(votes, occupancy int) (percentage int, passed bool) {
	listeners := max(occupancy-1, 1)
	percentage = (100*votes + listeners - 1) / listeners
	passed = votes >= q.Votes || percentage >= q.Percentage
	return percentage, passed
}

// VoteStatus is the result of a single skip vote.
type VoteStatus int

const (
	VoteNotPlaying VoteStatus = iota
	VoteAlreadyVoted
	VotePending
	VotePassed
)

func (s VoteStatus) String() string {
	switch s {
	case VoteNotPlaying:
		return "not_playing"
	case VoteAlreadyVoted:
		return "already_voted"
	case VotePending:
		return "pending"
	case VotePassed:
		return "passed"
	default:
		return "unknown"
	}
}

// VoteOutcome carries the tallies after a vote.
type VoteOutcome struct {
	Status VoteStatus
	// SelfSkip is set when the requester skipped their own clip.
	SelfSkip           bool
	Votes              int
	RequiredVotes      int
	Percentage         int
	RequiredPercentage int
}

// Err returns ErrNotPlaying or ErrAlreadyVoted when the vote was not
// counted, and nil otherwise.
func (o VoteOutcome) Err() error {
	switch o.Status {
	case VoteNotPlaying:
		return ErrNotPlaying
	case VoteAlreadyVoted:
		return ErrAlreadyVoted
	default:
		return nil
	}
}
