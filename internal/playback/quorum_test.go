package playback_test

import (
	"errors"
	"testing"

	"github.com/glizzus/clipster/internal/playback"
)

func TestQuorumEvaluate(t *testing.T) {
	quorum := playback.Quorum{Votes: 3, Percentage: 33}

	tc := []struct {
		name           string
		votes          int
		occupancy      int
		wantPercentage int
		wantPassed     bool
	}{
		{
			name:           "two of six listeners passes on percentage",
			votes:          2,
			occupancy:      7,
			wantPercentage: 34,
			wantPassed:     true,
		},
		{
			name:           "one of six listeners is pending",
			votes:          1,
			occupancy:      7,
			wantPercentage: 17,
			wantPassed:     false,
		},
		{
			name:           "absolute count passes in a crowded channel",
			votes:          3,
			occupancy:      50,
			wantPercentage: 7,
			wantPassed:     true,
		},
		{
			name:           "bot alone never divides by zero",
			votes:          1,
			occupancy:      1,
			wantPercentage: 100,
			wantPassed:     true,
		},
		{
			name:           "empty channel reading is treated as one listener",
			votes:          1,
			occupancy:      0,
			wantPercentage: 100,
			wantPassed:     true,
		},
		{
			name:           "exact percentage boundary passes",
			votes:          1,
			occupancy:      4,
			wantPercentage: 34,
			wantPassed:     true,
		},
		{
			name:           "just below the boundary is pending",
			votes:          2,
			occupancy:      21,
			wantPercentage: 10,
			wantPassed:     false,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			percentage, passed := quorum.Evaluate(test.votes, test.occupancy)
			if percentage != test.wantPercentage || passed != test.wantPassed {
				t.Errorf("Evaluate(%d, %d) = (%d, %v), want (%d, %v)",
					test.votes, test.occupancy, percentage, passed, test.wantPercentage, test.wantPassed)
			}
		})
	}
}

func TestVoteOutcomeErr(t *testing.T) {
	tc := []struct {
		status playback.VoteStatus
		want   error
	}{
		{status: playback.VoteNotPlaying, want: playback.ErrNotPlaying},
		{status: playback.VoteAlreadyVoted, want: playback.ErrAlreadyVoted},
		{status: playback.VotePending, want: nil},
		{status: playback.VotePassed, want: nil},
	}

	for _, testCase := range tc {
		t.Run(testCase.status.String(), func(t *testing.T) {
			got := playback.VoteOutcome{Status: testCase.status}.Err()
			if !errors.Is(got, testCase.want) {
				t.Errorf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}
