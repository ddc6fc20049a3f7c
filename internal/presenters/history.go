package presenters

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/repository"
)

// WriteHistory prints play history as an aligned table.
func WriteHistory(w io.Writer, entries []repository.PlayLogEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No plays recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCLIP\tREQUESTER\tCHANNEL\tOUTCOME\tDURATION")
	for _, e := range entries {
		requester := e.RequesterID
		if requester == "" {
			requester = "-"
		}
		outcome := string(e.Outcome)
		if e.Error != "" {
			outcome += ": " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.UTC().Format(time.DateTime),
			e.ClipPath,
			requester,
			e.ChannelID,
			outcome,
			e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

func WriteTop(w io.Writer, counts []repository.ClipCount) error {
	if len(counts) == 0 {
		_, err := fmt.Fprintln(w, "No plays recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYS\tCLIP")
	for _, c := range counts {
		fmt.Fprintf(tw, "%d\t%s\n", c.Plays, c.ClipPath)
	}
	return tw.Flush()
}

func WriteClips(w io.Writer, groups []catalog.Group) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tCLIP\tPATH\tHELP")
	for _, g := range groups {
		for _, c := range g.Clips {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.Name, c.Name, c.Path, c.Help)
		}
	}
	return tw.Flush()
}
