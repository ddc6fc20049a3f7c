package e2e_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/glizzus/clipster/e2e"
	"github.com/glizzus/clipster/internal/generator"
	"github.com/glizzus/clipster/internal/handler"
	"github.com/glizzus/clipster/internal/playback"
	"github.com/glizzus/clipster/internal/presenters"
	"github.com/glizzus/clipster/internal/repository"
)

func clipCommand(guildID, userID, clip string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: "general",
			Member:    &discordgo.Member{User: &discordgo.User{ID: userID}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: handler.CommandClip,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: clip},
				},
			},
		},
	}
}

type noAdmins struct{}

func (noAdmins) IsAdmin(string) bool { return false }

func TestClipCommandCountsTowardsTop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	connStr := e2e.UsePostgres(t)
	repo := e2e.GetRepository(t, connStr)

	clips := e2e.NewCatalog(t)
	voice := e2e.NewFakeVoice("lobby")
	orchestrator := playback.New(playback.Config{}, playback.Dependencies{
		Gateway: voice,
		Opener:  clips,
		Audit:   repo,
	})
	t.Cleanup(func() { _ = orchestrator.Close() })

	handle := handler.NewInteractionHandler(handler.Dependencies{
		Player: orchestrator,
		Clips:  clips,
		Voice:  voice,
		Admins: noAdmins{},
		IDs:    &generator.UUIDV4Generator{},
	})

	guildID := uuid.NewString()
	requests := []struct {
		userID string
		clip   string
	}{
		{userID: "alice", clip: "airhorn"},
		{userID: "bob", clip: "bruh"},
		{userID: "carol", clip: "AIRHORN"},
	}
	for _, r := range requests {
		session := &mockSession{}
		handle(session, clipCommand(guildID, r.userID, r.clip))
		if session.Resp == nil || session.Resp.Data == nil {
			t.Fatalf("no response to /clip %s", r.clip)
		}
	}

	waitForPlays(t, repo, guildID, len(requests))

	top, err := repo.Top(t.Context(), guildID, 5)
	if err != nil {
		t.Fatalf("failed to query top clips: %v", err)
	}
	want := []repository.ClipCount{
		{ClipPath: "memes/airhorn.frames", Plays: 2},
		{ClipPath: "memes/bruh.frames", Plays: 1},
	}
	if diff := cmp.Diff(want, top); diff != "" {
		t.Errorf("Top() mismatch (-want +got):\n%s", diff)
	}

	entries, err := repo.List(t.Context(), guildID, 5)
	if err != nil {
		t.Fatalf("failed to list play log: %v", err)
	}
	for _, e := range entries {
		if e.RequesterID == "" {
			t.Errorf("play %s has no requester", e.ID)
		}
	}
}

func TestClipCommandUnknownClip(t *testing.T) {
	clips := e2e.NewCatalog(t)
	voice := e2e.NewFakeVoice("lobby")

	handle := handler.NewInteractionHandler(handler.Dependencies{
		Clips:  clips,
		Voice:  voice,
		Admins: noAdmins{},
		IDs:    &generator.UUIDV4Generator{},
	})

	session := &mockSession{}
	handle(session, clipCommand("guild", "alice", "foghorn"))

	want := presenters.Ephemeral(presenters.UnknownClipMessage("foghorn"))
	if diff := cmp.Diff(want, session.Resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}
