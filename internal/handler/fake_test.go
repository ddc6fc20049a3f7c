package handler_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/handler"
	"github.com/glizzus/clipster/internal/playback"
	"github.com/glizzus/clipster/internal/voice"
)

type mockSession struct {
	mu    sync.Mutex
	resps []*discordgo.InteractionResponse
}

func (m *mockSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resps = append(m.resps, resp)
	return nil
}

func (m *mockSession) InteractionResponseEdit(_ *discordgo.Interaction, _ *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return nil, nil
}

func (m *mockSession) last() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resps) == 0 {
		return nil
	}
	return m.resps[len(m.resps)-1]
}

var _ handler.DiscordSession = (*mockSession)(nil)

type fakeAudio struct {
	closed bool
}

func (a *fakeAudio) ReadFrame() ([]byte, error) { return nil, io.EOF }
func (a *fakeAudio) Close() error {
	a.closed = true
	return nil
}

type fakePlayer struct {
	submitted    []*playback.PlayRequest
	submitErr    error
	vote         playback.VoteOutcome
	forceSkipErr error
	disconnects  int
	disconnErr   error
}

func (p *fakePlayer) Submit(_ string, req *playback.PlayRequest) error {
	if p.submitErr != nil {
		return p.submitErr
	}
	p.submitted = append(p.submitted, req)
	return nil
}

func (p *fakePlayer) VoteSkip(_ context.Context, _, _ string) (playback.VoteOutcome, error) {
	return p.vote, nil
}

func (p *fakePlayer) ForceSkip(string) error { return p.forceSkipErr }

func (p *fakePlayer) Disconnect(string) error {
	p.disconnects++
	return p.disconnErr
}

func (p *fakePlayer) Status(string) playback.Snapshot {
	return playback.Snapshot{State: playback.StateIdle}
}

type fakeClips struct {
	clips   map[string]catalog.Clip
	opened  []*fakeAudio
	openErr error
	reloads int
}

func newFakeClips(names ...string) *fakeClips {
	c := &fakeClips{clips: make(map[string]catalog.Clip)}
	for _, name := range names {
		c.clips[name] = catalog.Clip{Name: name, Path: "memes/" + name + ".frames"}
	}
	return c
}

func (c *fakeClips) Lookup(name string) (catalog.Clip, bool) {
	clip, ok := c.clips[name]
	return clip, ok
}

func (c *fakeClips) Random() (catalog.Clip, bool) {
	for _, clip := range c.clips {
		return clip, true
	}
	return catalog.Clip{}, false
}

func (c *fakeClips) Find(query string) (catalog.Clip, bool) {
	return c.Lookup(query)
}

func (c *fakeClips) Reload(context.Context) (int, error) {
	c.reloads++
	return len(c.clips), nil
}

func (c *fakeClips) Open(_ context.Context, clip catalog.Clip) (playback.AudioSource, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	audio := &fakeAudio{}
	c.opened = append(c.opened, audio)
	return audio, nil
}

type fakeVoice map[string]string

func (v fakeVoice) UserChannel(_, userID string) (string, error) {
	if channelID, ok := v[userID]; ok {
		return channelID, nil
	}
	return "", voice.ErrUserNotInVoice
}

type admins []string

func (a admins) IsAdmin(userID string) bool {
	for _, id := range a {
		if id == userID {
			return true
		}
	}
	return false
}

type memoryBlocklist map[string]bool

func (b memoryBlocklist) Block(_ context.Context, name string) error {
	b[name] = true
	return nil
}

func (b memoryBlocklist) Unblock(_ context.Context, name string) error {
	delete(b, name)
	return nil
}

func (b memoryBlocklist) IsBlocked(_ context.Context, name string) (bool, error) {
	return b[name], nil
}

func (b memoryBlocklist) List(context.Context) ([]string, error) {
	return nil, errors.New("not implemented")
}

func command(guildID, userID, name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: "text-1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: userID}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func userOption(name, userID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionUser,
		Value: userID,
	}
}

func subCommand(name string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name,
		Type: discordgo.ApplicationCommandOptionSubCommand,
	}
}

func button(guildID, userID, customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionMessageComponent,
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}
}
