// Package voice binds the playback orchestrator to Discord voice through
// discordgo.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/clipster/internal/opus"
	"github.com/glizzus/clipster/internal/playback"
)

// ErrUserNotInVoice is returned when a member is not in any voice channel.
var ErrUserNotInVoice = errors.New("user is not in a voice channel")

// Joiner is the part of a discordgo session that opens voice connections.
type Joiner interface {
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
}

var _ Joiner = (*discordgo.Session)(nil)

// Gateway implements playback.VoiceGateway on top of the session state
// cache. The state must be kept current by the session's event handlers.
type Gateway struct {
	state       *discordgo.State
	joiner      Joiner
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewGateway returns a Gateway. A nil logger uses slog.Default.
func NewGateway(state *discordgo.State, joiner Joiner, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		state:       state,
		joiner:      joiner,
		sendTimeout: opus.DefaultSendTimeout,
		logger:      logger,
	}
}

var _ playback.VoiceGateway = (*Gateway)(nil)

func (g *Gateway) selfID() (string, error) {
	if g.state.User == nil {
		return "", errors.New("session has not received its ready event")
	}
	return g.state.User.ID, nil
}

func (g *Gateway) Permissions(_ context.Context, _, channelID string) (playback.Permissions, error) {
	self, err := g.selfID()
	if err != nil {
		return playback.Permissions{}, err
	}

	perms, err := g.state.UserChannelPermissions(self, channelID)
	if err != nil {
		return playback.Permissions{}, fmt.Errorf("unable to compute permissions for channel %s: %w", channelID, err)
	}
	return playback.Permissions{
		Connect: perms&discordgo.PermissionVoiceConnect != 0,
		Speak:   perms&discordgo.PermissionVoiceSpeak != 0,
	}, nil
}

func (g *Gateway) BotPresent(_ context.Context, guildID, channelID string) (bool, error) {
	self, err := g.selfID()
	if err != nil {
		return false, err
	}

	vs, err := g.state.VoiceState(guildID, self)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unable to look up bot voice state: %w", err)
	}
	return vs.ChannelID == channelID, nil
}

func (g *Gateway) Occupancy(_ context.Context, guildID, channelID string) (int, error) {
	self, err := g.selfID()
	if err != nil {
		return 0, err
	}

	guild, err := g.state.Guild(guildID)
	if err != nil {
		return 0, fmt.Errorf("unable to look up guild %s: %w", guildID, err)
	}

	g.state.RLock()
	states := append([]*discordgo.VoiceState(nil), guild.VoiceStates...)
	g.state.RUnlock()

	count := 0
	for _, vs := range states {
		if vs.ChannelID != channelID {
			continue
		}
		if vs.UserID == self || !g.isBot(guildID, vs) {
			count++
		}
	}
	return count, nil
}

// isBot reports whether the voice state belongs to a bot account. Members
// missing from the cache are counted as people.
func (g *Gateway) isBot(guildID string, vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	member, err := g.state.Member(guildID, vs.UserID)
	if err != nil || member.User == nil {
		return false
	}
	return member.User.Bot
}

// UserChannel returns the voice channel userID is sitting in.
func (g *Gateway) UserChannel(guildID, userID string) (string, error) {
	vs, err := g.state.VoiceState(guildID, userID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return "", ErrUserNotInVoice
	}
	if err != nil {
		return "", fmt.Errorf("unable to look up voice state: %w", err)
	}
	if vs.ChannelID == "" {
		return "", ErrUserNotInVoice
	}
	return vs.ChannelID, nil
}

// BusiestChannel returns the voice channel with the most people in it. It
// is used for scheduled clips that do not name a channel.
func (g *Gateway) BusiestChannel(guildID string) (string, error) {
	guild, err := g.state.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("unable to look up guild %s: %w", guildID, err)
	}

	g.state.RLock()
	channels := append([]*discordgo.Channel(nil), guild.Channels...)
	states := append([]*discordgo.VoiceState(nil), guild.VoiceStates...)
	g.state.RUnlock()

	attendance := make(map[string]int)
	for _, vs := range states {
		if !g.isBot(guildID, vs) {
			attendance[vs.ChannelID]++
		}
	}

	busiest := MaxAttendedChannel(channels, attendance)
	if busiest == nil {
		return "", ErrUserNotInVoice
	}
	return busiest.ID, nil
}

// MaxAttendedChannel returns the voice channel with the highest attendance.
// Ties go to the channel listed first. It returns nil when every voice
// channel is empty.
func MaxAttendedChannel(channels []*discordgo.Channel, attendance map[string]int) *discordgo.Channel {
	var maxAttendedChannel *discordgo.Channel
	maxAttended := 0

	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildVoice {
			continue
		}
		if n := attendance[channel.ID]; n > maxAttended {
			maxAttendedChannel = channel
			maxAttended = n
		}
	}
	return maxAttendedChannel
}

// Connect joins channelID deafened. discordgo blocks until the voice
// handshake finishes, so a join abandoned because ctx ended is torn down in
// the background once it completes.
func (g *Gateway) Connect(ctx context.Context, guildID, channelID string) (playback.Connection, error) {
	type joined struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan joined, 1)
	go func() {
		vc, err := g.joiner.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- joined{vc: vc, err: err}
	}()

	select {
	case j := <-ch:
		if j.err != nil {
			return nil, j.err
		}
		return newConnection(j.vc, g.sendTimeout, g.logger.With("guildID", guildID)), nil
	case <-ctx.Done():
		go func() {
			j := <-ch
			if j.err == nil && j.vc != nil {
				if err := j.vc.Disconnect(); err != nil {
					g.logger.Warn("Failed to disconnect abandoned voice connection", "guildID", guildID, "error", err)
				}
			}
		}()
		return nil, ctx.Err()
	}
}
