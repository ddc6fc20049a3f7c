package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/generator"
	"github.com/glizzus/clipster/internal/playback"
	"github.com/glizzus/clipster/internal/presenters"
	"github.com/glizzus/clipster/internal/voice"
	"github.com/glizzus/clipster/internal/worker"
)

// Player is the playback side of the command surface. *playback.Orchestrator
// implements it.
type Player interface {
	Submit(guildID string, req *playback.PlayRequest) error
	VoteSkip(ctx context.Context, guildID, voterID string) (playback.VoteOutcome, error)
	ForceSkip(guildID string) error
	Disconnect(guildID string) error
	Status(guildID string) playback.Snapshot
}

var _ Player = (*playback.Orchestrator)(nil)

type Clips interface {
	Lookup(name string) (catalog.Clip, bool)
	Random() (catalog.Clip, bool)
	Find(query string) (catalog.Clip, bool)
	Reload(ctx context.Context) (int, error)
	Open(ctx context.Context, clip catalog.Clip) (playback.AudioSource, error)
}

var _ Clips = (*catalog.Catalog)(nil)

// VoiceLocator finds the voice channel a member is in.
type VoiceLocator interface {
	UserChannel(guildID, userID string) (string, error)
}

var _ VoiceLocator = (*voice.Gateway)(nil)

type AdminChecker interface {
	IsAdmin(userID string) bool
}

type Dependencies struct {
	Player Player
	Clips  Clips
	Voice  VoiceLocator
	Admins AdminChecker

	// Blocklist and Limiter are optional.
	Blocklist worker.Blocklist
	Limiter   *UserLimiter

	IDs     generator.Generator[string]
	Timeout time.Duration
	Logger  *slog.Logger
}

type Handler struct {
	deps  Dependencies
	flows *FlowManager
}

func New(deps Dependencies) *Handler {
	if deps.Limiter == nil {
		deps.Limiter = DefaultUserLimiter()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 10 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	h := &Handler{deps: deps, flows: NewFlowManager(deps.IDs, DefaultFlowTTL)}
	h.flows.RegisterFlow(PingFlow)
	h.flows.RegisterFlow(single(CommandClip, isCommand(CommandClip), h.clip))
	h.flows.RegisterFlow(single(CommandRandom, isCommand(CommandRandom), h.random))
	h.flows.RegisterFlow(single(CommandFind, isCommand(CommandFind), h.find))
	h.flows.RegisterFlow(single(CommandSkip, isCommand(CommandSkip), h.skip))
	h.flows.RegisterFlow(single(CommandStatus, isCommand(CommandStatus), h.status))
	for _, flow := range h.adminFlows() {
		h.flows.RegisterFlow(flow)
	}
	return h
}

// NewInteractionHandler returns a function suitable for session.AddHandler
// after adapting the session type.
func NewInteractionHandler(deps Dependencies) func(DiscordSession, *discordgo.InteractionCreate) {
	return New(deps).Handle
}

// Handle routes one interaction and reports errors to the user.
func (h *Handler) Handle(s DiscordSession, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), h.deps.Timeout)
	defer cancel()

	err := h.flows.Router(ctx, s, i)
	if err == nil {
		return
	}

	var userErr *UserError
	var resp *discordgo.InteractionResponse
	switch {
	case errors.As(err, &userErr) && userErr.Public:
		resp = presenters.Message(userErr.Message)
	case errors.As(err, &userErr):
		resp = presenters.Ephemeral(userErr.Message)
	case errors.Is(err, ErrFlowExpired):
		resp = presenters.Ephemeral(presenters.ExpiredMessage)
	default:
		h.deps.Logger.Error("Failed to handle interaction", "guildID", i.GuildID, "type", i.Type.String(), "error", err)
		resp = presenters.Ephemeral(presenters.GenericErrorMessage)
	}

	if rerr := s.InteractionRespond(i.Interaction, resp); rerr != nil {
		h.deps.Logger.Warn("Failed to respond with error", "guildID", i.GuildID, "error", rerr)
	}
}

var PingFlow = single(CommandPing, isCommand(CommandPing),
	func(_ context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
		return s.InteractionRespond(i.Interaction, presenters.Message("Pong!"))
	},
)

func (h *Handler) clip(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	name, err := StringOption(i.ApplicationCommandData().Options, "name")
	if err != nil {
		return err
	}
	clip, ok := h.deps.Clips.Lookup(name)
	if !ok {
		return userError(presenters.UnknownClipMessage(name))
	}
	return h.play(ctx, s, i, clip, presenters.QueuedMessage(clip))
}

func (h *Handler) random(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	clip, ok := h.deps.Clips.Random()
	if !ok {
		return userError("There are no clips loaded.")
	}
	return h.play(ctx, s, i, clip, presenters.QueuedMessage(clip))
}

func (h *Handler) find(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	query, err := StringOption(i.ApplicationCommandData().Options, "query")
	if err != nil {
		return err
	}
	clip, ok := h.deps.Clips.Find(query)
	if !ok {
		return userError(presenters.FoundMessage(query, clip, false))
	}
	return h.play(ctx, s, i, clip, presenters.FoundMessage(query, clip, true))
}

// play checks the requester may play clip right now and queues it in
// their voice channel, or in the channel of the member they picked.
func (h *Handler) play(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, clip catalog.Clip, reply string) error {
	if i.GuildID == "" {
		return userError(presenters.GuildOnlyMessage)
	}
	userID := interactionUserID(i)
	targetID, err := UserOption(i.ApplicationCommandData().Options, "user")
	if err != nil {
		return err
	}
	if targetID == "" {
		targetID = userID
	}

	if !h.deps.Limiter.Allow(userID) {
		return userError(presenters.RateLimitedMessage(userID))
	}

	if h.deps.Blocklist != nil {
		blocked, err := h.deps.Blocklist.IsBlocked(ctx, clip.Name)
		if err != nil {
			h.deps.Logger.Warn("Failed to check blocklist", "clip", clip.Name, "error", err)
		} else if blocked {
			return userError(presenters.BlockedClipMessage(clip.Name))
		}
	}

	channelID, err := h.deps.Voice.UserChannel(i.GuildID, targetID)
	if errors.Is(err, voice.ErrUserNotInVoice) && targetID != userID {
		return publicError(presenters.TargetNotInVoiceMessage(userID))
	}
	if errors.Is(err, voice.ErrUserNotInVoice) {
		return publicError(presenters.NotInVoiceMessage(userID))
	}
	if err != nil {
		return fmt.Errorf("failed to find voice channel: %w", err)
	}

	audio, err := h.deps.Clips.Open(ctx, clip)
	if err != nil {
		return h.playError(userID, err)
	}

	req := &playback.PlayRequest{
		RequesterID: userID,
		ChannelID:   channelID,
		Audio:       audio,
		FilePath:    clip.Path,
		Origin:      i.ChannelID,
	}
	if err := h.deps.Player.Submit(i.GuildID, req); err != nil {
		_ = audio.Close()
		return h.playError(userID, err)
	}

	h.deps.Logger.Debug("Queued clip", "guildID", i.GuildID, "requestID", req.ID, "clip", clip.Name, "userID", userID)
	return s.InteractionRespond(i.Interaction, presenters.Message(reply))
}

func (h *Handler) playError(userID string, err error) error {
	h.deps.Logger.Warn("Refused clip request", "userID", userID, "error", err)
	return userError(presenters.PlayErrorMessage(userID, err))
}

func (h *Handler) skip(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	if i.GuildID == "" {
		return userError(presenters.GuildOnlyMessage)
	}
	voterID := interactionUserID(i)
	outcome, err := h.deps.Player.VoteSkip(ctx, i.GuildID, voterID)
	if err != nil {
		return err
	}
	return s.InteractionRespond(i.Interaction, presenters.Message(presenters.VoteMessage(voterID, outcome)))
}

func (h *Handler) status(_ context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	if i.GuildID == "" {
		return userError(presenters.GuildOnlyMessage)
	}
	snapshot := h.deps.Player.Status(i.GuildID)
	return s.InteractionRespond(i.Interaction, presenters.Ephemeral(presenters.StatusMessage(snapshot)))
}
