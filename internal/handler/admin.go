package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/clipster/internal/playback"
	"github.com/glizzus/clipster/internal/presenters"
)

const (
	ComponentIDDisconnectConfirm = "admin_disconnect_confirm"
	ComponentIDDisconnectCancel  = "admin_disconnect_cancel"
)

// requireAdmin wraps next so only configured admins reach it.
func (h *Handler) requireAdmin(next NodeHandler) NodeHandler {
	return func(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
		userID := interactionUserID(i)
		if h.deps.Admins == nil || !h.deps.Admins.IsAdmin(userID) {
			h.deps.Logger.Info("Refused admin command", "guildID", i.GuildID, "userID", userID)
			return publicError(presenters.NotAdminMessage(userID))
		}
		if i.GuildID == "" {
			return userError(presenters.GuildOnlyMessage)
		}
		return next(ctx, s, i, fc)
	}
}

func (h *Handler) adminFlows() []*Flow {
	return []*Flow{
		single("admin_skip", isCommand(CommandAdmin, AdminSkip), h.requireAdmin(h.adminSkip)),
		single("admin_reload", isCommand(CommandAdmin, AdminReload), h.requireAdmin(h.adminReload)),
		{
			ID: "admin_disconnect",
			Root: &Node{
				ID:      "admin_disconnect_prompt",
				Matcher: isCommand(CommandAdmin, AdminDisconnect),
				Handler: h.requireAdmin(h.adminDisconnectPrompt),
				Next: []*Node{
					{
						ID:      "admin_disconnect_confirm",
						Matcher: isComponent(ComponentIDDisconnectConfirm),
						Handler: h.adminDisconnectConfirm,
					},
					{
						ID:      "admin_disconnect_cancel",
						Matcher: isComponent(ComponentIDDisconnectCancel),
						Handler: func(_ context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
							return s.InteractionRespond(i.Interaction, updateMessage(presenters.CancelledMessage))
						},
					},
				},
			},
		},
	}
}

func (h *Handler) adminSkip(_ context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	err := h.deps.Player.ForceSkip(i.GuildID)
	if errors.Is(err, playback.ErrNotPlaying) {
		return userError("I'm not speaking at the moment.")
	}
	if err != nil {
		return err
	}
	return s.InteractionRespond(i.Interaction, presenters.Message(presenters.SkippedMessage))
}

func (h *Handler) adminReload(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	count, err := h.deps.Clips.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload clips: %w", err)
	}
	h.deps.Logger.Info("Reloaded clips", "guildID", i.GuildID, "userID", interactionUserID(i), "clips", count)
	return s.InteractionRespond(i.Interaction, presenters.Ephemeral(presenters.ReloadedMessage(count)))
}

func (h *Handler) adminDisconnectPrompt(_ context.Context, s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
	resp := presenters.Ephemeral("Leave the voice channel? Anything playing will stop.")
	resp.Data.Components = []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Disconnect",
					Style:    discordgo.DangerButton,
					CustomID: CustomID(ComponentIDDisconnectConfirm, fc.InstanceID),
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.SecondaryButton,
					CustomID: CustomID(ComponentIDDisconnectCancel, fc.InstanceID),
				},
			},
		},
	}
	return s.InteractionRespond(i.Interaction, resp)
}

func (h *Handler) adminDisconnectConfirm(_ context.Context, s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
	content := presenters.DisconnectedMessage
	err := h.deps.Player.Disconnect(i.GuildID)
	switch {
	case errors.Is(err, playback.ErrNotConnected):
		content = presenters.NotConnectedMessage
	case err != nil:
		return err
	default:
		h.deps.Logger.Info("Disconnected by admin", "guildID", i.GuildID, "userID", interactionUserID(i))
	}
	return s.InteractionRespond(i.Interaction, updateMessage(content))
}

// updateMessage replaces the prompt a button was attached to.
func updateMessage(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	}
}
