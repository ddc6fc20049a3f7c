package handler

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/clipster/internal/playback"
	"github.com/glizzus/clipster/internal/presenters"
)

type MessageSender interface {
	ChannelMessageSend(channelID, content string, opts ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ MessageSender = (*discordgo.Session)(nil)

// ChannelNotifier posts play failures to the text channel a request came
// from. Requests without an origin fail silently.
type ChannelNotifier struct {
	sender MessageSender
	logger *slog.Logger
}

var _ playback.Notifier = (*ChannelNotifier)(nil)

func NewChannelNotifier(sender MessageSender, logger *slog.Logger) *ChannelNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelNotifier{sender: sender, logger: logger}
}

func (n *ChannelNotifier) NotifyFailure(ctx context.Context, guildID string, req *playback.PlayRequest, err error) {
	if req.Origin == "" {
		return
	}
	content := presenters.PlayErrorMessage(req.RequesterID, err)
	if _, serr := n.sender.ChannelMessageSend(req.Origin, content, discordgo.WithContext(ctx)); serr != nil {
		n.logger.Warn("Failed to send play failure", "guildID", guildID, "channelID", req.Origin, "requestID", req.ID, "error", serr)
	}
}
