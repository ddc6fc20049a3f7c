package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const (
	CommandPing   = "ping"
	CommandClip   = "clip"
	CommandRandom = "random"
	CommandFind   = "find"
	CommandSkip   = "skip"
	CommandStatus = "status"
	CommandAdmin  = "admin"

	AdminSkip       = "skip"
	AdminDisconnect = "disconnect"
	AdminReload     = "reload"
)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
// targetOption lets a clip command play into another member's channel.
var targetOption = &discordgo.ApplicationCommandOption{
	Name:        "user",
	Type:        discordgo.ApplicationCommandOptionUser,
	Description: "The user to play the clip to.",
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        CommandPing,
		Description: "Check that the bot is alive",
	},
	{
		Name:        CommandClip,
		Description: "Play a clip in your voice channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "name",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "The name of the clip.",
				Required:    true,
			},
			targetOption,
		},
	},
	{
		Name:        CommandRandom,
		Description: "Play a random clip in your voice channel",
		Options:     []*discordgo.ApplicationCommandOption{targetOption},
	},
	{
		Name:        CommandFind,
		Description: "Play the clip that best matches a search",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "query",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "Words from the clip's name or description.",
				Required:    true,
			},
			targetOption,
		},
	},
	{
		Name:        CommandSkip,
		Description: "Vote to skip the current clip",
	},
	{
		Name:        CommandStatus,
		Description: "Show what is playing",
	},
	{
		Name:        CommandAdmin,
		Description: "Admin controls",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        AdminSkip,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Skip the current clip without a vote",
			},
			{
				Name:        AdminDisconnect,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Leave the voice channel",
			},
			{
				Name:        AdminReload,
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Reload the clip catalog",
			},
		},
	},
}

func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}
