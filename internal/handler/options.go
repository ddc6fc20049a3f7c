package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/clipster/internal/util"
)

type option = discordgo.ApplicationCommandInteractionDataOption

func optionMap(options []*option) map[string]*option {
	m := make(map[string]*option, len(options))
	for _, o := range options {
		m[o.Name] = o
	}
	return m
}

// StringOption returns the string option called name.
func StringOption(options []*option, name string) (string, error) {
	o, ok := optionMap(options)[name]
	if !ok {
		return "", fmt.Errorf("option %s is required", name)
	}
	if o.Type != discordgo.ApplicationCommandOptionString {
		return "", fmt.Errorf("invalid type for %s option", name)
	}
	return o.StringValue(), nil
}

// UserOption returns the id of the user picked for the optional option
// called name, or an empty string when it was left out.
func UserOption(options []*option, name string) (string, error) {
	o, ok := optionMap(options)[name]
	if !ok {
		return "", nil
	}
	if o.Type != discordgo.ApplicationCommandOptionUser {
		return "", fmt.Errorf("invalid type for %s option", name)
	}
	return o.UserValue(nil).ID, nil
}

// SubCommand returns the single subcommand a command was invoked with.
func SubCommand(options []*option) (*option, error) {
	sub, err := util.GetOne(optionMap(options))
	if err != nil {
		return nil, fmt.Errorf("expected one subcommand: %w", err)
	}
	if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		return nil, fmt.Errorf("option %s is not a subcommand", sub.Name)
	}
	return sub, nil
}

// isCommand matches application commands by name and, for commands with
// subcommands, by subcommand name.
func isCommand(name string, sub ...string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionApplicationCommand {
			return false
		}
		data := i.ApplicationCommandData()
		if data.Name != name {
			return false
		}
		if len(sub) == 0 {
			return true
		}
		s, err := SubCommand(data.Options)
		return err == nil && s.Name == sub[0]
	}
}

// interactionUserID returns who invoked i, in a guild or a DM.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
