package handler_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/clipster/internal/handler"
)

func TestStringOption(t *testing.T) {
	tc := []struct {
		name     string
		options  []*discordgo.ApplicationCommandInteractionDataOption
		expected string
		err      bool
	}{
		{
			name:     "present",
			options:  []*discordgo.ApplicationCommandInteractionDataOption{stringOption("name", "airhorn")},
			expected: "airhorn",
		},
		{
			name:    "missing",
			options: []*discordgo.ApplicationCommandInteractionDataOption{stringOption("other", "airhorn")},
			err:     true,
		},
		{
			name:    "wrong type",
			options: []*discordgo.ApplicationCommandInteractionDataOption{subCommand("name")},
			err:     true,
		},
	}

	for _, testCase := range tc {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := handler.StringOption(testCase.options, "name")
			if testCase.err {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != testCase.expected {
				t.Errorf("expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestSubCommand(t *testing.T) {
	sub, err := handler.SubCommand([]*discordgo.ApplicationCommandInteractionDataOption{subCommand("reload")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Name != "reload" {
		t.Errorf("expected reload, got %s", sub.Name)
	}

	if _, err := handler.SubCommand(nil); err == nil {
		t.Errorf("expected an error without a subcommand")
	}
	if _, err := handler.SubCommand([]*discordgo.ApplicationCommandInteractionDataOption{stringOption("name", "x")}); err == nil {
		t.Errorf("expected an error for a non-subcommand option")
	}
}

func TestUserOption(t *testing.T) {
	tc := []struct {
		name     string
		options  []*discordgo.ApplicationCommandInteractionDataOption
		expected string
		err      bool
	}{
		{
			name:     "present",
			options:  []*discordgo.ApplicationCommandInteractionDataOption{userOption("user", "u2")},
			expected: "u2",
		},
		{
			name:    "left out",
			options: []*discordgo.ApplicationCommandInteractionDataOption{stringOption("name", "airhorn")},
		},
		{
			name:    "wrong type",
			options: []*discordgo.ApplicationCommandInteractionDataOption{stringOption("user", "u2")},
			err:     true,
		},
	}

	for _, testCase := range tc {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := handler.UserOption(testCase.options, "user")
			if testCase.err {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != testCase.expected {
				t.Errorf("expected %q, got %q", testCase.expected, result)
			}
		})
	}
}
