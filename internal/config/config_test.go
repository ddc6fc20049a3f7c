package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glizzus/clipster/internal/config"
	"github.com/glizzus/clipster/internal/playback"
	"github.com/google/go-cmp/cmp"
)

func TestNewPlaybackConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := config.NewPlaybackConfigFromEnv()
	if err != nil {
		t.Fatalf("NewPlaybackConfigFromEnv() error = %v", err)
	}

	want := playback.Config{
		IdleTimeout:    15 * time.Minute,
		Quorum:         playback.Quorum{Votes: 3, Percentage: 33},
		ConnectTimeout: 10 * time.Second,
	}
	if diff := cmp.Diff(want, cfg.Playback()); diff != "" {
		t.Errorf("Playback() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPlaybackConfigFromEnv(t *testing.T) {
	t.Setenv("PLAYBACK_IDLE_TIMEOUT_SECONDS", "60")
	t.Setenv("PLAYBACK_SIGN_OFF_CLIPS", "bye/one.frames,bye/two.frames")
	t.Setenv("PLAYBACK_SKIP_VOTES", "5")
	t.Setenv("PLAYBACK_SKIP_PERCENTAGE", "50")
	t.Setenv("PLAYBACK_CONNECT_TIMEOUT_SECONDS", "3")

	cfg, err := config.NewPlaybackConfigFromEnv()
	if err != nil {
		t.Fatalf("NewPlaybackConfigFromEnv() error = %v", err)
	}

	want := playback.Config{
		IdleTimeout:      time.Minute,
		SignOffClipPaths: []string{"bye/one.frames", "bye/two.frames"},
		Quorum:           playback.Quorum{Votes: 5, Percentage: 50},
		ConnectTimeout:   3 * time.Second,
	}
	if diff := cmp.Diff(want, cfg.Playback()); diff != "" {
		t.Errorf("Playback() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPlaybackConfigFromEnv_Invalid(t *testing.T) {
	tc := []struct {
		name  string
		key   string
		value string
	}{
		{name: "negative idle timeout", key: "PLAYBACK_IDLE_TIMEOUT_SECONDS", value: "-1"},
		{name: "zero skip votes", key: "PLAYBACK_SKIP_VOTES", value: "0"},
		{name: "percentage above 100", key: "PLAYBACK_SKIP_PERCENTAGE", value: "101"},
		{name: "zero connect timeout", key: "PLAYBACK_CONNECT_TIMEOUT_SECONDS", value: "0"},
		{name: "not a number", key: "PLAYBACK_SKIP_VOTES", value: "three"},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv(test.key, test.value)
			if _, err := config.NewPlaybackConfigFromEnv(); err == nil {
				t.Errorf("expected an error for %s=%s", test.key, test.value)
			}
		})
	}
}

func TestNewDiscordConfigFromEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_CLIENT_ID", "client")
	t.Setenv("DISCORD_GUILD_ID", "guild")
	t.Setenv("DISCORD_ADMINS", "111,222")

	cfg, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		t.Fatalf("NewDiscordConfigFromEnv() error = %v", err)
	}
	if diff := cmp.Diff([]string{"111", "222"}, cfg.Admins); diff != "" {
		t.Errorf("Admins mismatch (-want +got):\n%s", diff)
	}

	for id, want := range map[string]bool{"111": true, "222": true, "333": false, "": false} {
		if got := cfg.IsAdmin(id); got != want {
			t.Errorf("IsAdmin(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestNewDiscordConfigFromEnv_RequiresGuildOrGlobal(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_CLIENT_ID", "client")
	t.Setenv("DISCORD_GUILD_ID", "")

	if _, err := config.NewDiscordConfigFromEnv(); err == nil {
		t.Fatal("expected an error without a guild ID")
	}

	t.Setenv("DISCORD_RUN_BOT_GLOBALLY", "true")
	if _, err := config.NewDiscordConfigFromEnv(); err != nil {
		t.Fatalf("NewDiscordConfigFromEnv() error = %v", err)
	}
}

func TestNewClipsConfigFromEnv(t *testing.T) {
	cfg, err := config.NewClipsConfigFromEnv()
	if err != nil {
		t.Fatalf("NewClipsConfigFromEnv() error = %v", err)
	}
	want := config.ClipsConfig{Dir: "clips", Store: config.ClipStoreLocal}
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("ClipsConfig mismatch (-want +got):\n%s", diff)
	}

	t.Setenv("CLIPS_STORE", "ftp")
	if _, err := config.NewClipsConfigFromEnv(); err == nil {
		t.Error("expected an error for an unknown clip store")
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USERNAME", "clipster")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DATABASE", "clips")

	cfg, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		t.Fatalf("NewPostgresConfigFromEnv() error = %v", err)
	}
	want := "postgres://clipster:secret@db:5432/clips?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("CLIPSTER_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	t.Setenv("ENV_FILE", path)
	t.Setenv("CLIPSTER_TEST_VALUE", "")
	os.Unsetenv("CLIPSTER_TEST_VALUE")

	if err := config.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if got := os.Getenv("CLIPSTER_TEST_VALUE"); got != "from-file" {
		t.Errorf("CLIPSTER_TEST_VALUE = %q, want from-file", got)
	}

	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	if err := config.LoadEnv(); err != nil {
		t.Errorf("LoadEnv() with a missing file error = %v, want nil", err)
	}
}

func TestLogLevel(t *testing.T) {
	tc := map[string]string{
		"debug": "DEBUG",
		"WARN":  "WARN",
		"":      "INFO",
		"loud":  "INFO",
	}
	for value, want := range tc {
		t.Setenv("LOG_LEVEL", value)
		if got := config.LogLevel().String(); got != want {
			t.Errorf("LogLevel() with %q = %s, want %s", value, got, want)
		}
	}
}
