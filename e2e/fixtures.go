package e2e

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/opus"
	"github.com/glizzus/clipster/internal/playback"
)

// NewCatalog writes a small clip library to a temporary directory and
// loads it.
func NewCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()

	write := func(name string, data []byte) {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	var frames bytes.Buffer
	for i := range 5 {
		if err := opus.WriteFrame(&frames, []byte{byte(i)}); err != nil {
			t.Fatalf("failed to write frame: %v", err)
		}
	}

	write("memes/manifest.json", []byte(`{
		"name": "Memes",
		"key": "memes",
		"description": "Internet classics",
		"clips": [
			{"name": "airhorn", "path": "airhorn.frames", "help": "Loud horn"},
			{"name": "bruh", "path": "bruh.frames", "help": "bruh"}
		]
	}`))
	write("memes/airhorn.frames", frames.Bytes())
	write("memes/bruh.frames", frames.Bytes())

	clips := catalog.New(dir, &catalog.FileStore{Root: dir}, nil)
	if _, err := clips.Reload(context.Background()); err != nil {
		t.Fatalf("failed to load clips: %v", err)
	}
	return clips
}

// FakeVoice stands in for Discord voice. Every play drains its audio and
// finishes on its own.
type FakeVoice struct {
	mu      sync.Mutex
	played  []string
	busiest string
}

var _ playback.VoiceGateway = (*FakeVoice)(nil)

func NewFakeVoice(busiest string) *FakeVoice {
	return &FakeVoice{busiest: busiest}
}

func (v *FakeVoice) Permissions(context.Context, string, string) (playback.Permissions, error) {
	return playback.Permissions{Connect: true, Speak: true}, nil
}

func (v *FakeVoice) BotPresent(context.Context, string, string) (bool, error) {
	return false, nil
}

func (v *FakeVoice) Occupancy(context.Context, string, string) (int, error) {
	return 3, nil
}

func (v *FakeVoice) Connect(_ context.Context, _, channelID string) (playback.Connection, error) {
	return &fakeConnection{voice: v, channelID: channelID, connected: true}, nil
}

func (v *FakeVoice) BusiestChannel(string) (string, error) {
	return v.busiest, nil
}

// UserChannel puts every member in the busiest channel.
func (v *FakeVoice) UserChannel(_, _ string) (string, error) {
	return v.busiest, nil
}

// Played lists the channels clips were played in, in order.
func (v *FakeVoice) Played() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.played...)
}

type fakeConnection struct {
	voice *FakeVoice

	mu        sync.Mutex
	channelID string
	connected bool
}

func (c *fakeConnection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConnection) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channelID = channelID
	return nil
}

func (c *fakeConnection) Play(audio playback.AudioSource, onFinished func()) error {
	channelID := c.ChannelID()
	go func() {
		defer onFinished()
		for {
			if _, err := audio.ReadFrame(); err != nil {
				if errors.Is(err, io.EOF) {
					c.voice.mu.Lock()
					c.voice.played = append(c.voice.played, channelID)
					c.voice.mu.Unlock()
				}
				return
			}
		}
	}()
	return nil
}

func (c *fakeConnection) Stop() {}

func (c *fakeConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *fakeConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
