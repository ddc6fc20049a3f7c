// Package catalog loads the clips the bot can play and opens them as audio
// sources.
//
// Clips are described by manifests: every sub-directory of the clips
// directory may hold a manifest.json naming a group and its clips. Clip
// paths in a manifest are relative to the manifest's directory. Audio is
// read from a ClipStore, so the files may live on disk or in object
// storage.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/glizzus/clipster/internal/opus"
	"github.com/glizzus/clipster/internal/playback"
)

// ManifestFileName is the file looked for in each group directory.
const ManifestFileName = "manifest.json"

// FramesExt marks clips already stored as length-prefixed Opus frames.
// Anything else is transcoded with FFmpeg when opened.
const FramesExt = ".frames"

type Clip struct {
	Name        string
	Group       string
	Path        string
	Help        string
	Brief       string
	Description string
}

type Group struct {
	Name        string
	Key         string
	Description string
	Clips       []Clip
}

type manifest struct {
	Name        string          `json:"name"`
	Key         string          `json:"key"`
	Description string          `json:"description"`
	Clips       []manifestEntry `json:"clips"`
}

type manifestEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Help        string `json:"help"`
	Brief       string `json:"brief"`
	Description string `json:"description"`
}

// Catalog is safe for concurrent use. Reload swaps the whole clip set at
// once.
type Catalog struct {
	dir    string
	store  ClipStore
	logger *slog.Logger

	mu     sync.RWMutex
	groups []Group
	clips  map[string]*Clip
	names  []string
}

var _ playback.SourceOpener = (*Catalog)(nil)

// New returns an empty catalog for the manifests under dir. Call Reload to
// load them. A nil logger uses slog.Default.
func New(dir string, store ClipStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		dir:    dir,
		store:  store,
		logger: logger,
		clips:  make(map[string]*Clip),
	}
}

// Reload re-reads every manifest and returns how many clips were loaded.
// Broken groups and clips with missing audio are skipped with a warning.
func (c *Catalog) Reload(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("unable to read clips directory: %w", err)
	}

	var groups []Group
	clips := make(map[string]*Clip)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(c.dir, entry.Name(), ManifestFileName)
		group, err := c.loadGroup(ctx, entry.Name(), manifestPath)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			c.logger.Warn("Skipping clip group", "manifest", manifestPath, "error", err)
			continue
		}

		added := 0
		for i := range group.Clips {
			clip := &group.Clips[i]
			key := strings.ToLower(clip.Name)
			if existing, ok := clips[key]; ok {
				c.logger.Warn("Skipping duplicate clip name", "clip", clip.Name, "group", group.Key, "existingGroup", existing.Group)
				continue
			}
			clips[key] = clip
			added++
		}
		if added > 0 {
			groups = append(groups, group)
		}
	}

	names := make([]string, 0, len(clips))
	for _, clip := range clips {
		names = append(names, clip.Name)
	}
	slices.Sort(names)
	slices.SortFunc(groups, func(a, b Group) int { return strings.Compare(a.Key, b.Key) })

	c.mu.Lock()
	c.groups, c.clips, c.names = groups, clips, names
	c.mu.Unlock()

	c.logger.Info("Loaded clips", "clips", len(clips), "groups", len(groups))
	return len(clips), nil
}

func (c *Catalog) loadGroup(ctx context.Context, dirName, manifestPath string) (Group, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return Group{}, err
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Group{}, fmt.Errorf("invalid manifest: %w", err)
	}
	if m.Name == "" || m.Key == "" || m.Description == "" {
		return Group{}, errors.New("manifest is missing a name, key or description")
	}

	group := Group{Name: m.Name, Key: m.Key, Description: m.Description}
	for _, entry := range m.Clips {
		if entry.Name == "" || entry.Path == "" {
			c.logger.Warn("Skipping clip without a name or path", "group", m.Key, "clip", entry.Name)
			continue
		}
		clipPath := path.Join(dirName, filepath.ToSlash(entry.Path))
		if err := c.store.Stat(ctx, clipPath); err != nil {
			c.logger.Warn("Skipping clip with missing audio", "group", m.Key, "clip", entry.Name, "path", clipPath, "error", err)
			continue
		}

		brief := entry.Brief
		if brief == "" {
			brief = entry.Help
		}
		group.Clips = append(group.Clips, Clip{
			Name:        entry.Name,
			Group:       m.Key,
			Path:        clipPath,
			Help:        entry.Help,
			Brief:       brief,
			Description: entry.Description,
		})
	}
	if len(group.Clips) == 0 {
		return Group{}, errors.New("manifest has no playable clips")
	}

	slices.SortFunc(group.Clips, func(a, b Clip) int { return strings.Compare(a.Name, b.Name) })
	return group, nil
}

// Lookup finds a clip by name, ignoring case.
func (c *Catalog) Lookup(name string) (Clip, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clip, ok := c.clips[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Clip{}, false
	}
	return *clip, true
}

// Random picks any loaded clip.
func (c *Catalog) Random() (Clip, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.names) == 0 {
		return Clip{}, false
	}
	name := c.names[rand.IntN(len(c.names))]
	return *c.clips[strings.ToLower(name)], true
}

// Names lists every clip name in order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.names)
}

// Groups lists the loaded groups ordered by key.
func (c *Catalog) Groups() []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups := make([]Group, len(c.groups))
	for i, g := range c.groups {
		groups[i] = g
		groups[i].Clips = slices.Clone(g.Clips)
	}
	return groups
}

// Len returns the number of loaded clips.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clips)
}

// Open opens clip for playback. Clips that can no longer be found are
// reported as playback.InvalidAudioSourceError.
func (c *Catalog) Open(ctx context.Context, clip Clip) (playback.AudioSource, error) {
	return c.OpenPath(ctx, clip.Path)
}

// OpenPath opens any file in the store by its path relative to the clips
// root. Sign-off clips are opened this way.
func (c *Catalog) OpenPath(ctx context.Context, clipPath string) (playback.AudioSource, error) {
	if err := c.store.Stat(ctx, clipPath); err != nil {
		return nil, &playback.InvalidAudioSourceError{Path: clipPath, Reason: err.Error()}
	}

	rc, err := c.store.Open(ctx, clipPath)
	if err != nil {
		return nil, &playback.InvalidAudioSourceError{Path: clipPath, Reason: err.Error()}
	}
	if strings.EqualFold(path.Ext(clipPath), FramesExt) {
		return opus.NewSource(rc), nil
	}

	// The transcode outlives the caller's request, so it only stops when
	// the source is closed.
	encodeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	encoded, err := opus.Encode(encodeCtx, rc, opus.EncodeOptions{})
	if err != nil {
		cancel()
		rc.Close()
		return nil, fmt.Errorf("unable to transcode %s: %w", clipPath, err)
	}
	return opus.NewSource(&transcoded{ReadCloser: encoded, input: rc, cancel: cancel}), nil
}

// transcoded closes the FFmpeg output and the clip it reads from together.
type transcoded struct {
	io.ReadCloser
	input  io.Closer
	cancel context.CancelFunc
}

func (t *transcoded) Close() error {
	err := t.ReadCloser.Close()
	t.cancel()
	return errors.Join(err, t.input.Close())
}
