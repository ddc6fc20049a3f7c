package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/glizzus/clipster/internal/generator"
)

// Registry maps guild ids to their playback state. Only inserting a new
// guild takes the registry lock; guilds never block each other otherwise.
type Registry struct {
	mu      sync.Mutex
	tenants map[string]*tenant
}

func NewRegistry() *Registry {
	return &Registry{tenants: make(map[string]*tenant)}
}

func (r *Registry) lookup(id string) (*tenant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	return t, ok
}

func (r *Registry) getOrCreate(id string, create func(id string) *tenant) (*tenant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tenants[id]; ok {
		return t, false
	}
	t := create(id)
	r.tenants[id] = t
	return t, true
}

func (r *Registry) all() []*tenant {
	r.mu.Lock()
	defer r.mu.Unlock()
	tenants := make([]*tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		tenants = append(tenants, t)
	}
	return tenants
}

// Len returns the number of guilds seen so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tenants)
}

// Dependencies are the collaborators of an Orchestrator. Gateway is
// required; everything else is optional.
type Dependencies struct {
	Gateway  VoiceGateway
	Registry *Registry
	Opener   SourceOpener
	Notifier Notifier
	Audit    AuditSink
	IDs      generator.Generator[string]
	Logger   *slog.Logger
}

// Orchestrator accepts play requests for many guilds and runs one playback
// loop per guild.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(cfg Config, deps Dependencies) *Orchestrator {
	if deps.Gateway == nil {
		panic("playback: a voice gateway is required")
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.IDs == nil {
		deps.IDs = &generator.UUIDV7Generator{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (o *Orchestrator) nextID() string {
	id, err := o.deps.IDs.Next()
	if err != nil {
		o.deps.Logger.Warn("Failed to generate request ID", "error", err)
		return ""
	}
	return id
}

func (o *Orchestrator) newTenant(id string) *tenant {
	return &tenant{
		id:       id,
		cfg:      o.cfg,
		gateway:  o.deps.Gateway,
		opener:   o.deps.Opener,
		notifier: o.deps.Notifier,
		audit:    o.deps.Audit,
		logger:   o.deps.Logger.With("guildID", id),
		newID:    o.nextID,
		pick:     rand.IntN,
		wake:     make(chan struct{}, 1),
		votes:    make(map[string]struct{}),
		state:    StateIdle,
	}
}

// Submit queues req for guildID, starting the guild's loop on first use.
// The caller is expected to have validated the clip already; a request
// without audio or channel is rejected with InvalidAudioSourceError.
func (o *Orchestrator) Submit(guildID string, req *PlayRequest) error {
	if req == nil || req.Audio == nil {
		path := ""
		if req != nil {
			path = req.FilePath
		}
		return &InvalidAudioSourceError{Path: path, Reason: "no audio"}
	}
	if req.ChannelID == "" {
		return &InvalidAudioSourceError{Path: req.FilePath, Reason: "no target channel"}
	}
	if req.ID == "" {
		req.ID = o.nextID()
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	t, created := o.deps.Registry.getOrCreate(guildID, o.newTenant)
	if created {
		metricActiveTenants.Inc()
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			t.run(o.ctx)
		}()
	}
	o.mu.Unlock()

	t.enqueue(req, false)
	return nil
}

// VoteSkip registers voterID's vote against the clip playing in guildID.
func (o *Orchestrator) VoteSkip(ctx context.Context, guildID, voterID string) (VoteOutcome, error) {
	t, ok := o.deps.Registry.lookup(guildID)
	if !ok {
		metricSkipVotes.WithLabelValues(VoteNotPlaying.String()).Inc()
		return VoteOutcome{Status: VoteNotPlaying}, nil
	}
	outcome, err := t.voteSkip(ctx, voterID)
	if err != nil {
		return outcome, fmt.Errorf("failed to register skip vote: %w", err)
	}
	metricSkipVotes.WithLabelValues(outcome.Status.String()).Inc()
	return outcome, nil
}

// ForceSkip skips the active clip without a vote.
func (o *Orchestrator) ForceSkip(guildID string) error {
	t, ok := o.deps.Registry.lookup(guildID)
	if !ok {
		return ErrNotPlaying
	}
	return t.forceSkip()
}

// Disconnect leaves guildID's voice channel immediately.
func (o *Orchestrator) Disconnect(guildID string) error {
	t, ok := o.deps.Registry.lookup(guildID)
	if !ok {
		return ErrNotConnected
	}
	return t.disconnect()
}

// Status returns a snapshot of guildID. Unknown guilds report as idle.
func (o *Orchestrator) Status(guildID string) Snapshot {
	t, ok := o.deps.Registry.lookup(guildID)
	if !ok {
		return Snapshot{State: StateIdle}
	}
	return t.snapshot()
}

// Close stops every loop, leaves every channel and waits for the loops
// to exit. Requests still queued complete with ErrClosed. It is meant for
// process shutdown.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.closed = true
	o.cancel()
	o.mu.Unlock()

	o.wg.Wait()
	for _, t := range o.deps.Registry.all() {
		if err := t.disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
			t.logger.Warn("Failed to disconnect during shutdown", "error", err)
		}
	}
	return nil
}
