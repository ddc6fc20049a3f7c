package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// State is where a guild's playback loop currently is.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a guild.
type Snapshot struct {
	State       State
	Active      *PlayRequest
	QueueLength int
	ChannelID   string
	Votes       int
}

// activeRequest is the request currently owning the connection. Its
// generation is compared against finish signals from the transport so a
// late signal for a superseded request is dropped.
type activeRequest struct {
	req        *PlayRequest
	generation uint64
	started    time.Time
	done       chan struct{}
	finished   bool
	skipped    bool
	// leave is set by a disconnect that arrived before the connection was
	// installed. The join is undone as soon as it completes.
	leave bool
}

// finish must be called with the tenant lock held.
func (a *activeRequest) finish() {
	if !a.finished {
		a.finished = true
		close(a.done)
	}
}

type tenant struct {
	id       string
	cfg      Config
	gateway  VoiceGateway
	opener   SourceOpener
	notifier Notifier
	audit    AuditSink
	logger   *slog.Logger
	newID    func() string
	pick     func(n int) int

	wake chan struct{}

	mu           sync.Mutex
	queue        []*PlayRequest
	active       *activeRequest
	generation   uint64
	conn         Connection
	votes        map[string]struct{}
	state        State
	lastActivity time.Time
}

func (t *tenant) enqueue(req *PlayRequest, front bool) {
	req.queuedAt = time.Now()

	t.mu.Lock()
	if front {
		t.queue = append([]*PlayRequest{req}, t.queue...)
	} else {
		t.queue = append(t.queue, req)
	}
	t.mu.Unlock()

	t.notify()
}

func (t *tenant) notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// run is the guild's only consumer. It exits when ctx is done.
func (t *tenant) run(ctx context.Context) {
	defer t.drain()
	for {
		req, err := t.next(ctx)
		if err != nil {
			return
		}
		t.serve(ctx, req)
	}
}

// drain releases every request still queued when the loop stops. Each one
// completes with ErrClosed.
func (t *tenant) drain() {
	t.mu.Lock()
	queue := t.queue
	t.queue = nil
	t.mu.Unlock()

	for _, req := range queue {
		if req.Audio != nil {
			if err := req.Audio.Close(); err != nil {
				t.logger.Debug("Failed to close audio source", "requestID", req.ID, "error", err)
			}
		}
		metricRequests.WithLabelValues(string(OutcomeFailed)).Inc()
		if req.OnComplete == nil {
			continue
		}
		now := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := t.guard(req, "completion", func() error {
			return req.OnComplete.Complete(ctx, Result{
				RequestID: req.ID,
				Err:       ErrClosed,
				Started:   now,
				Finished:  now,
			})
		})
		cancel()
		if err != nil {
			t.logger.Warn("Completion callback failed", "requestID", req.ID, "error", err)
		}
	}
}

// next blocks until a request is queued, leaving the channel whenever the
// connection has been idle for longer than the configured timeout.
func (t *tenant) next(ctx context.Context) (*PlayRequest, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.mu.Lock()
		if len(t.queue) > 0 {
			req := t.queue[0]
			t.queue[0] = nil
			t.queue = t.queue[1:]
			t.mu.Unlock()
			return req, nil
		}

		var timer *time.Timer
		var idle <-chan time.Time
		if t.conn != nil && t.cfg.IdleTimeout > 0 {
			wait := max(time.Until(t.lastActivity.Add(t.cfg.IdleTimeout)), 0)
			timer = time.NewTimer(wait)
			idle = timer.C
		}
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil, ctx.Err()
		case <-t.wake:
			stopTimer(timer)
		case <-idle:
			t.leaveIdle(ctx)
		}
	}
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

func (t *tenant) leaveIdle(ctx context.Context) {
	t.mu.Lock()
	conn := t.conn
	stillIdle := conn != nil && len(t.queue) == 0 && time.Since(t.lastActivity) >= t.cfg.IdleTimeout
	t.mu.Unlock()
	if !stillIdle {
		return
	}

	metricIdleDisconnects.Inc()
	t.logger.Info(
		"Leaving voice channel after inactivity",
		"channelID", conn.ChannelID(),
		"idleTimeout", t.cfg.IdleTimeout,
	)

	if len(t.cfg.SignOffClipPaths) > 0 && t.opener != nil {
		path := t.cfg.SignOffClipPaths[t.pick(len(t.cfg.SignOffClipPaths))]
		audio, err := t.opener.OpenPath(ctx, path)
		if err == nil {
			t.signOff(conn, path, audio)
			return
		}
		t.logger.Warn("Failed to open sign-off clip, disconnecting without it", "path", path, "error", err)
	}

	t.mu.Lock()
	busy := len(t.queue) > 0
	t.mu.Unlock()
	if busy {
		t.logger.Debug("Staying in voice channel for a new request")
		return
	}

	if err := t.disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		t.logger.Warn("Failed to disconnect idle voice connection", "error", err)
	}
}

// signOff queues the sign-off clip ahead of everything, unless a request
// arrived while the clip was being opened. Then the bot stays and the clip
// is dropped.
func (t *tenant) signOff(conn Connection, path string, audio AudioSource) {
	req := &PlayRequest{
		ID:        t.newID(),
		ChannelID: conn.ChannelID(),
		Audio:     audio,
		FilePath:  path,
		SignOff:   true,
		OnComplete: CompletionFunc(func(Result) {
			if err := t.disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
				t.logger.Warn("Failed to disconnect after sign-off clip", "error", err)
			}
		}),
		queuedAt: time.Now(),
	}

	t.mu.Lock()
	busy := len(t.queue) > 0 || t.conn != conn
	if !busy {
		t.queue = append([]*PlayRequest{req}, t.queue...)
	}
	t.mu.Unlock()

	if busy {
		t.logger.Debug("Dropping sign-off clip for a new request", "path", path)
		if err := audio.Close(); err != nil {
			t.logger.Debug("Failed to close sign-off clip", "path", path, "error", err)
		}
		return
	}
	t.notify()
}

// serve takes one request from activation to discard. Panics are contained
// to the request.
func (t *tenant) serve(ctx context.Context, req *PlayRequest) {
	a := t.activate(req)
	defer t.deactivate(a)

	err := t.guard(req, "play", func() error {
		return t.play(ctx, a)
	})
	t.complete(ctx, a, err)
}

func (t *tenant) guard(req *PlayRequest, step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(
				"Recovered from panic in playback loop",
				"step", step,
				"requestID", req.ID,
				"filePath", req.FilePath,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("panic during %s: %v", step, r)
		}
	}()
	return fn()
}

func (t *tenant) activate(req *PlayRequest) *activeRequest {
	now := time.Now()
	if !req.queuedAt.IsZero() {
		metricQueueWait.Observe(now.Sub(req.queuedAt).Seconds())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	a := &activeRequest{
		req:        req,
		generation: t.generation,
		started:    now,
		done:       make(chan struct{}),
	}
	t.active = a
	clear(t.votes)
	if !req.SignOff {
		t.lastActivity = now
	}
	t.state = StateConnecting
	return a
}

func (t *tenant) deactivate(a *activeRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == a {
		t.active = nil
		t.state = StateIdle
	}
}

func (t *tenant) play(ctx context.Context, a *activeRequest) error {
	conn, err := t.connect(ctx, a)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if a.finished {
		// Skipped or disconnected while we were joining.
		t.mu.Unlock()
		return nil
	}
	if t.conn != conn {
		t.mu.Unlock()
		return fmt.Errorf("voice connection to %s closed before playback", a.req.ChannelID)
	}
	t.state = StatePlaying
	t.mu.Unlock()

	conn.Stop()

	t.logger.Debug(
		"Playing clip",
		"requestID", a.req.ID,
		"filePath", a.req.FilePath,
		"channelID", a.req.ChannelID,
		"requesterID", a.req.RequesterID,
	)

	generation := a.generation
	if err := conn.Play(a.req.Audio, func() { t.finished(generation) }); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	select {
	case <-a.done:
	case <-ctx.Done():
		conn.Stop()
		return ctx.Err()
	}

	t.mu.Lock()
	interrupted := a.skipped
	t.mu.Unlock()
	if interrupted {
		// Only the loop starts streams, so stopping here can never cut off
		// the next request.
		conn.Stop()
	}
	return nil
}

// finished is the transport's end-of-stream signal.
func (t *tenant) finished(generation uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.active
	if a == nil || a.generation != generation {
		t.logger.Debug("Ignoring stale playback finished signal", "generation", generation)
		return
	}
	a.finish()
}

func (t *tenant) connect(ctx context.Context, a *activeRequest) (Connection, error) {
	channelID := a.req.ChannelID
	perms, err := t.gateway.Permissions(ctx, t.id, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to check voice permissions: %w", err)
	}
	if !perms.Connect || !perms.Speak {
		return nil, &PermissionError{
			ChannelID:  channelID,
			CanConnect: perms.Connect,
			CanSpeak:   perms.Speak,
		}
	}

	t.mu.Lock()
	conn := t.conn
	if conn != nil && !conn.IsConnected() {
		t.conn = nil
		conn = nil
	}
	t.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	if conn != nil {
		if conn.ChannelID() == channelID {
			return conn, nil
		}
		if err := conn.Move(connectCtx, channelID); err != nil {
			return nil, t.connectError(ctx, channelID, fmt.Errorf("failed to move voice connection: %w", err))
		}
		return conn, nil
	}

	present, err := t.gateway.BotPresent(connectCtx, t.id, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect voice channel: %w", err)
	}
	if present {
		return nil, &AlreadyPresentError{ChannelID: channelID}
	}

	conn, err = t.gateway.Connect(connectCtx, t.id, channelID)
	if err != nil {
		return nil, t.connectError(ctx, channelID, fmt.Errorf("failed to join voice channel: %w", err))
	}

	t.mu.Lock()
	leave := a.leave
	if !leave {
		t.conn = conn
	}
	t.mu.Unlock()

	if leave {
		t.logger.Debug("Leaving voice channel joined after a disconnect", "channelID", channelID)
		if err := conn.Disconnect(); err != nil {
			t.logger.Warn("Failed to leave voice channel", "channelID", channelID, "error", err)
		}
		return nil, nil
	}
	return conn, nil
}

func (t *tenant) connectError(ctx context.Context, channelID string, err error) error {
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return &ConnectionTimeoutError{ChannelID: channelID, Err: err}
	}
	return err
}

func (t *tenant) complete(ctx context.Context, a *activeRequest, err error) {
	req := a.req
	if req.Audio != nil {
		if cerr := req.Audio.Close(); cerr != nil {
			t.logger.Debug("Failed to close audio source", "requestID", req.ID, "error", cerr)
		}
	}

	t.mu.Lock()
	skipped := a.skipped
	t.mu.Unlock()

	result := Result{
		RequestID: req.ID,
		Skipped:   skipped,
		Err:       err,
		Started:   a.started,
		Finished:  time.Now(),
	}

	outcome := OutcomeCompleted
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case skipped:
		outcome = OutcomeSkipped
	}
	metricRequests.WithLabelValues(string(outcome)).Inc()

	if err != nil && ctx.Err() == nil {
		t.logger.Error(
			"Failed to play request",
			"requestID", req.ID,
			"filePath", req.FilePath,
			"channelID", req.ChannelID,
			"error", err,
		)
		if t.notifier != nil && !req.SignOff {
			_ = t.guard(req, "notify", func() error {
				t.notifier.NotifyFailure(ctx, t.id, req, err)
				return nil
			})
		}
	}

	if req.OnComplete != nil {
		cerr := t.guard(req, "completion", func() error {
			return req.OnComplete.Complete(ctx, result)
		})
		if cerr != nil && ctx.Err() == nil {
			t.logger.Warn("Completion callback failed", "requestID", req.ID, "error", cerr)
		}
	}

	if t.audit != nil {
		record := PlayRecord{
			RequestID:   req.ID,
			GuildID:     t.id,
			ChannelID:   req.ChannelID,
			RequesterID: req.RequesterID,
			FilePath:    req.FilePath,
			Outcome:     outcome,
			StartedAt:   result.Started,
			FinishedAt:  result.Finished,
		}
		if err != nil {
			record.Error = err.Error()
		}
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if aerr := t.audit.Record(auditCtx, record); aerr != nil {
			t.logger.Warn("Failed to record play history", "requestID", req.ID, "error", aerr)
		}
		cancel()
	}
}

// skipLocked interrupts the active request. The tenant lock must be held.
func (t *tenant) skipLocked(a *activeRequest) {
	a.skipped = true
	clear(t.votes)
	a.finish()
}

func (t *tenant) forceSkip() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a := t.active
	if a == nil || a.finished {
		return ErrNotPlaying
	}
	t.logger.Debug("Skipping clip", "requestID", a.req.ID, "filePath", a.req.FilePath)
	t.skipLocked(a)
	return nil
}

func (t *tenant) voteSkip(ctx context.Context, voterID string) (VoteOutcome, error) {
	quorum := t.cfg.Quorum
	for range 3 {
		t.mu.Lock()
		a := t.active
		if a == nil || a.finished {
			t.mu.Unlock()
			return VoteOutcome{Status: VoteNotPlaying}, nil
		}
		if voterID != "" && voterID == a.req.RequesterID {
			t.skipLocked(a)
			t.mu.Unlock()
			return VoteOutcome{Status: VotePassed, SelfSkip: true}, nil
		}
		if _, voted := t.votes[voterID]; voted {
			votes := len(t.votes)
			t.mu.Unlock()
			return VoteOutcome{
				Status:             VoteAlreadyVoted,
				Votes:              votes,
				RequiredVotes:      quorum.Votes,
				RequiredPercentage: quorum.Percentage,
			}, nil
		}
		generation, channelID := a.generation, a.req.ChannelID
		t.mu.Unlock()

		occupancy, err := t.gateway.Occupancy(ctx, t.id, channelID)
		if err != nil {
			return VoteOutcome{}, fmt.Errorf("failed to count channel members: %w", err)
		}

		t.mu.Lock()
		a = t.active
		if a == nil || a.finished || a.generation != generation {
			// The clip changed while we were counting; vote on the new one.
			t.mu.Unlock()
			continue
		}
		if _, voted := t.votes[voterID]; voted {
			votes := len(t.votes)
			t.mu.Unlock()
			return VoteOutcome{
				Status:             VoteAlreadyVoted,
				Votes:              votes,
				RequiredVotes:      quorum.Votes,
				RequiredPercentage: quorum.Percentage,
			}, nil
		}
		t.votes[voterID] = struct{}{}
		votes := len(t.votes)
		percentage, passed := quorum.Evaluate(votes, occupancy)
		outcome := VoteOutcome{
			Status:             VotePending,
			Votes:              votes,
			RequiredVotes:      quorum.Votes,
			Percentage:         percentage,
			RequiredPercentage: quorum.Percentage,
		}
		if passed {
			t.skipLocked(a)
			outcome.Status = VotePassed
		}
		t.mu.Unlock()
		return outcome, nil
	}
	return VoteOutcome{Status: VoteNotPlaying}, nil
}

// disconnect leaves the voice channel right away, interrupting anything
// that is playing. A join still in progress is undone once it completes.
// Queued requests stay queued and reconnect on their own.
func (t *tenant) disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	a := t.active
	joining := conn == nil && a != nil && !a.finished && t.state == StateConnecting
	switch {
	case conn != nil && a != nil && !a.finished:
		t.skipLocked(a)
	case joining:
		a.leave = true
		t.skipLocked(a)
	}
	t.mu.Unlock()

	if joining {
		t.logger.Debug("Cancelling voice join", "requestID", a.req.ID, "channelID", a.req.ChannelID)
		t.notify()
		return nil
	}
	if conn == nil {
		return ErrNotConnected
	}
	defer t.notify()

	conn.Stop()
	if err := conn.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from %s: %w", conn.ChannelID(), err)
	}
	t.logger.Debug("Disconnected from voice channel", "channelID", conn.ChannelID())
	return nil
}

func (t *tenant) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		State:       t.state,
		QueueLength: len(t.queue),
		Votes:       len(t.votes),
	}
	if t.active != nil {
		s.Active = t.active.req
	}
	if t.conn != nil {
		s.ChannelID = t.conn.ChannelID()
	}
	return s
}
