package playback_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glizzus/clipster/internal/playback"
)

type fakeAudio struct {
	name   string
	closed atomic.Bool
}

func newAudio(name string) *fakeAudio {
	return &fakeAudio{name: name}
}

func (a *fakeAudio) ReadFrame() ([]byte, error) {
	return nil, io.EOF
}

func (a *fakeAudio) Close() error {
	a.closed.Store(true)
	return nil
}

type fakePlay struct {
	audio      *fakeAudio
	onFinished func()
	stopped    bool
	ended      bool
}

// end delivers the transport's finished signal for this play.
func (p *fakePlay) end() {
	p.onFinished()
}

type fakeGateway struct {
	mu sync.Mutex

	permissions map[string]playback.Permissions
	present     map[string]bool
	occupancy   map[string]int
	blockGuild  string

	// autoFinish makes every play end on its own shortly after it starts.
	autoFinish bool
	// stopSignals makes Stop deliver the finished signal, like a real transport.
	stopSignals bool
	// connectGate holds every Connect until it is closed. connecting
	// receives a value when a Connect starts waiting on it.
	connectGate chan struct{}
	connecting  chan struct{}

	connects    int
	conns       []*fakeConn
	overlapping atomic.Int32

	played chan string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		permissions: make(map[string]playback.Permissions),
		present:     make(map[string]bool),
		occupancy:   make(map[string]int),
		played:      make(chan string, 100),
	}
}

func (g *fakeGateway) Permissions(_ context.Context, _, channelID string) (playback.Permissions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.permissions[channelID]; ok {
		return p, nil
	}
	return playback.Permissions{Connect: true, Speak: true}, nil
}

func (g *fakeGateway) BotPresent(_ context.Context, _, channelID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.present[channelID], nil
}

func (g *fakeGateway) Connect(ctx context.Context, guildID, channelID string) (playback.Connection, error) {
	g.mu.Lock()
	block := guildID == g.blockGuild
	gate, connecting := g.connectGate, g.connecting
	g.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if gate != nil {
		if connecting != nil {
			connecting <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.connects++
	conn := &fakeConn{gateway: g, channelID: channelID, connected: true}
	g.conns = append(g.conns, conn)
	return conn, nil
}

func (g *fakeGateway) Occupancy(_ context.Context, _, channelID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.occupancy[channelID]; ok {
		return n, nil
	}
	return 2, nil
}

func (g *fakeGateway) connectCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connects
}

func (g *fakeGateway) lastConn(t *testing.T) *fakeConn {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) == 0 {
		t.Fatalf("no connection was made")
	}
	return g.conns[len(g.conns)-1]
}

type fakeConn struct {
	gateway *fakeGateway

	mu          sync.Mutex
	channelID   string
	connected   bool
	moves       []string
	disconnects int
	plays       []*fakePlay
	current     *fakePlay
}

func (c *fakeConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *fakeConn) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moves = append(c.moves, channelID)
	c.channelID = channelID
	return nil
}

func (c *fakeConn) Play(audio playback.AudioSource, onFinished func()) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return errors.New("not connected")
	}
	if c.current != nil && !c.current.stopped && !c.current.ended {
		c.gateway.overlapping.Add(1)
	}
	fa := audio.(*fakeAudio)
	p := &fakePlay{audio: fa}
	p.onFinished = func() {
		c.mu.Lock()
		p.ended = true
		c.mu.Unlock()
		onFinished()
	}
	c.plays = append(c.plays, p)
	c.current = p
	c.mu.Unlock()

	c.gateway.played <- fa.name

	if c.gateway.autoFinish {
		go func() {
			time.Sleep(5 * time.Millisecond)
			p.end()
		}()
	}
	return nil
}

func (c *fakeConn) Stop() {
	c.mu.Lock()
	p := c.current
	if p == nil || p.stopped || p.ended {
		c.mu.Unlock()
		return
	}
	p.stopped = true
	signal := c.gateway.stopSignals
	c.mu.Unlock()

	if signal {
		go p.end()
	}
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
	return nil
}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) play(t *testing.T, i int) *fakePlay {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.plays) {
		t.Fatalf("play %d was never started (%d plays)", i, len(c.plays))
	}
	return c.plays[i]
}

func (c *fakeConn) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type fakeOpener struct{}

func (fakeOpener) OpenPath(_ context.Context, path string) (playback.AudioSource, error) {
	return newAudio(path), nil
}

// hookOpener runs onOpen while a clip is being opened, standing in for
// whatever else happens in that window.
type hookOpener struct {
	mu     sync.Mutex
	opened []*fakeAudio
	onOpen func(path string)
}

func (h *hookOpener) OpenPath(_ context.Context, path string) (playback.AudioSource, error) {
	audio := newAudio(path)
	h.mu.Lock()
	h.opened = append(h.opened, audio)
	onOpen := h.onOpen
	h.mu.Unlock()
	if onOpen != nil {
		onOpen(path)
	}
	return audio, nil
}

func (h *hookOpener) first(t *testing.T) *fakeAudio {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.opened) == 0 {
		t.Fatalf("no clip was opened")
	}
	return h.opened[0]
}

type recordedFailure struct {
	requestID string
	err       error
}

type fakeNotifier struct {
	mu       sync.Mutex
	failures []recordedFailure
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, _ string, req *playback.PlayRequest, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, recordedFailure{requestID: req.ID, err: err})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failures)
}

type fakeAudit struct {
	mu      sync.Mutex
	records []playback.PlayRecord
}

func (a *fakeAudit) Record(_ context.Context, record playback.PlayRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return nil
}

func (a *fakeAudit) outcomes() []playback.Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	var outcomes []playback.Outcome
	for _, r := range a.records {
		outcomes = append(outcomes, r.Outcome)
	}
	return outcomes
}

// results collects completion results in the order they arrive.
type results struct {
	mu   sync.Mutex
	seen []playback.Result
	ch   chan playback.Result
}

func newResults() *results {
	return &results{ch: make(chan playback.Result, 100)}
}

func (r *results) completion() playback.Completion {
	return playback.CompletionFunc(func(res playback.Result) {
		r.mu.Lock()
		r.seen = append(r.seen, res)
		r.mu.Unlock()
		r.ch <- res
	})
}

func (r *results) wait(t *testing.T) playback.Result {
	t.Helper()
	select {
	case res := <-r.ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a request to complete")
		return playback.Result{}
	}
}

func waitPlayed(t *testing.T, g *fakeGateway) string {
	t.Helper()
	select {
	case name := <-g.played:
		return name
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback to start")
		return ""
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never held: %s", what)
}

type sequentialIDs struct {
	n atomic.Int64
}

func (s *sequentialIDs) Next() (string, error) {
	return fmt.Sprintf("req-%d", s.n.Add(1)), nil
}

func newOrchestrator(t *testing.T, g *fakeGateway, cfg playback.Config, deps playback.Dependencies) *playback.Orchestrator {
	t.Helper()
	deps.Gateway = g
	if deps.IDs == nil {
		deps.IDs = &sequentialIDs{}
	}
	o := playback.New(cfg, deps)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func request(name, requester, channel string, done playback.Completion) *playback.PlayRequest {
	return &playback.PlayRequest{
		RequesterID: requester,
		ChannelID:   channel,
		Audio:       newAudio(name),
		FilePath:    name,
		OnComplete:  done,
	}
}
