package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/clipster/internal/generator"
)

// DefaultFlowTTL is how long a multi-step flow waits for its next step.
const DefaultFlowTTL = 2 * time.Minute

func InstanceIDFromInteraction(i *discordgo.InteractionCreate) string {
	var customID string

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		customID = i.ModalSubmitData().CustomID
	default:
		return ""
	}

	return InstanceIDFromCustomID(customID)
}

func InstanceIDFromCustomID(customID string) string {
	parts := strings.SplitN(customID, ":", 2)
	if len(parts) != 2 {
		return ""
	}

	return parts[1]
}

func ActionFromCustomID(customID string) string {
	action, _, _ := strings.Cut(customID, ":")
	return action
}

// CustomID tags a component with the flow instance it belongs to.
func CustomID(action, instanceID string) string {
	return action + ":" + instanceID
}

// isComponent matches a button or menu by the action part of its custom id.
func isComponent(action string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionMessageComponent {
			return false
		}
		return ActionFromCustomID(i.MessageComponentData().CustomID) == action
	}
}

type FlowContext struct {
	InstanceID string
	// UserID is who started the flow. Later steps from anyone else are
	// ignored.
	UserID string
	State  map[string]any
}

type NodeHandler func(context.Context, DiscordSession, *discordgo.InteractionCreate, *FlowContext) error

type Node struct {
	ID      string
	Matcher func(*discordgo.InteractionCreate) bool
	Handler NodeHandler
	Next    []*Node
}

type Flow struct {
	ID   string
	Root *Node
}

// single wraps a one-step flow.
func single(id string, matcher func(*discordgo.InteractionCreate) bool, handler NodeHandler) *Flow {
	return &Flow{ID: id, Root: &Node{ID: id, Matcher: matcher, Handler: handler}}
}

type session struct {
	flow    *Flow
	node    *Node
	ctx     *FlowContext
	expires time.Time
}

type FlowManager struct {
	flowsMu sync.RWMutex
	flows   []*Flow

	sessionsMu sync.Mutex
	sessions   map[string]*session

	idGenerator generator.Generator[string]
	ttl         time.Duration
	now         func() time.Time
}

func NewFlowManager(idGenerator generator.Generator[string], ttl time.Duration) *FlowManager {
	if idGenerator == nil {
		idGenerator = &generator.UUIDV4Generator{}
	}
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	return &FlowManager{
		sessions:    make(map[string]*session),
		idGenerator: idGenerator,
		ttl:         ttl,
		now:         time.Now,
	}
}

// RegisterFlow adds flow. Flows are matched in registration order.
func (fm *FlowManager) RegisterFlow(flow *Flow) {
	fm.flowsMu.Lock()
	defer fm.flowsMu.Unlock()

	for _, f := range fm.flows {
		if f.ID == flow.ID {
			panic("flow already registered: " + flow.ID)
		}
	}
	fm.flows = append(fm.flows, flow)
}

// Router runs the step of whichever flow i belongs to. Component
// interactions of a forgotten flow return ErrFlowExpired.
func (fm *FlowManager) Router(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	instanceID := InstanceIDFromInteraction(i)
	if instanceID != "" {
		fm.sessionsMu.Lock()
		fm.pruneLocked()
		sess, inFlow := fm.sessions[instanceID]
		fm.sessionsMu.Unlock()
		if !inFlow {
			return ErrFlowExpired
		}
		return fm.advance(ctx, s, i, sess)
	}

	return fm.initializeFlow(ctx, s, i)
}

// Pending returns the number of flows waiting for another step.
func (fm *FlowManager) Pending() int {
	fm.sessionsMu.Lock()
	defer fm.sessionsMu.Unlock()
	fm.pruneLocked()
	return len(fm.sessions)
}

func (fm *FlowManager) pruneLocked() {
	now := fm.now()
	for id, sess := range fm.sessions {
		if now.After(sess.expires) {
			delete(fm.sessions, id)
		}
	}
}

func (fm *FlowManager) finish(sess *session) {
	fm.sessionsMu.Lock()
	delete(fm.sessions, sess.ctx.InstanceID)
	fm.sessionsMu.Unlock()
}

func (fm *FlowManager) advance(
	ctx context.Context,
	s DiscordSession,
	i *discordgo.InteractionCreate,
	sess *session,
) error {
	if sess.ctx.UserID != "" && interactionUserID(i) != sess.ctx.UserID {
		return nil
	}

	var nextNode *Node
	for _, n := range sess.node.Next {
		if n.Matcher(i) {
			nextNode = n
			break
		}
	}
	if nextNode == nil {
		return nil
	}

	sess.node = nextNode
	if len(nextNode.Next) == 0 {
		fm.finish(sess)
	}
	return nextNode.Handler(ctx, s, i, sess.ctx)
}

func (fm *FlowManager) initializeFlow(ctx context.Context, s DiscordSession, i *discordgo.InteractionCreate) error {
	fm.flowsMu.RLock()
	var f *Flow
	for _, flow := range fm.flows {
		if flow.Root.Matcher(i) {
			f = flow
			break
		}
	}
	fm.flowsMu.RUnlock()
	if f == nil {
		return nil
	}

	flowCtx := &FlowContext{
		UserID: interactionUserID(i),
		State:  make(map[string]any),
	}
	if len(f.Root.Next) == 0 {
		return f.Root.Handler(ctx, s, i, flowCtx)
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return fmt.Errorf("failed to generate instance ID: %w", err)
	}
	flowCtx.InstanceID = instanceID

	fm.sessionsMu.Lock()
	fm.sessions[instanceID] = &session{
		flow:    f,
		node:    f.Root,
		ctx:     flowCtx,
		expires: fm.now().Add(fm.ttl),
	}
	fm.sessionsMu.Unlock()

	if err := f.Root.Handler(ctx, s, i, flowCtx); err != nil {
		fm.finish(&session{ctx: flowCtx})
		return err
	}
	return nil
}
