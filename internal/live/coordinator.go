package live

import (
	"context"
	"log"
	"sync"
)

const (
	operatorJoinedLine = "Operator joined the chat."
	operatorLeftLine   = "Operator left the chat."
)

// ChannelName derives the single channel for a session; reconnecting
// clients always land on the same one.
func ChannelName(tenantID, sessionID string) string {
	return "live-chat:" + tenantID + ":" + sessionID
}

// Coordinator is the per-session bot⇄live state machine. A session is
// live while at least one operator is in the channel's presence set.
type Coordinator struct {
	transport Transport
	sink      Sink

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	tenantID    string
	sessionID   string
	channel     Channel
	operators   map[string]struct{}
	live        bool
	unsubscribe func()
}

func NewCoordinator(transport Transport, sink Sink) *Coordinator {
	return &Coordinator{
		transport: transport,
		sink:      sink,
		sessions:  make(map[string]*sessionState),
	}
}

// Attach binds a session to its channel: subscribes to presence
// enter/leave and reconciles against the current presence set, so an
// operator who was already in the channel flips the session to live
// immediately. Idempotent.
func (c *Coordinator) Attach(ctx context.Context, tenantID, sessionID string) error {
	key := tenantID + "/" + sessionID

	c.mu.Lock()
	if _, ok := c.sessions[key]; ok {
		c.mu.Unlock()
		return nil
	}
	st := &sessionState{
		tenantID:  tenantID,
		sessionID: sessionID,
		channel:   c.transport.Channel(ChannelName(tenantID, sessionID)),
		operators: make(map[string]struct{}),
	}
	c.sessions[key] = st
	c.mu.Unlock()

	// Presence events arrive out of band from message delivery; ordering
	// against messages is not assumed anywhere below.
	unsubscribe, err := st.channel.SubscribePresence(ctx,
		func(m Member) {
			if m.Role != RoleOperator {
				return
			}
			c.dispatch(context.Background(), st, Event{Kind: EventOperatorJoined, OperatorID: m.ClientID})
		},
		func(m Member) {
			if m.Role != RoleOperator {
				return
			}
			c.dispatch(context.Background(), st, Event{Kind: EventOperatorLeft, OperatorID: m.ClientID})
		},
	)
	if err != nil {
		c.mu.Lock()
		delete(c.sessions, key)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	st.unsubscribe = unsubscribe
	c.mu.Unlock()

	members, err := st.channel.Presence(ctx)
	if err != nil {
		log.Printf("[live] presence query error session=%s: %v", sessionID, err)
		return nil
	}
	for _, m := range members {
		if m.Role == RoleOperator {
			c.dispatch(ctx, st, Event{Kind: EventOperatorJoined, OperatorID: m.ClientID})
		}
	}

	return nil
}

func (c *Coordinator) IsLive(tenantID, sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[tenantID+"/"+sessionID]
	return ok && st.live
}

// ForwardToOperator publishes a visitor message into the session channel.
func (c *Coordinator) ForwardToOperator(ctx context.Context, tenantID, sessionID, text, kind string) error {
	st, err := c.state(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, st, Event{Kind: EventVisitorMessage, Text: text, MessageKind: kind})
}

// DeliverToVisitor publishes an operator message into the session channel.
func (c *Coordinator) DeliverToVisitor(ctx context.Context, tenantID, sessionID, text, kind string) error {
	st, err := c.state(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, st, Event{Kind: EventOperatorMessage, Text: text, MessageKind: kind})
}

func (c *Coordinator) state(ctx context.Context, tenantID, sessionID string) (*sessionState, error) {
	if err := c.Attach(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[tenantID+"/"+sessionID], nil
}

// dispatch is the single switch over channel events.
func (c *Coordinator) dispatch(ctx context.Context, st *sessionState, ev Event) error {
	switch ev.Kind {
	case EventOperatorJoined:
		c.mu.Lock()
		st.operators[ev.OperatorID] = struct{}{}
		wasLive := st.live
		st.live = true
		c.mu.Unlock()
		if !wasLive {
			log.Printf("[live] session=%s -> live operator=%s", st.sessionID, ev.OperatorID)
			if err := c.sink.SystemMessage(ctx, st.tenantID, st.sessionID, operatorJoinedLine); err != nil {
				log.Printf("[live] system message error: %v", err)
			}
			if err := c.sink.SetMode(ctx, st.tenantID, st.sessionID, ModeLive); err != nil {
				log.Printf("[live] set mode error: %v", err)
			}
		}
		return nil

	case EventOperatorLeft:
		c.mu.Lock()
		delete(st.operators, ev.OperatorID)
		wasLive := st.live
		st.live = len(st.operators) > 0
		stillLive := st.live
		c.mu.Unlock()
		if wasLive && !stillLive {
			log.Printf("[live] session=%s -> bot operator=%s", st.sessionID, ev.OperatorID)
			if err := c.sink.SystemMessage(ctx, st.tenantID, st.sessionID, operatorLeftLine); err != nil {
				log.Printf("[live] system message error: %v", err)
			}
			if err := c.sink.SetMode(ctx, st.tenantID, st.sessionID, ModeBot); err != nil {
				log.Printf("[live] set mode error: %v", err)
			}
		}
		return nil

	case EventVisitorMessage:
		return st.channel.Publish(ctx, "message", map[string]any{
			"role": RoleVisitor,
			"text": ev.Text,
			"type": ev.MessageKind,
		})

	case EventOperatorMessage:
		return st.channel.Publish(ctx, "message", map[string]any{
			"role": RoleOperator,
			"text": ev.Text,
			"type": ev.MessageKind,
		})
	}

	return nil
}

// Detach drops a session's channel state and presence subscriptions.
func (c *Coordinator) Detach(tenantID, sessionID string) {
	c.mu.Lock()
	key := tenantID + "/" + sessionID
	st, ok := c.sessions[key]
	if ok {
		delete(c.sessions, key)
	}
	c.mu.Unlock()
	if ok && st.unsubscribe != nil {
		st.unsubscribe()
	}
}
