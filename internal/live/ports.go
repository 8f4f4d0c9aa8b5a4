package live

import "context"

const (
	ModeBot  = "bot"
	ModeLive = "live"

	RoleOperator = "operator"
	RoleVisitor  = "visitor"
)

// EventKind tags everything that can happen on a session channel.
type EventKind string

const (
	EventOperatorJoined  EventKind = "operator_joined"
	EventOperatorLeft    EventKind = "operator_left"
	EventVisitorMessage  EventKind = "visitor_message"
	EventOperatorMessage EventKind = "operator_message"
)

// Event is the tagged channel event. OperatorID is set for presence
// events, Text/MessageKind for message events.
type Event struct {
	Kind        EventKind
	OperatorID  string
	Text        string
	MessageKind string
}

// Member is one presence-set entry on a session channel.
type Member struct {
	ClientID string
	Role     string
}

// Channel — one session's realtime channel.
type Channel interface {
	Publish(ctx context.Context, name string, payload any) error
	SubscribePresence(ctx context.Context, onEnter, onLeave func(Member)) (func(), error)
	Presence(ctx context.Context) ([]Member, error)
}

// Transport hands out channels by name.
type Transport interface {
	Channel(name string) Channel
}

// Sink receives the coordinator's side effects on the timeline.
type Sink interface {
	SystemMessage(ctx context.Context, tenantID, sessionID, text string) error
	SetMode(ctx context.Context, tenantID, sessionID, mode string) error
}
