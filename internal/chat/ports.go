package chat

import (
	"context"
	"errors"
	"time"

	"github.com/mchatly/chat-engine/internal/knowledge"
)

type Sender string

const (
	SenderVisitor  Sender = "visitor"
	SenderBot      Sender = "bot"
	SenderOperator Sender = "operator"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVoice Kind = "voice"
)

type Mode string

const (
	ModeBot  Mode = "bot"
	ModeLive Mode = "live"
)

var (
	ErrInvalidMessage = errors.New("chat: missing tenant, session, or text")
	ErrUnknownTenant  = errors.New("chat: unknown tenant")
)

// Message — one turn in a session's timeline. Append-only.
type Message struct {
	ID        int64
	TenantID  string
	SessionID string
	Sender    Sender
	Text      string
	Kind      Kind
	Name      string
	Whatsapp  string
	CreatedAt time.Time
}

// Tenant — one chatbot configuration (scoped by its widget token).
type Tenant struct {
	ID           string
	Name         string
	Instructions string
}

type Session struct {
	TenantID       string
	SessionID      string
	Name           string
	Whatsapp       string
	Mode           Mode
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Repo — persistence
type Repo interface {
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)
	SaveMessage(ctx context.Context, msg *Message) error
	GetHistory(ctx context.Context, tenantID, sessionID string) ([]Message, error)
	TouchSession(ctx context.Context, s *Session) error
	SetSessionMode(ctx context.Context, tenantID, sessionID string, mode Mode) error
	FindOperatorReplyAfter(ctx context.Context, tenantID, sessionID string, after time.Time) (*Message, error)
}

// RouteResult is what the router decided for one visitor message.
type RouteResult struct {
	Reply         string
	UsedKnowledge int
	Escalate      bool
	Live          bool
}

// Service — orchestration
type Service interface {
	HandleVisitorMessage(ctx context.Context, msg *Message) (*RouteResult, error)
	HandleOperatorMessage(ctx context.Context, msg *Message) error
	History(ctx context.Context, tenantID, sessionID string) ([]Message, error)
}

// Matcher — retrieval step (implemented by knowledge.Matcher)
type Matcher interface {
	Match(ctx context.Context, tenantID, query string) (knowledge.Match, error)
}

// LiveGateway — presence-driven handoff (implemented by live.Coordinator)
type LiveGateway interface {
	Attach(ctx context.Context, tenantID, sessionID string) error
	IsLive(tenantID, sessionID string) bool
	ForwardToOperator(ctx context.Context, tenantID, sessionID, text, kind string) error
	DeliverToVisitor(ctx context.Context, tenantID, sessionID, text, kind string) error
}

// Escalator — debounced human notification (implemented by escalation.Scheduler)
type Escalator interface {
	Arm(tenantID, sessionID string)
}

// TriggerFunc reports whether a bot reply promises human follow-up.
type TriggerFunc func(reply string) bool
