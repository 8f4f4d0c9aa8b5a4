package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mchatly/chat-engine/internal/knowledge"
)

type mockRepo struct {
	tenant    *Tenant
	tenantErr error
	history   []Message
	saved     []Message
	sessions  []Session
}

func (m *mockRepo) GetTenant(_ context.Context, _ string) (*Tenant, error) {
	return m.tenant, m.tenantErr
}

func (m *mockRepo) SaveMessage(_ context.Context, msg *Message) error {
	m.saved = append(m.saved, *msg)
	return nil
}

func (m *mockRepo) GetHistory(_ context.Context, _, _ string) ([]Message, error) {
	return m.history, nil
}

func (m *mockRepo) TouchSession(_ context.Context, s *Session) error {
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *mockRepo) SetSessionMode(_ context.Context, _, _ string, _ Mode) error {
	return nil
}

func (m *mockRepo) FindOperatorReplyAfter(_ context.Context, _, _ string, _ time.Time) (*Message, error) {
	return nil, nil
}

type mockMatcher struct {
	match knowledge.Match
	err   error
	calls int
}

func (m *mockMatcher) Match(_ context.Context, _, _ string) (knowledge.Match, error) {
	m.calls++
	return m.match, m.err
}

type mockAI struct {
	reply      string
	err        error
	calls      int
	lastPrompt string
}

func (m *mockAI) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("not used")
}

func (m *mockAI) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	return m.reply, m.err
}

type mockLive struct {
	live      bool
	forwarded []string
	delivered []string
}

func (m *mockLive) Attach(_ context.Context, _, _ string) error { return nil }

func (m *mockLive) IsLive(_, _ string) bool { return m.live }

func (m *mockLive) ForwardToOperator(_ context.Context, _, _, text, _ string) error {
	m.forwarded = append(m.forwarded, text)
	return nil
}

func (m *mockLive) DeliverToVisitor(_ context.Context, _, _, text, _ string) error {
	m.delivered = append(m.delivered, text)
	return nil
}

type mockEscalator struct {
	armed []string
}

func (m *mockEscalator) Arm(_, sessionID string) {
	m.armed = append(m.armed, sessionID)
}

type fixture struct {
	repo      *mockRepo
	matcher   *mockMatcher
	ai        *mockAI
	live      *mockLive
	escalator *mockEscalator
	svc       Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:      &mockRepo{tenant: &Tenant{ID: "tok", Name: "Acme", Instructions: "Be helpful."}},
		matcher:   &mockMatcher{},
		ai:        &mockAI{reply: "Here you go."},
		live:      &mockLive{},
		escalator: &mockEscalator{},
	}
	trigger := func(reply string) bool {
		return strings.Contains(reply, "Someone will contact you shortly")
	}
	f.svc = NewService(f.repo, f.matcher, f.ai, f.live, f.escalator, trigger)
	return f
}

func visitorMsg(text string) *Message {
	return &Message{TenantID: "tok", SessionID: "s1", Text: text}
}

func TestVisitorMessageBotReply(t *testing.T) {
	f := newFixture()
	f.matcher.match = knowledge.Match{
		BestFAQ:         &knowledge.Candidate{Question: "Hours?", Text: "A: We are open 9-5.", Score: 0.95, Kind: knowledge.KindFAQ},
		ContextSnippets: []string{"We are open 9-5."},
	}
	f.ai.reply = "We are open from 9 to 5."

	res, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("What are your hours?"))
	require.NoError(t, err)
	require.Equal(t, "We are open from 9 to 5.", res.Reply)
	require.Equal(t, 1, res.UsedKnowledge)
	require.False(t, res.Live)
	require.False(t, res.Escalate)

	require.Contains(t, f.ai.lastPrompt, "FAQ Answer: We are open 9-5.")
	require.Contains(t, f.ai.lastPrompt, "User: What are your hours?")

	// visitor turn then bot turn on the timeline
	require.Len(t, f.repo.saved, 2)
	require.Equal(t, SenderVisitor, f.repo.saved[0].Sender)
	require.Equal(t, SenderBot, f.repo.saved[1].Sender)
	require.Equal(t, "We are open from 9 to 5.", f.repo.saved[1].Text)
}

func TestVisitorMessageNoKnowledge(t *testing.T) {
	f := newFixture()
	f.ai.reply = "I can try to help anyway."

	res, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("hi"))
	require.NoError(t, err)
	require.Equal(t, 0, res.UsedKnowledge)
	require.Equal(t, "I can try to help anyway.", res.Reply)
}

func TestVisitorMessageEmptyGeneration(t *testing.T) {
	f := newFixture()
	f.ai.reply = "   "

	res, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("hi"))
	require.NoError(t, err)
	require.Equal(t, FallbackEmptyReply, res.Reply)
	require.Equal(t, FallbackEmptyReply, f.repo.saved[1].Text)
}

func TestVisitorMessageMatcherFailureDegrades(t *testing.T) {
	f := newFixture()
	f.matcher.err = errors.New("index down")

	res, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("hi"))
	require.NoError(t, err)
	require.Equal(t, FallbackErrorReply, res.Reply)
	require.Equal(t, 0, res.UsedKnowledge)
	require.Zero(t, f.ai.calls, "no generation after retrieval failure")
}

func TestVisitorMessageGenerationFailureDegrades(t *testing.T) {
	f := newFixture()
	f.ai.err = errors.New("llm down")

	res, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("hi"))
	require.NoError(t, err)
	require.Equal(t, FallbackErrorReply, res.Reply)
	require.Equal(t, 1, f.ai.calls, "exactly one attempt, no retry")
}

func TestVisitorMessageArmsEscalation(t *testing.T) {
	f := newFixture()
	f.ai.reply = "Someone will contact you shortly."

	res, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("I need a human"))
	require.NoError(t, err)
	require.True(t, res.Escalate)
	require.Equal(t, []string{"s1"}, f.escalator.armed)
}

func TestVisitorMessageLiveSessionBypassesRouter(t *testing.T) {
	f := newFixture()
	f.live.live = true

	res, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("hello"))
	require.NoError(t, err)
	require.True(t, res.Live)
	require.Empty(t, res.Reply)

	require.Equal(t, []string{"hello"}, f.live.forwarded)
	require.Zero(t, f.matcher.calls, "no retrieval in live mode")
	require.Zero(t, f.ai.calls, "no generation in live mode")

	// only the visitor turn is logged; the operator answers over the channel
	require.Len(t, f.repo.saved, 1)
	require.Equal(t, SenderVisitor, f.repo.saved[0].Sender)
}

func TestVisitorMessageUnknownTenant(t *testing.T) {
	f := newFixture()
	f.repo.tenant = nil

	_, err := f.svc.HandleVisitorMessage(context.Background(), visitorMsg("hi"))
	require.ErrorIs(t, err, ErrUnknownTenant)
	require.Empty(t, f.repo.saved)
}

func TestVisitorMessageRejectedBeforeExternalCalls(t *testing.T) {
	f := newFixture()

	_, err := f.svc.HandleVisitorMessage(context.Background(), &Message{TenantID: "tok", Text: "hi"})
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = f.svc.HandleVisitorMessage(context.Background(), visitorMsg("   "))
	require.ErrorIs(t, err, ErrInvalidMessage)

	require.Zero(t, f.matcher.calls)
	require.Zero(t, f.ai.calls)
}

func TestOperatorMessageLoggedAndDelivered(t *testing.T) {
	f := newFixture()

	msg := &Message{TenantID: "tok", SessionID: "s1", Text: "Hi, operator here"}
	require.NoError(t, f.svc.HandleOperatorMessage(context.Background(), msg))

	require.Len(t, f.repo.saved, 1)
	require.Equal(t, SenderOperator, f.repo.saved[0].Sender)
	require.Equal(t, []string{"Hi, operator here"}, f.live.delivered)
}

func TestOperatorMessageUnknownTenant(t *testing.T) {
	f := newFixture()
	f.repo.tenant = nil

	err := f.svc.HandleOperatorMessage(context.Background(), &Message{TenantID: "bad", SessionID: "s1", Text: "x"})
	require.ErrorIs(t, err, ErrUnknownTenant)
}
