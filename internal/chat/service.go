package chat

import (
	"context"
	"log"
	"strings"

	"github.com/mchatly/chat-engine/internal/ai"
)

// Fallback replies; the visitor always gets one of these when the pipeline
// cannot produce a real answer.
const (
	FallbackEmptyReply = "Sorry — I could not generate a response."
	FallbackErrorReply = "Sorry — something went wrong."
)

type service struct {
	repo       Repo
	matcher    Matcher
	ai         ai.AI
	live       LiveGateway
	escalation Escalator
	trigger    TriggerFunc
}

func NewService(repo Repo, matcher Matcher, aiClient ai.AI, live LiveGateway, escalation Escalator, trigger TriggerFunc) Service {
	return &service{
		repo:       repo,
		matcher:    matcher,
		ai:         aiClient,
		live:       live,
		escalation: escalation,
		trigger:    trigger,
	}
}

// HandleVisitorMessage routes one inbound visitor message: forward to the
// operator when the session is live, otherwise answer via retrieval +
// generation. One attempt per message, no retry of the generation call.
func (s *service) HandleVisitorMessage(ctx context.Context, msg *Message) (*RouteResult, error) {
	if msg.TenantID == "" || msg.SessionID == "" || strings.TrimSpace(msg.Text) == "" {
		return nil, ErrInvalidMessage
	}

	tenant, err := s.repo.GetTenant(ctx, msg.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrUnknownTenant
	}

	log.Println("========== NEW MESSAGE ==========")
	log.Printf("[svc] tenant=%s session=%s text=%q", msg.TenantID, msg.SessionID, msg.Text)

	msg.Sender = SenderVisitor
	if msg.Kind == "" {
		msg.Kind = KindText
	}

	if err := s.repo.TouchSession(ctx, &Session{
		TenantID:  msg.TenantID,
		SessionID: msg.SessionID,
		Name:      msg.Name,
		Whatsapp:  msg.Whatsapp,
		Mode:      ModeBot,
	}); err != nil {
		log.Printf("[svc] touch session error: %v", err)
	}

	// History is fetched before the new message is appended so the prompt
	// does not contain the current query twice.
	history, err := s.repo.GetHistory(ctx, msg.TenantID, msg.SessionID)
	if err != nil {
		log.Printf("[svc] history error: %v", err)
		history = nil
	}

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		log.Printf("[svc] save message error: %v", err)
	}

	if err := s.live.Attach(ctx, msg.TenantID, msg.SessionID); err != nil {
		log.Printf("[live] attach error: %v", err)
	}

	if s.live.IsLive(msg.TenantID, msg.SessionID) {
		log.Println("========== FORWARD TO OPERATOR ==========")
		// Best effort: an operator who left a heartbeat ago may miss this.
		if err := s.live.ForwardToOperator(ctx, msg.TenantID, msg.SessionID, msg.Text, string(msg.Kind)); err != nil {
			log.Printf("[live] forward error: %v", err)
		}
		return &RouteResult{Live: true}, nil
	}

	query := strings.TrimSpace(msg.Text)

	match, err := s.matcher.Match(ctx, msg.TenantID, query)
	if err != nil {
		log.Printf("[svc] knowledge error: %v", err)
		return s.deliverReply(ctx, msg, FallbackErrorReply, 0), nil
	}

	prompt := ComposePrompt(tenant.Instructions, match.BestFAQ, match.ContextSnippets, history, query)

	reply, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		log.Printf("[svc] generation error: %v", err)
		return s.deliverReply(ctx, msg, FallbackErrorReply, 0), nil
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = FallbackEmptyReply
	}

	res := s.deliverReply(ctx, msg, reply, len(match.ContextSnippets))

	if s.trigger != nil && s.trigger(reply) {
		log.Printf("[svc] reply promises human follow-up, arming escalation session=%s", msg.SessionID)
		res.Escalate = true
		s.escalation.Arm(msg.TenantID, msg.SessionID)
	}

	return res, nil
}

func (s *service) deliverReply(ctx context.Context, msg *Message, reply string, used int) *RouteResult {
	log.Println("========== SEND TO CHAT ==========")
	log.Printf("[svc] reply=%q usedKnowledge=%d", short(reply), used)

	if err := s.repo.SaveMessage(ctx, &Message{
		TenantID:  msg.TenantID,
		SessionID: msg.SessionID,
		Sender:    SenderBot,
		Text:      reply,
		Kind:      KindText,
	}); err != nil {
		log.Printf("[svc] save reply error: %v", err)
	}

	return &RouteResult{Reply: reply, UsedKnowledge: used}
}

// HandleOperatorMessage appends an operator turn and pushes it down the
// session channel. Timer cancellation is implicit: the escalation scheduler
// re-checks for operator replies at fire time.
func (s *service) HandleOperatorMessage(ctx context.Context, msg *Message) error {
	if msg.TenantID == "" || msg.SessionID == "" || strings.TrimSpace(msg.Text) == "" {
		return ErrInvalidMessage
	}

	tenant, err := s.repo.GetTenant(ctx, msg.TenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return ErrUnknownTenant
	}

	log.Printf("[svc] operator message tenant=%s session=%s text=%q", msg.TenantID, msg.SessionID, short(msg.Text))

	msg.Sender = SenderOperator
	if msg.Kind == "" {
		msg.Kind = KindText
	}

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		return err
	}

	if err := s.live.DeliverToVisitor(ctx, msg.TenantID, msg.SessionID, msg.Text, string(msg.Kind)); err != nil {
		log.Printf("[live] deliver error: %v", err)
	}

	return nil
}

func (s *service) History(ctx context.Context, tenantID, sessionID string) ([]Message, error) {
	return s.repo.GetHistory(ctx, tenantID, sessionID)
}

func short(s string) string {
	if len(s) > 180 {
		return s[:180] + "..."
	}
	return s
}
