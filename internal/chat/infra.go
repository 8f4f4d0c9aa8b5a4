package chat

import (
	"context"
	"database/sql"
	"time"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	var t Tenant
	err := r.db.QueryRowContext(ctx, `
		SELECT token, name, instruction_text
		FROM chatbots
		WHERE token = $1
	`, tenantID).Scan(&t.ID, &t.Name, &t.Instructions)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) SaveMessage(ctx context.Context, msg *Message) error {
	kind := msg.Kind
	if kind == "" {
		kind = KindText
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO messages (chatbot_token, session_id, sender, text, kind, name, whatsapp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		msg.TenantID,
		msg.SessionID,
		string(msg.Sender),
		msg.Text,
		string(kind),
		msg.Name,
		msg.Whatsapp,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *repo) GetHistory(ctx context.Context, tenantID, sessionID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chatbot_token, session_id, sender, text, kind, name, whatsapp, created_at
		FROM messages
		WHERE chatbot_token = $1 AND session_id = $2
		ORDER BY created_at ASC, id ASC
	`, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var sender, kind string
		if err := rows.Scan(
			&m.ID,
			&m.TenantID,
			&m.SessionID,
			&sender,
			&m.Text,
			&kind,
			&m.Name,
			&m.Whatsapp,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Sender = Sender(sender)
		m.Kind = Kind(kind)
		out = append(out, m)
	}

	return out, rows.Err()
}

func (r *repo) TouchSession(ctx context.Context, s *Session) error {
	mode := s.Mode
	if mode == "" {
		mode = ModeBot
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (chatbot_token, session_id, name, whatsapp, mode)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chatbot_token, session_id) DO UPDATE SET
			last_activity_at = now(),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), sessions.name),
			whatsapp = COALESCE(NULLIF(EXCLUDED.whatsapp, ''), sessions.whatsapp)
	`,
		s.TenantID,
		s.SessionID,
		s.Name,
		s.Whatsapp,
		string(mode),
	)
	return err
}

func (r *repo) SetSessionMode(ctx context.Context, tenantID, sessionID string, mode Mode) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET mode = $3, last_activity_at = now()
		WHERE chatbot_token = $1 AND session_id = $2
	`, tenantID, sessionID, string(mode))
	return err
}

func (r *repo) FindOperatorReplyAfter(ctx context.Context, tenantID, sessionID string, after time.Time) (*Message, error) {
	var m Message
	var sender, kind string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, chatbot_token, session_id, sender, text, kind, name, whatsapp, created_at
		FROM messages
		WHERE chatbot_token = $1 AND session_id = $2 AND sender = 'operator' AND created_at > $3
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, tenantID, sessionID, after).Scan(
		&m.ID,
		&m.TenantID,
		&m.SessionID,
		&sender,
		&m.Text,
		&kind,
		&m.Name,
		&m.Whatsapp,
		&m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Sender = Sender(sender)
	m.Kind = Kind(kind)
	return &m, nil
}

// LiveSink lets the handoff coordinator append system lines and mirror
// mode flips without knowing the chat types.
type LiveSink struct {
	repo Repo
}

func NewLiveSink(repo Repo) *LiveSink {
	return &LiveSink{repo: repo}
}

func (s *LiveSink) SystemMessage(ctx context.Context, tenantID, sessionID, text string) error {
	return s.repo.SaveMessage(ctx, &Message{
		TenantID:  tenantID,
		SessionID: sessionID,
		Sender:    SenderBot,
		Text:      text,
		Kind:      KindText,
	})
}

func (s *LiveSink) SetMode(ctx context.Context, tenantID, sessionID, mode string) error {
	return s.repo.SetSessionMode(ctx, tenantID, sessionID, Mode(mode))
}
