package escalation

import (
	"context"
	"database/sql"
)

type store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) SubscriptionStore {
	return &store{db: db}
}

func (s *store) SaveSubscription(ctx context.Context, sub *Subscription) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO push_subscriptions (endpoint, auth, p256dh)
		VALUES ($1, $2, $3)
		ON CONFLICT (endpoint) DO UPDATE SET auth = EXCLUDED.auth, p256dh = EXCLUDED.p256dh
		RETURNING id
	`,
		sub.Endpoint,
		sub.Auth,
		sub.P256dh,
	).Scan(&sub.ID)
}

func (s *store) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, auth, p256dh
		FROM push_subscriptions
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.Auth, &sub.P256dh); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	return out, rows.Err()
}

func (s *store) RemoveSubscription(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM push_subscriptions WHERE id = $1
	`, id)
	return err
}
