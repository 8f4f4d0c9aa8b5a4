package escalation

import (
	"context"
	"time"
)

// Subscription is one registered push target.
type Subscription struct {
	ID       int64
	Endpoint string
	Auth     string
	P256dh   string
}

type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub *Subscription) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	RemoveSubscription(ctx context.Context, id int64) error
}

type Notification struct {
	Title string
	Body  string
	Tag   string
	URL   string
}

// PushSender delivers one notification and reports the HTTP status of the
// push service response.
type PushSender interface {
	Send(ctx context.Context, sub Subscription, n Notification) (int, error)
}

// Condition is re-checked at fire time; true means the session was already
// handled and the escalation must be suppressed.
type Condition func(ctx context.Context, tenantID, sessionID string, armedAt time.Time) (bool, error)

// NotifyFunc performs the actual escalation once the window expires unhandled.
type NotifyFunc func(ctx context.Context, tenantID, sessionID string) error
