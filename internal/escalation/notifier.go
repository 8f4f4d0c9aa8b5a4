package escalation

import (
	"context"
	"log"
	"net/http"
	"net/url"
)

// Notifier fans an escalation out to every registered push subscriber.
type Notifier struct {
	store        SubscriptionStore
	sender       PushSender
	dashboardURL string
}

func NewNotifier(store SubscriptionStore, sender PushSender, dashboardURL string) *Notifier {
	return &Notifier{store: store, sender: sender, dashboardURL: dashboardURL}
}

// NotifyWaiting tells every subscriber that a visitor is waiting. Delivery
// failures are isolated per subscriber; a "gone" status (404/410) removes
// that subscription permanently.
func (n *Notifier) NotifyWaiting(ctx context.Context, tenantID, sessionID string) error {
	subs, err := n.store.ListSubscriptions(ctx)
	if err != nil {
		return err
	}

	log.Printf("[push] notifying %d subscribers session=%s", len(subs), sessionID)

	note := Notification{
		Title: "Mchatly: User waiting",
		Body:  "A user is waiting for a reply.",
		Tag:   sessionID,
		URL:   n.dashboardURL + "/live-chats?session=" + url.QueryEscape(sessionID),
	}

	for _, sub := range subs {
		status, err := n.sender.Send(ctx, sub, note)
		if err != nil {
			log.Printf("[push] delivery error sub=%d: %v", sub.ID, err)
			continue
		}
		if status == http.StatusNotFound || status == http.StatusGone {
			log.Printf("[push] removing gone subscription sub=%d", sub.ID)
			if err := n.store.RemoveSubscription(ctx, sub.ID); err != nil {
				log.Printf("[push] remove subscription error sub=%d: %v", sub.ID, err)
			}
			continue
		}
		if status >= 300 {
			log.Printf("[push] unexpected status sub=%d status=%d", sub.ID, status)
		}
	}

	return nil
}
