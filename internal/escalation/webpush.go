package escalation

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushSender delivers VAPID web-push notifications.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
}

func NewWebPushSender() *WebPushSender {
	publicKey := os.Getenv("VAPID_PUBLIC_KEY")
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	if publicKey == "" || privateKey == "" {
		log.Fatal("VAPID_PUBLIC_KEY / VAPID_PRIVATE_KEY not set")
	}

	subscriber := os.Getenv("VAPID_SUBSCRIBER")
	if subscriber == "" {
		subscriber = "mailto:admin@mchatly.app"
	}

	return &WebPushSender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub Subscription, n Notification) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"title": n.Title,
		"body":  n.Body,
		"tag":   n.Tag,
		"data":  map[string]string{"url": n.URL},
	})
	if err != nil {
		return 0, err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

var _ PushSender = (*WebPushSender)(nil)
