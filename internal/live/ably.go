package live

import (
	"context"
	"encoding/json"
	"os"

	"github.com/ably/ably-go/ably"
)

// AblyTransport backs Transport with Ably realtime channels. Presence
// members are expected to carry {"role": "..."} in their presence data;
// the dashboard enters as operator, the widget as visitor.
type AblyTransport struct {
	client *ably.Realtime
}

func NewAblyTransport() (*AblyTransport, error) {
	client, err := ably.NewRealtime(
		ably.WithKey(os.Getenv("ABLY_API_KEY")),
		ably.WithClientID("chat-engine"),
	)
	if err != nil {
		return nil, err
	}
	return &AblyTransport{client: client}, nil
}

func (t *AblyTransport) Channel(name string) Channel {
	return &ablyChannel{ch: t.client.Channels.Get(name)}
}

func (t *AblyTransport) Close() {
	t.client.Close()
}

type ablyChannel struct {
	ch *ably.RealtimeChannel
}

func (c *ablyChannel) Publish(ctx context.Context, name string, payload any) error {
	return c.ch.Publish(ctx, name, payload)
}

func (c *ablyChannel) SubscribePresence(ctx context.Context, onEnter, onLeave func(Member)) (func(), error) {
	unsubEnter, err := c.ch.Presence.Subscribe(ctx, ably.PresenceActionEnter, func(pm *ably.PresenceMessage) {
		onEnter(memberOf(pm))
	})
	if err != nil {
		return nil, err
	}
	unsubLeave, err := c.ch.Presence.Subscribe(ctx, ably.PresenceActionLeave, func(pm *ably.PresenceMessage) {
		onLeave(memberOf(pm))
	})
	if err != nil {
		unsubEnter()
		return nil, err
	}
	return func() {
		unsubEnter()
		unsubLeave()
	}, nil
}

func (c *ablyChannel) Presence(ctx context.Context) ([]Member, error) {
	messages, err := c.ch.Presence.Get(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(messages))
	for _, pm := range messages {
		members = append(members, memberOf(pm))
	}
	return members, nil
}

func memberOf(pm *ably.PresenceMessage) Member {
	return Member{ClientID: pm.ClientID, Role: presenceRole(pm.Data)}
}

// presenceRole digs the role out of presence data, which arrives either
// already decoded or as a raw JSON string depending on the publisher.
func presenceRole(data any) string {
	switch v := data.(type) {
	case map[string]any:
		if role, ok := v["role"].(string); ok {
			return role
		}
	case string:
		var d struct {
			Role string `json:"role"`
		}
		if json.Unmarshal([]byte(v), &d) == nil {
			return d.Role
		}
	case []byte:
		var d struct {
			Role string `json:"role"`
		}
		if json.Unmarshal(v, &d) == nil {
			return d.Role
		}
	}
	return ""
}

var _ Transport = (*AblyTransport)(nil)
