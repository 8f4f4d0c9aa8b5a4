package escalation

import (
	"encoding/json"
	"net/http"
)

type Handler struct {
	store SubscriptionStore
}

func NewHandler(store SubscriptionStore) *Handler {
	return &Handler{store: store}
}

// HandleSubscribe — dashboard registers a browser push subscription.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			Auth   string `json:"auth"`
			P256dh string `json:"p256dh"`
		} `json:"keys"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if payload.Endpoint == "" || payload.Keys.Auth == "" || payload.Keys.P256dh == "" {
		http.Error(w, "missing endpoint or keys", http.StatusBadRequest)
		return
	}

	sub := &Subscription{
		Endpoint: payload.Endpoint,
		Auth:     payload.Keys.Auth,
		P256dh:   payload.Keys.P256dh,
	}

	if err := h.store.SaveSubscription(r.Context(), sub); err != nil {
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"subscribed": true, "id": sub.ID})
}
