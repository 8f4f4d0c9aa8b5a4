package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type messagePayload struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Whatsapp  string `json:"whatsapp"`
}

// HandleWidgetMessage — inbound visitor message from the embedded widget.
func (h *Handler) HandleWidgetMessage(w http.ResponseWriter, r *http.Request) {
	var payload messagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if payload.Token == "" || payload.Message == "" {
		http.Error(w, "missing token or message", http.StatusBadRequest)
		return
	}

	// First contact from a widget that has no stored session yet.
	if payload.SessionID == "" {
		payload.SessionID = uuid.NewString()
	}

	msg := &Message{
		TenantID:  payload.Token,
		SessionID: payload.SessionID,
		Sender:    SenderVisitor,
		Text:      payload.Message,
		Kind:      Kind(payload.Type),
		Name:      payload.Name,
		Whatsapp:  payload.Whatsapp,
	}

	res, err := h.svc.HandleVisitorMessage(r.Context(), msg)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"session_id":   payload.SessionID,
		"reply":        res.Reply,
		"used_context": res.UsedKnowledge,
		"live":         res.Live,
	})
}

// HandleOperatorMessage — inbound operator message from the dashboard.
func (h *Handler) HandleOperatorMessage(w http.ResponseWriter, r *http.Request) {
	var payload messagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if payload.Token == "" || payload.SessionID == "" || payload.Message == "" {
		http.Error(w, "missing token, session_id, or message", http.StatusBadRequest)
		return
	}

	msg := &Message{
		TenantID:  payload.Token,
		SessionID: payload.SessionID,
		Sender:    SenderOperator,
		Text:      payload.Message,
		Kind:      Kind(payload.Type),
	}

	if err := h.svc.HandleOperatorMessage(r.Context(), msg); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HandleHistory — session timeline for the widget.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	sessionID := r.URL.Query().Get("sessionId")

	if token == "" || sessionID == "" {
		http.Error(w, "missing token or sessionId", http.StatusBadRequest)
		return
	}

	messages, err := h.svc.History(r.Context(), token, sessionID)
	if err != nil {
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	type item struct {
		Text      string    `json:"text"`
		Role      string    `json:"role"`
		Type      string    `json:"type"`
		Timestamp time.Time `json:"timestamp"`
	}

	items := make([]item, 0, len(messages))
	for _, m := range messages {
		items = append(items, item{
			Text:      m.Text,
			Role:      string(m.Sender),
			Type:      string(m.Kind),
			Timestamp: m.CreatedAt,
		})
	}

	writeJSON(w, map[string]any{"items": items})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		http.Error(w, "invalid message", http.StatusBadRequest)
	case errors.Is(err, ErrUnknownTenant):
		http.Error(w, "unknown token", http.StatusNotFound)
	default:
		http.Error(w, "processing error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
