package chat

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/widget/message", h.HandleWidgetMessage)
	r.Post("/operator/message", h.HandleOperatorMessage)
	r.Get("/widget/history", h.HandleHistory)
}
