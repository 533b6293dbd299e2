package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nidhogg/dinobot/internal/tutor"
)

type chatRequest struct {
	Message string `json:"message" validate:"required"`
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
}

func (h *Handler) chatFiche(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	answer, err := h.tutor.Ask(r.Context(), tutor.Question{
		Message: req.Message,
		Subject: req.Subject,
		Topic:   req.Topic,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, tutor.ErrUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}
