package handler

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/supportdesk/support-server-go/internal/errors"
)

// WebhookHandler receives identity provider webhooks. Signatures are checked
// by middleware before the request gets here.
type WebhookHandler struct {
	processor WebhookProcessor
}

func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// POST /webhooks/clerk
func (h *WebhookHandler) Clerk(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.BadRequest("Error occurred"))
		return
	}

	if err := h.processor.HandleWebhookEvent(r.Context(), payload); err != nil {
		log.Warn().Err(err).Msg("clerk webhook rejected")
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
