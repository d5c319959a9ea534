package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/supportdesk/support-server-go/internal/audit"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/httputil"
)

const svixSecretPrefix = "whsec_"

// SvixSignatureMiddleware verifies webhook deliveries signed by Svix, which
// Clerk uses for webhooks. The body is left readable for the next handler.
type SvixSignatureMiddleware struct {
	webhook *svix.Webhook
}

// NewSvixSignatureMiddleware takes the endpoint secret in its whsec_ form.
func NewSvixSignatureMiddleware(secret string) (*SvixSignatureMiddleware, error) {
	if secret == "" || secret == svixSecretPrefix {
		return nil, errors.New("webhook secret is empty")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	return &SvixSignatureMiddleware{webhook: wh}, nil
}

func (m *SvixSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("svix middleware: failed to read body")
			httputil.WriteError(w, apperrors.BadRequest("Error occurred"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		// Verify also enforces the five minute timestamp tolerance
		if err := m.webhook.Verify(body, r.Header); err != nil {
			log.Warn().Err(err).Msg("svix middleware: webhook verification failed")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventWebhookSigFailure,
				Details: map[string]any{"reason": err.Error()},
			})
			httputil.WriteError(w, apperrors.BadRequest("Error occurred"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
