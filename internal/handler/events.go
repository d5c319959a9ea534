package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/supportdesk/support-server-go/internal/auth"
	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/sse"
)

// reconnectHint is sent as the stream's retry field, in milliseconds.
const reconnectHint = 3000

// EventsHandler streams an organization's conversation events to operators.
type EventsHandler struct {
	broker    EventSubscriber
	heartbeat time.Duration
}

func NewEventsHandler(broker EventSubscriber) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		heartbeat: sse.HeartbeatInterval,
	}
}

// eventStream writes text/event-stream frames and flushes after each one.
type eventStream struct {
	w       io.Writer
	flusher http.Flusher
}

func (s eventStream) event(event sse.Event) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s eventStream) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// GET /api/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireAuth(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	organizationID := identity.OrganizationID
	client := h.broker.Subscribe(organizationID)
	defer h.broker.Unsubscribe(client)

	logger := log.With().
		Str("organizationId", organizationID).
		Str("subject", identity.Subject()).
		Logger()
	logger.Info().Msg("sse connection established")

	stream := eventStream{w: w, flusher: flusher}
	hello, _ := json.Marshal(map[string]string{"organizationId": organizationID})
	fmt.Fprintf(w, "retry: %d\n", reconnectHint)
	if err := stream.event(sse.Event{Type: "connected", Data: hello}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Info().Msg("sse connection closed by client")
			return
		case <-client.Done:
			logger.Info().Msg("sse connection closed by broker")
			return
		case event := <-client.Events:
			if err := stream.event(event); err != nil {
				logger.Warn().Err(err).Str("event", event.Type).Msg("failed to send event")
				return
			}
		case <-heartbeat.C:
			if err := stream.comment("ping"); err != nil {
				logger.Debug().Msg("heartbeat failed, closing connection")
				return
			}
		}
	}
}
