package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/supportdesk/support-server-go/internal/errors"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/service"
)

// PublicHandler serves the embeddable widget. Callers identify themselves
// with a contact session id instead of a token.
type PublicHandler struct {
	sessions      ContactSessions
	conversations PublicConversations
	organizations Organizations
	widget        WidgetSettings
	plugins       Plugins
}

func NewPublicHandler(
	sessions ContactSessions,
	conversations PublicConversations,
	organizations Organizations,
	widget WidgetSettings,
	plugins Plugins,
) *PublicHandler {
	return &PublicHandler{
		sessions:      sessions,
		conversations: conversations,
		organizations: organizations,
		widget:        widget,
		plugins:       plugins,
	}
}

func (h *PublicHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/contact-sessions", h.CreateContactSession)
	r.Post("/contact-sessions/validate", h.ValidateContactSession)

	r.Get("/organizations/{organizationId}/validate", h.ValidateOrganization)
	r.Get("/organizations/{organizationId}/widget-settings", h.GetWidgetSettings)
	r.Get("/organizations/{organizationId}/vapi", h.GetVapiPublicKey)

	r.Post("/conversations", h.StartConversation)
	r.Get("/conversations", h.ListConversations)
	r.Get("/conversations/{id}", h.GetConversation)
	r.Get("/conversations/{id}/messages", h.ListMessages)
	r.Post("/conversations/{id}/messages", h.SendMessage)

	return r
}

type createContactSessionRequest struct {
	Name           string                        `json:"name"`
	Email          string                        `json:"email"`
	OrganizationID string                        `json:"organizationId"`
	Metadata       *model.ContactSessionMetadata `json:"metadata"`
}

type createContactSessionResponse struct {
	ContactSessionID string    `json:"contactSessionId"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// POST /public/contact-sessions
func (h *PublicHandler) CreateContactSession(w http.ResponseWriter, r *http.Request) {
	var req createContactSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.sessions.Create(r.Context(), service.CreateContactSessionParams{
		Name:           req.Name,
		Email:          req.Email,
		OrganizationID: req.OrganizationID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createContactSessionResponse{
		ContactSessionID: session.ID,
		ExpiresAt:        session.ExpiresAt,
	})
}

// POST /public/contact-sessions/validate
func (h *PublicHandler) ValidateContactSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactSessionID string `json:"contactSessionId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.sessions.Validate(r.Context(), req.ContactSessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /public/organizations/{organizationId}/validate
func (h *PublicHandler) ValidateOrganization(w http.ResponseWriter, r *http.Request) {
	result := h.organizations.Validate(r.Context(), chi.URLParam(r, "organizationId"))
	writeJSON(w, http.StatusOK, result)
}

// GET /public/organizations/{organizationId}/widget-settings
func (h *PublicHandler) GetWidgetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.widget.GetByOrganizationID(r.Context(), chi.URLParam(r, "organizationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// GET /public/organizations/{organizationId}/vapi
// Only the public key leaves the server.
func (h *PublicHandler) GetVapiPublicKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.plugins.GetVapiPublicKey(r.Context(), chi.URLParam(r, "organizationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

// POST /public/conversations
func (h *PublicHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactSessionID string `json:"contactSessionId"`
		OrganizationID   string `json:"organizationId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	conv, err := h.conversations.Start(r.Context(), req.ContactSessionID, req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// GET /public/conversations?contactSessionId=
func (h *PublicHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	contactSessionID, ok := requireContactSession(w, r)
	if !ok {
		return
	}
	page := parsePage(r)

	convs, total, err := h.conversations.ListForContact(r.Context(), contactSessionID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(convs, total, page))
}

// GET /public/conversations/{id}?contactSessionId=
func (h *PublicHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	contactSessionID, ok := requireContactSession(w, r)
	if !ok {
		return
	}

	conv, err := h.conversations.GetForContact(r.Context(), contactSessionID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// GET /public/conversations/{id}/messages?contactSessionId=
func (h *PublicHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	contactSessionID, ok := requireContactSession(w, r)
	if !ok {
		return
	}
	page := parsePage(r)

	msgs, total, err := h.conversations.ListMessagesForContact(
		r.Context(), contactSessionID, chi.URLParam(r, "id"), page.Limit, page.Offset,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(msgs, total, page))
}

// POST /public/conversations/{id}/messages
func (h *PublicHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactSessionID string `json:"contactSessionId"`
		Prompt           string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.conversations.AddCustomerMessage(r.Context(), service.SendCustomerMessageParams{
		ContactSessionID: req.ContactSessionID,
		ConversationID:   chi.URLParam(r, "id"),
		Prompt:           req.Prompt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func requireContactSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("contactSessionId")
	if id == "" {
		writeError(w, apperrors.ValidationError("contactSessionId is required"))
		return "", false
	}
	return id, true
}
