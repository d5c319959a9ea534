package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supportdesk/support-server-go/internal/auth"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/service"
)

// PrivateHandler serves the operator dashboard. Every route runs behind the
// auth middleware and acts within the caller's organization.
type PrivateHandler struct {
	sessions      ContactSessions
	conversations OperatorConversations
	widget        WidgetSettings
	plugins       Plugins
}

func NewPrivateHandler(
	sessions ContactSessions,
	conversations OperatorConversations,
	widget WidgetSettings,
	plugins Plugins,
) *PrivateHandler {
	return &PrivateHandler{
		sessions:      sessions,
		conversations: conversations,
		widget:        widget,
		plugins:       plugins,
	}
}

func (h *PrivateHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", h.ListConversations)
		r.Get("/{id}", h.GetConversation)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Get("/{id}/messages", h.ListMessages)
		r.Post("/{id}/messages", h.SendMessage)
		r.Get("/{id}/contact-session", h.GetContactSession)
	})

	r.Get("/plugins/{service}", h.GetPlugin)
	r.Delete("/plugins/{service}", h.RemovePlugin)
	r.Post("/secrets", h.UpsertSecret)

	r.Get("/vapi/phone-numbers", h.ListVapiPhoneNumbers)
	r.Get("/vapi/assistants", h.ListVapiAssistants)

	r.Get("/widget-settings", h.GetWidgetSettings)
	r.Put("/widget-settings", h.UpsertWidgetSettings)

	return r
}

// requireAuth writes the error response itself when the caller is not
// signed in to an organization.
func requireAuth(w http.ResponseWriter, r *http.Request) (*auth.AuthContext, bool) {
	authCtx, err := auth.RequireAuth(r.Context())
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return authCtx, true
}

// GET /api/conversations?status=&limit=&offset=
func (h *PrivateHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	page := parsePage(r)

	params := service.ListConversationsParams{Limit: page.Limit, Offset: page.Offset}
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.ConversationStatus(s)
		params.Status = &status
	}

	convs, total, err := h.conversations.List(r.Context(), authCtx, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(convs, total, page))
}

// GET /api/conversations/{id}
func (h *PrivateHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	conv, err := h.conversations.Get(r.Context(), authCtx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// PATCH /api/conversations/{id}/status
func (h *PrivateHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Status model.ConversationStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	conv, err := h.conversations.UpdateStatus(r.Context(), authCtx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// GET /api/conversations/{id}/messages
func (h *PrivateHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	page := parsePage(r)

	msgs, total, err := h.conversations.ListMessages(r.Context(), authCtx, chi.URLParam(r, "id"), page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(msgs, total, page))
}

// POST /api/conversations/{id}/messages
func (h *PrivateHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.conversations.AddOperatorMessage(r.Context(), authCtx, chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// GET /api/conversations/{id}/contact-session
func (h *PrivateHandler) GetContactSession(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.GetForConversation(r.Context(), authCtx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GET /api/plugins/{service}
// Responds with null when the plugin is not connected.
func (h *PrivateHandler) GetPlugin(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	plugin, err := h.plugins.GetOne(r.Context(), authCtx, model.PluginService(chi.URLParam(r, "service")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plugin)
}

// DELETE /api/plugins/{service}
func (h *PrivateHandler) RemovePlugin(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.plugins.Remove(r.Context(), authCtx, model.PluginService(chi.URLParam(r, "service"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/secrets
// The credential is stored in the background.
func (h *PrivateHandler) UpsertSecret(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req struct {
		Service model.PluginService `json:"service"`
		Value   json.RawMessage     `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.plugins.Connect(r.Context(), authCtx, req.Service, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"scheduled": true})
}

// GET /api/vapi/phone-numbers
func (h *PrivateHandler) ListVapiPhoneNumbers(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	numbers, err := h.plugins.ListVapiPhoneNumbers(r.Context(), authCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, numbers)
}

// GET /api/vapi/assistants
func (h *PrivateHandler) ListVapiAssistants(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	assistants, err := h.plugins.ListVapiAssistants(r.Context(), authCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assistants)
}

// GET /api/widget-settings
func (h *PrivateHandler) GetWidgetSettings(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	settings, err := h.widget.Get(r.Context(), authCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PUT /api/widget-settings
func (h *PrivateHandler) UpsertWidgetSettings(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req service.UpdateWidgetSettingsParams
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	settings, err := h.widget.Upsert(r.Context(), authCtx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
