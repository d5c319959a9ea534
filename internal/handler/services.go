package handler

import (
	"context"
	"encoding/json"

	"github.com/supportdesk/support-server-go/internal/auth"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/service"
	"github.com/supportdesk/support-server-go/internal/sse"
	"github.com/supportdesk/support-server-go/internal/vapi"
)

// The interfaces below are the slices of the service layer each handler
// needs. The *service types satisfy them.

type ContactSessions interface {
	Create(ctx context.Context, params service.CreateContactSessionParams) (*model.ContactSession, error)
	Validate(ctx context.Context, id string) (service.ValidationResult, error)
	GetForConversation(ctx context.Context, authCtx *auth.AuthContext, conversationID string) (*model.ContactSession, error)
}

type PublicConversations interface {
	Start(ctx context.Context, contactSessionID, organizationID string) (*model.Conversation, error)
	GetForContact(ctx context.Context, contactSessionID, conversationID string) (*model.Conversation, error)
	ListForContact(ctx context.Context, contactSessionID string, limit, offset int) ([]model.Conversation, int, error)
	ListMessagesForContact(ctx context.Context, contactSessionID, conversationID string, limit, offset int) ([]model.Message, int, error)
	AddCustomerMessage(ctx context.Context, params service.SendCustomerMessageParams) (*model.Message, error)
}

type OperatorConversations interface {
	List(ctx context.Context, authCtx *auth.AuthContext, params service.ListConversationsParams) ([]model.ConversationWithContact, int, error)
	Get(ctx context.Context, authCtx *auth.AuthContext, id string) (*model.Conversation, error)
	ListMessages(ctx context.Context, authCtx *auth.AuthContext, id string, limit, offset int) ([]model.Message, int, error)
	UpdateStatus(ctx context.Context, authCtx *auth.AuthContext, id string, status model.ConversationStatus) (*model.Conversation, error)
	AddOperatorMessage(ctx context.Context, authCtx *auth.AuthContext, id, prompt string) (*model.Message, error)
}

type Organizations interface {
	Validate(ctx context.Context, organizationID string) service.ValidationResult
}

type WidgetSettings interface {
	Get(ctx context.Context, authCtx *auth.AuthContext) (*model.WidgetSettings, error)
	GetByOrganizationID(ctx context.Context, organizationID string) (*model.WidgetSettings, error)
	Upsert(ctx context.Context, authCtx *auth.AuthContext, params service.UpdateWidgetSettingsParams) (*model.WidgetSettings, error)
}

type Plugins interface {
	Connect(ctx context.Context, authCtx *auth.AuthContext, svc model.PluginService, value json.RawMessage) error
	GetOne(ctx context.Context, authCtx *auth.AuthContext, svc model.PluginService) (*model.Plugin, error)
	Remove(ctx context.Context, authCtx *auth.AuthContext, svc model.PluginService) error
	GetVapiPublicKey(ctx context.Context, organizationID string) (*service.VapiPublicKey, error)
	ListVapiPhoneNumbers(ctx context.Context, authCtx *auth.AuthContext) ([]vapi.PhoneNumber, error)
	ListVapiAssistants(ctx context.Context, authCtx *auth.AuthContext) ([]vapi.Assistant, error)
}

type WebhookProcessor interface {
	HandleWebhookEvent(ctx context.Context, payload []byte) error
}

// EventSubscriber is satisfied by *sse.Broker.
type EventSubscriber interface {
	Subscribe(organizationID string) *sse.Client
	Unsubscribe(client *sse.Client)
}
