package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/supportdesk/support-server-go/internal/database"
	"github.com/supportdesk/support-server-go/internal/model"
	"github.com/supportdesk/support-server-go/internal/repository"
	"github.com/supportdesk/support-server-go/internal/scheduler"
	"github.com/supportdesk/support-server-go/internal/sse"
)

// In-memory contact session repository
type fakeContactSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ContactSession
	extends  int
}

func newFakeContactSessionRepo() *fakeContactSessionRepo {
	return &fakeContactSessionRepo{sessions: make(map[string]*model.ContactSession)}
}

func (r *fakeContactSessionRepo) put(session *model.ContactSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.ID] = &copied
}

func (r *fakeContactSessionRepo) FindByID(ctx context.Context, id string) (*model.ContactSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (r *fakeContactSessionRepo) Create(ctx context.Context, params model.CreateContactSessionParams) (*model.ContactSession, error) {
	session := &model.ContactSession{
		ID:             uuid.NewString(),
		Name:           params.Name,
		Email:          params.Email,
		OrganizationID: params.OrganizationID,
		ExpiresAt:      params.ExpiresAt,
		Metadata:       params.Metadata,
		CreatedAt:      time.Now(),
	}
	r.put(session)
	return session, nil
}

func (r *fakeContactSessionRepo) ExtendExpiry(ctx context.Context, id string, now, expiresAt time.Time) (*model.ContactSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok || !session.ExpiresAt.After(now) {
		return nil, nil
	}
	r.extends++
	session.ExpiresAt = expiresAt
	copied := *session
	return &copied, nil
}

func (r *fakeContactSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, session := range r.sessions {
		if session.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeContactSessionRepo) WithTx(tx *sqlx.Tx) repository.ContactSessionRepository {
	return r
}

// Mock conversation repository
type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) LockByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) CountByContactSession(ctx context.Context, contactSessionID string) (int, error) {
	args := m.Called(ctx, contactSessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockConversationRepo) FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Create(ctx context.Context, params model.CreateConversationParams) (*model.Conversation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) ListByOrganization(ctx context.Context, params model.ListConversationsParams) ([]model.ConversationWithContact, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ConversationWithContact), args.Error(1)
}

func (m *mockConversationRepo) CountByOrganization(ctx context.Context, organizationID string, status *model.ConversationStatus) (int, error) {
	args := m.Called(ctx, organizationID, status)
	return args.Int(0), args.Error(1)
}

func (m *mockConversationRepo) ListByContactSession(ctx context.Context, contactSessionID string, limit, offset int) ([]model.Conversation, error) {
	args := m.Called(ctx, contactSessionID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) UpdateStatusFrom(ctx context.Context, id string, from []model.ConversationStatus, to model.ConversationStatus) (*model.Conversation, bool, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Conversation), args.Bool(1), args.Error(2)
}

func (m *mockConversationRepo) WithTx(tx *sqlx.Tx) repository.ConversationRepository {
	return m
}

// Mock message repository
type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) ListByThread(ctx context.Context, threadID string, limit, offset int) ([]model.Message, error) {
	args := m.Called(ctx, threadID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) ListRecentByThread(ctx context.Context, threadID string, limit int) ([]model.Message, error) {
	args := m.Called(ctx, threadID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) CountByThread(ctx context.Context, threadID string) (int, error) {
	args := m.Called(ctx, threadID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) WithTx(tx *sqlx.Tx) repository.MessageRepository {
	return m
}

// Mock widget settings repository
type mockWidgetSettingsRepo struct {
	mock.Mock
}

func (m *mockWidgetSettingsRepo) FindByOrganizationID(ctx context.Context, organizationID string) (*model.WidgetSettings, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WidgetSettings), args.Error(1)
}

func (m *mockWidgetSettingsRepo) Upsert(ctx context.Context, params model.UpsertWidgetSettingsParams) (*model.WidgetSettings, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WidgetSettings), args.Error(1)
}

// Mock plugin repository
type mockPluginRepo struct {
	mock.Mock
}

func (m *mockPluginRepo) FindByOrganizationAndService(ctx context.Context, organizationID string, service model.PluginService) (*model.Plugin, error) {
	args := m.Called(ctx, organizationID, service)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plugin), args.Error(1)
}

func (m *mockPluginRepo) Upsert(ctx context.Context, params model.UpsertPluginParams) (*model.Plugin, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plugin), args.Error(1)
}

func (m *mockPluginRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock subscription repository
type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) FindByOrganizationID(ctx context.Context, organizationID string) (*model.Subscription, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) Upsert(ctx context.Context, organizationID string, status model.SubscriptionStatus) (*model.Subscription, error) {
	args := m.Called(ctx, organizationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

// Mock organization directory
type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) OrganizationExists(ctx context.Context, organizationID string) (bool, error) {
	args := m.Called(ctx, organizationID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDirectory) SetMaxAllowedMemberships(ctx context.Context, organizationID string, max int) error {
	args := m.Called(ctx, organizationID, max)
	return args.Error(0)
}

// allowAllLimiter admits everything and records identifiers.
type allowAllLimiter struct {
	mu          sync.Mutex
	identifiers []string
}

func (l *allowAllLimiter) Check(ctx context.Context, identifier string, policy RateLimitPolicy) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.identifiers = append(l.identifiers, policy.Name+":"+identifier)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, organizationID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// inlineScheduler runs tasks synchronously on RunAfter.
type inlineScheduler struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (s *inlineScheduler) RunAfter(delay time.Duration, name string, task scheduler.Task) error {
	err := task(context.Background())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.errs = append(s.errs, err)
	return nil
}

// recordingTx runs fn without a real transaction and counts how each one
// ended. Mocks ignore the tx.
type recordingTx struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (r *recordingTx) WithTx(ctx context.Context, fn database.TxFunc) error {
	err := fn(nil)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.rollbacks++
		return err
	}
	r.commits++
	return nil
}

type staticSubscriptions struct {
	active bool
}

func (s staticSubscriptions) IsActive(ctx context.Context, organizationID string) (bool, error) {
	return s.active, nil
}

type recordingResponder struct {
	mu     sync.Mutex
	called []string
}

func (r *recordingResponder) Reply(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.called = append(r.called, conv.ID)
	return nil
}
