package usecase

import (
	"context"
	"sync"

	"crm-sync-service/internal/core/domain"

	"github.com/google/uuid"
)

// Ручные моки портов для тестов use case'ов.

type mockCrmClient struct {
	mu sync.Mutex

	connectionOK bool
	properties   []domain.UpstreamProperty
	total        int
	fetchErr     error

	propertyByID map[int64]*domain.UpstreamProperty
	fetchByIDErr error

	lookups map[string][]domain.LookupEntry

	// fetchStarted/fetchRelease позволяют подвесить FetchProperties,
	// чтобы проверить защиту от параллельных запусков
	fetchStarted chan struct{}
	fetchRelease chan struct{}

	fetchCalls []domain.PropertyFilter
}

func (m *mockCrmClient) TestConnection(ctx context.Context) bool {
	return m.connectionOK
}

func (m *mockCrmClient) FetchProperties(ctx context.Context, filter domain.PropertyFilter) ([]domain.UpstreamProperty, int, error) {
	m.mu.Lock()
	m.fetchCalls = append(m.fetchCalls, filter)
	m.mu.Unlock()

	if m.fetchStarted != nil {
		m.fetchStarted <- struct{}{}
		<-m.fetchRelease
	}
	if m.fetchErr != nil {
		return nil, 0, m.fetchErr
	}
	return m.properties, m.total, nil
}

func (m *mockCrmClient) FetchPropertyByID(ctx context.Context, id int64) (*domain.UpstreamProperty, error) {
	if m.fetchByIDErr != nil {
		return nil, m.fetchByIDErr
	}
	return m.propertyByID[id], nil
}

func (m *mockCrmClient) FetchLookup(ctx context.Context, lookupType string, languageID int) ([]domain.LookupEntry, error) {
	return m.lookups[lookupType], nil
}

func (m *mockCrmClient) FetchAllLookups(ctx context.Context, languageID int) (map[string][]domain.LookupEntry, error) {
	return m.lookups, nil
}

type upsertCall struct {
	Prop domain.UpstreamProperty
}

type mockPropertyStorage struct {
	mu sync.Mutex

	syncInfo   map[int64]*domain.PropertySyncInfo
	getInfoErr error

	upsertErrFor map[int64]error
	upsertCalls  []upsertCall
}

func newMockPropertyStorage() *mockPropertyStorage {
	return &mockPropertyStorage{
		syncInfo:     make(map[int64]*domain.PropertySyncInfo),
		upsertErrFor: make(map[int64]error),
	}
}

func (m *mockPropertyStorage) GetSyncInfo(ctx context.Context, crmID int64) (*domain.PropertySyncInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getInfoErr != nil {
		return nil, m.getInfoErr
	}
	return m.syncInfo[crmID], nil
}

func (m *mockPropertyStorage) UpsertFromUpstream(ctx context.Context, prop *domain.UpstreamProperty) (*domain.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.upsertErrFor[prop.PropertyID]; err != nil {
		return nil, err
	}

	m.upsertCalls = append(m.upsertCalls, upsertCall{Prop: *prop})

	existing, ok := m.syncInfo[prop.PropertyID]
	result := &domain.UpsertResult{Created: !ok}
	if ok {
		result.LocalID = existing.LocalID
	} else {
		result.LocalID = uuid.New()
	}

	m.syncInfo[prop.PropertyID] = &domain.PropertySyncInfo{
		LocalID:    result.LocalID,
		CrmID:      prop.PropertyID,
		StatusID:   prop.StatusID,
		UpdateDate: prop.UpdateDate,
		RawPayload: prop.Raw,
	}
	return result, nil
}

func (m *mockPropertyStorage) upserted() []upsertCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]upsertCall(nil), m.upsertCalls...)
}

type mockSessionStorage struct {
	mu sync.Mutex

	createErr   error
	markErr     error
	finalizeErr error

	created   []*domain.SyncSession
	finalized []*domain.SyncSession
	latest    *domain.SyncSession
}

func (m *mockSessionStorage) Create(ctx context.Context, session *domain.SyncSession) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return uuid.Nil, m.createErr
	}
	id := uuid.New()
	copied := *session
	copied.ID = id
	m.created = append(m.created, &copied)
	return id, nil
}

func (m *mockSessionStorage) MarkSyncing(ctx context.Context, id uuid.UUID) error {
	return m.markErr
}

func (m *mockSessionStorage) Finalize(ctx context.Context, session *domain.SyncSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	copied := *session
	m.finalized = append(m.finalized, &copied)
	return nil
}

func (m *mockSessionStorage) GetLatest(ctx context.Context) (*domain.SyncSession, error) {
	return m.latest, nil
}

func (m *mockSessionStorage) lastFinalized() *domain.SyncSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.finalized) == 0 {
		return nil
	}
	return m.finalized[len(m.finalized)-1]
}

type mockSettings struct {
	mu       sync.Mutex
	settings *domain.SyncSettings
	getErr   error
	saved    []*domain.SyncSettings
}

func (m *mockSettings) GetSettings(ctx context.Context) (*domain.SyncSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.getErr
}

func (m *mockSettings) SaveSettings(ctx context.Context, settings *domain.SyncSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, settings)
	if m.settings == nil {
		m.settings = &domain.SyncSettings{}
	}
	if settings.AuthToken != "" {
		m.settings.AuthToken = settings.AuthToken
	}
	if settings.BaseURL != "" {
		m.settings.BaseURL = settings.BaseURL
	}
	return nil
}

type mockIndexRefresher struct {
	mu        sync.Mutex
	published []uuid.UUID
	err       error
}

func (m *mockIndexRefresher) PublishRefresh(ctx context.Context, sessionID uuid.UUID, stats domain.SyncStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, sessionID)
	return nil
}

func (m *mockIndexRefresher) publishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}
