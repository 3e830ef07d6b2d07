package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

// Mock implementations
type mockVersionRepository struct {
	mu        sync.Mutex
	versions  map[string]*domain.WorkflowVersion
	createErr error
}

func newMockVersionRepository() *mockVersionRepository {
	return &mockVersionRepository{versions: make(map[string]*domain.WorkflowVersion)}
}

func (m *mockVersionRepository) Create(ctx context.Context, version *domain.WorkflowVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}

	max := 0
	for _, v := range m.versions {
		if v.WorkflowID == version.WorkflowID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	if version.VersionNumber != max+1 {
		return domain.ErrVersionConflict
	}

	stored := *version
	m.versions[version.ID] = &stored
	return nil
}

func (m *mockVersionRepository) sorted(workflowID string) []*domain.WorkflowVersion {
	var out []*domain.WorkflowVersion
	for _, v := range m.versions {
		if v.WorkflowID == workflowID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out
}

func (m *mockVersionRepository) FindLatest(ctx context.Context, workflowID string) (*domain.WorkflowVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sorted(workflowID)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (m *mockVersionRepository) FindAll(ctx context.Context, workflowID string, limit int) ([]*domain.WorkflowVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sorted(workflowID)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockVersionRepository) FindByID(ctx context.Context, versionID string) (*domain.WorkflowVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[versionID], nil
}

func (m *mockVersionRepository) FindPredecessor(ctx context.Context, workflowID string, versionNumber int) (*domain.WorkflowVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.sorted(workflowID) {
		if v.VersionNumber < versionNumber {
			return v, nil
		}
	}
	return nil, nil
}

func (m *mockVersionRepository) FindInRange(ctx context.Context, workflowID string, start, end time.Time) ([]*domain.WorkflowVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.WorkflowVersion
	for _, v := range m.sorted(workflowID) {
		if !v.CreatedAt.Before(start) && !v.CreatedAt.After(end) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (m *mockVersionRepository) Count(ctx context.Context, workflowID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sorted(workflowID)), nil
}

func (m *mockVersionRepository) Delete(ctx context.Context, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.versions[versionID]; !ok {
		return domain.ErrVersionNotFound
	}
	delete(m.versions, versionID)
	return nil
}

// seed stores a version directly, bypassing numbering checks.
func (m *mockVersionRepository) seed(workflowID string, number int, snapshotType domain.SnapshotType, createdBy, data string, createdAt time.Time) *domain.WorkflowVersion {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := domain.NewWorkflowVersion(workflowID, number, snapshotType, createdBy, []byte(data))
	v.CreatedAt = createdAt
	m.versions[v.ID] = v
	return v
}

type mockAuditRepository struct {
	mu        sync.Mutex
	entries   []*domain.AuditLogEntry
	createErr error
}

func newMockAuditRepository() *mockAuditRepository {
	return &mockAuditRepository{}
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) FindByEntityInRange(ctx context.Context, entityType, entityID string, start, end time.Time) ([]*domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.AuditLogEntry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID && !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepository) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type mockWorkflowRepository struct {
	workflows map[string]*domain.Workflow
}

func newMockWorkflowRepository(workflows ...*domain.Workflow) *mockWorkflowRepository {
	m := &mockWorkflowRepository{workflows: make(map[string]*domain.Workflow)}
	for _, w := range workflows {
		m.workflows[w.ID] = w
	}
	return m
}

func (m *mockWorkflowRepository) FindByID(ctx context.Context, id string) (*domain.Workflow, error) {
	if w, ok := m.workflows[id]; ok {
		return w, nil
	}
	return nil, domain.ErrWorkflowNotFound
}

type mockUserDirectory struct {
	users map[string]*domain.User
	err   error
}

func newMockUserDirectory(users ...*domain.User) *mockUserDirectory {
	m := &mockUserDirectory{users: make(map[string]*domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserDirectory) FindByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type mockEventPublisher struct {
	mu     sync.Mutex
	events []ports.Event
	err    error
}

func (m *mockEventPublisher) Publish(ctx context.Context, event ports.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockEventPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type mockMetrics struct {
	mu            sync.Mutex
	created       map[string]int
	rollbacks     map[string]int
	auditFailures map[string]int
	reports       int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		created:       make(map[string]int),
		rollbacks:     make(map[string]int),
		auditFailures: make(map[string]int),
	}
}

func (m *mockMetrics) VersionCreated(snapshotType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[snapshotType]++
}

func (m *mockMetrics) RollbackCompleted(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks[outcome]++
}

func (m *mockMetrics) AuditWriteFailed(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditFailures[action]++
}

func (m *mockMetrics) ReportGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports++
}

var errStorageDown = errors.New("storage unavailable")
