package ports

import (
	"context"
	"time"

	"github.com/workflowguard/workflowguard/internal/domain"
)

// VersionRepository is the append-only snapshot store.
type VersionRepository interface {
	// Create appends a version. It returns domain.ErrVersionConflict when the
	// version number is not the workflow's current maximum plus one.
	Create(ctx context.Context, version *domain.WorkflowVersion) error

	// FindLatest returns the highest numbered version, or nil when there is none.
	FindLatest(ctx context.Context, workflowID string) (*domain.WorkflowVersion, error)

	// FindAll returns up to limit versions, newest first.
	FindAll(ctx context.Context, workflowID string, limit int) ([]*domain.WorkflowVersion, error)

	// FindByID returns nil when the version does not exist.
	FindByID(ctx context.Context, versionID string) (*domain.WorkflowVersion, error)

	// FindPredecessor returns the highest numbered version strictly below
	// versionNumber, or nil.
	FindPredecessor(ctx context.Context, workflowID string, versionNumber int) (*domain.WorkflowVersion, error)

	// FindInRange returns versions created within [start, end], ascending.
	FindInRange(ctx context.Context, workflowID string, start, end time.Time) ([]*domain.WorkflowVersion, error)

	Count(ctx context.Context, workflowID string) (int, error)

	// Delete is reserved for administrative removal.
	Delete(ctx context.Context, versionID string) error
}

// AuditRepository is the append-only audit log sink.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
	FindByEntityInRange(ctx context.Context, entityType, entityID string, start, end time.Time) ([]*domain.AuditLogEntry, error)
}

// WorkflowRepository reads workflows owned by the integration layer.
type WorkflowRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Workflow, error)
}

// UserDirectory resolves actors for display.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*domain.User, error)
}
