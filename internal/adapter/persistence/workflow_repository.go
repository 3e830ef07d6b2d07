package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/workflowguard/workflowguard/internal/domain"
)

// PostgresWorkflowRepository reads the workflows table. Writes only happen
// through seeding; the integration layer owns workflows in production.
type PostgresWorkflowRepository struct {
	db *sqlx.DB
}

func NewPostgresWorkflowRepository(db *sqlx.DB) *PostgresWorkflowRepository {
	return &PostgresWorkflowRepository{db: db}
}

func (r *PostgresWorkflowRepository) FindByID(ctx context.Context, id string) (*domain.Workflow, error) {
	if !isUUID(id) {
		return nil, domain.ErrWorkflowNotFound
	}

	var workflow domain.Workflow
	query := `SELECT id, external_id AS "externalid", name, owner_id AS "ownerid" FROM workflows WHERE id = $1`
	if err := r.db.GetContext(ctx, &workflow, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return &workflow, nil
}

func (r *PostgresWorkflowRepository) Create(ctx context.Context, workflow *domain.Workflow) error {
	query := `INSERT INTO workflows (id, external_id, name, owner_id) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, workflow.ID, workflow.ExternalID, workflow.Name, workflow.OwnerID); err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.KindConflict, "workflow_exists", "workflow already exists")
		}
		return fmt.Errorf("failed to insert workflow: %w", err)
	}
	return nil
}
