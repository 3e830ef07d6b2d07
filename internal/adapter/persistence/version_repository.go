package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

type versionRow struct {
	ID            string    `db:"id"`
	WorkflowID    string    `db:"workflow_id"`
	VersionNumber int       `db:"version_number"`
	SnapshotType  string    `db:"snapshot_type"`
	Data          []byte    `db:"data"`
	CreatedBy     string    `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r versionRow) toDomain() *domain.WorkflowVersion {
	return &domain.WorkflowVersion{
		ID:            r.ID,
		WorkflowID:    r.WorkflowID,
		VersionNumber: r.VersionNumber,
		SnapshotType:  domain.SnapshotType(r.SnapshotType),
		Data:          r.Data,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

const versionColumns = `id, workflow_id, version_number, snapshot_type, data, created_by, created_at`

// PostgresVersionRepository implements VersionRepository using PostgreSQL
type PostgresVersionRepository struct {
	db *sqlx.DB
}

func NewPostgresVersionRepository(db *sqlx.DB) ports.VersionRepository {
	return &PostgresVersionRepository{db: db}
}

// Create inserts the version only if its number is the current maximum plus
// one. The unique constraint on (workflow_id, version_number) catches writers
// that raced past the check.
func (r *PostgresVersionRepository) Create(ctx context.Context, version *domain.WorkflowVersion) error {
	query := `
		INSERT INTO workflow_versions (` + versionColumns + `)
		SELECT $1::uuid, $2::uuid, $3::int, $4, $5::jsonb, $6, $7::timestamptz
		WHERE $3::int = (
			SELECT COALESCE(MAX(version_number), 0) + 1
			FROM workflow_versions
			WHERE workflow_id = $2::uuid
		)
	`

	result, err := r.db.ExecContext(ctx, query,
		version.ID,
		version.WorkflowID,
		version.VersionNumber,
		string(version.SnapshotType),
		string(version.Data),
		version.CreatedBy,
		version.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *PostgresVersionRepository) FindLatest(ctx context.Context, workflowID string) (*domain.WorkflowVersion, error) {
	if !isUUID(workflowID) {
		return nil, nil
	}

	query := `SELECT ` + versionColumns + ` FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY version_number DESC
		LIMIT 1`

	return r.getOne(ctx, query, workflowID)
}

func (r *PostgresVersionRepository) FindAll(ctx context.Context, workflowID string, limit int) ([]*domain.WorkflowVersion, error) {
	if !isUUID(workflowID) {
		return []*domain.WorkflowVersion{}, nil
	}

	query := `SELECT ` + versionColumns + ` FROM workflow_versions
		WHERE workflow_id = $1
		ORDER BY version_number DESC`
	args := []interface{}{workflowID}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	return r.selectMany(ctx, query, args...)
}

func (r *PostgresVersionRepository) FindByID(ctx context.Context, versionID string) (*domain.WorkflowVersion, error) {
	if !isUUID(versionID) {
		return nil, nil
	}

	query := `SELECT ` + versionColumns + ` FROM workflow_versions WHERE id = $1`
	return r.getOne(ctx, query, versionID)
}

func (r *PostgresVersionRepository) FindPredecessor(ctx context.Context, workflowID string, versionNumber int) (*domain.WorkflowVersion, error) {
	if !isUUID(workflowID) {
		return nil, nil
	}

	query := `SELECT ` + versionColumns + ` FROM workflow_versions
		WHERE workflow_id = $1 AND version_number < $2
		ORDER BY version_number DESC
		LIMIT 1`

	return r.getOne(ctx, query, workflowID, versionNumber)
}

func (r *PostgresVersionRepository) FindInRange(ctx context.Context, workflowID string, start, end time.Time) ([]*domain.WorkflowVersion, error) {
	if !isUUID(workflowID) {
		return []*domain.WorkflowVersion{}, nil
	}

	query := `SELECT ` + versionColumns + ` FROM workflow_versions
		WHERE workflow_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY version_number ASC`

	return r.selectMany(ctx, query, workflowID, start, end)
}

func (r *PostgresVersionRepository) Count(ctx context.Context, workflowID string) (int, error) {
	if !isUUID(workflowID) {
		return 0, nil
	}

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM workflow_versions WHERE workflow_id = $1`, workflowID); err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return count, nil
}

func (r *PostgresVersionRepository) Delete(ctx context.Context, versionID string) error {
	if !isUUID(versionID) {
		return domain.ErrVersionNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM workflow_versions WHERE id = $1`, versionID)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrVersionNotFound
	}
	return nil
}

func (r *PostgresVersionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.WorkflowVersion, error) {
	var row versionRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PostgresVersionRepository) selectMany(ctx context.Context, query string, args ...interface{}) ([]*domain.WorkflowVersion, error) {
	var rows []versionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]*domain.WorkflowVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, row.toDomain())
	}
	return versions, nil
}
