package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

type auditRow struct {
	ID         string    `db:"id"`
	Action     string    `db:"action"`
	EntityType string    `db:"entity_type"`
	EntityID   string    `db:"entity_id"`
	UserID     *string   `db:"user_id"`
	OldValue   []byte    `db:"old_value"`
	NewValue   []byte    `db:"new_value"`
	Timestamp  time.Time `db:"timestamp"`
}

// PostgresAuditRepository implements AuditRepository using PostgreSQL
type PostgresAuditRepository struct {
	db *sqlx.DB
}

func NewPostgresAuditRepository(db *sqlx.DB) ports.AuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	query := `
		INSERT INTO audit_logs (id, action, entity_type, entity_id, user_id, old_value, new_value, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.UserID,
		jsonbParam(entry.OldValue),
		jsonbParam(entry.NewValue),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// FindByEntityInRange returns entries within [start, end], oldest first.
func (r *PostgresAuditRepository) FindByEntityInRange(ctx context.Context, entityType, entityID string, start, end time.Time) ([]*domain.AuditLogEntry, error) {
	query := `
		SELECT id, action, entity_type, entity_id, user_id, old_value, new_value, timestamp
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2 AND timestamp BETWEEN $3 AND $4
		ORDER BY timestamp ASC
	`

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, entityType, entityID, start, end); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	entries := make([]*domain.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.AuditLogEntry{
			ID:         row.ID,
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			UserID:     row.UserID,
			OldValue:   row.OldValue,
			NewValue:   row.NewValue,
			Timestamp:  row.Timestamp.UTC(),
		})
	}
	return entries, nil
}
