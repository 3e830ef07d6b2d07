package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/workflowguard/workflowguard/internal/domain"
)

// PostgresUserRepository resolves actor ids to users
type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, name, email, role, plan`

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if !isUUID(id) {
		return nil, domain.ErrUserNotFound
	}

	var user domain.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// FindByIDs returns the users that exist among ids. Non-UUID ids such as the
// system actor are skipped.
func (r *PostgresUserRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []*domain.User{}, nil
	}

	var users []*domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(valid)); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.Role, user.Plan); err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.KindConflict, "user_exists", "user already exists")
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}
