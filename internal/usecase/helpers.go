package usecase

import (
	"context"
	"fmt"

	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

func writeAudit(ctx context.Context, repo ports.AuditRepository, action, workflowID, userID string, oldValue, newValue interface{}) error {
	if repo == nil {
		return nil
	}
	entry, err := domain.NewWorkflowAuditEntry(action, workflowID, userID, oldValue, newValue)
	if err != nil {
		return fmt.Errorf("failed to build audit entry: %w", err)
	}
	if err := repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// lookupUsers resolves actor ids in one batch. Lookup failures degrade to an
// empty map so callers render "Unknown".
func lookupUsers(ctx context.Context, dir ports.UserDirectory, log logger.Logger, ids []string) map[string]*domain.User {
	users := make(map[string]*domain.User)
	if dir == nil {
		return users
	}

	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == domain.SystemActor || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return users
	}

	found, err := dir.FindByIDs(ctx, unique)
	if err != nil {
		log.Warn(ctx, "Failed to resolve user names", map[string]interface{}{
			"error": err.Error(),
			"users": len(unique),
		})
		return users
	}
	for _, u := range found {
		users[u.ID] = u
	}
	return users
}
