package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions written by the version history subsystem
const (
	AuditVersionCreated         = "version_created"
	AuditInitialProtection      = "initial_protection"
	AuditAutomatedBackupCreated = "automated_backup_created"
	AuditVersionRestored        = "version_restored"
	AuditWorkflowRolledBack     = "workflow_rolled_back"
	AuditVersionRemoved         = "version_removed"
)

// EntityTypeWorkflow is the only entity type this subsystem audits.
const EntityTypeWorkflow = "workflow"

// AuditLogEntry represents an append-only audit trail record
type AuditLogEntry struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	UserID     *string         `json:"userId"`
	OldValue   json.RawMessage `json:"oldValue,omitempty"`
	NewValue   json.RawMessage `json:"newValue,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewWorkflowAuditEntry builds an audit entry for a workflow. A system or empty
// actor is stored without a user id.
func NewWorkflowAuditEntry(action, workflowID, actor string, oldValue, newValue interface{}) (*AuditLogEntry, error) {
	entry := &AuditLogEntry{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: EntityTypeWorkflow,
		EntityID:   workflowID,
		Timestamp:  time.Now().UTC(),
	}

	if actor != "" && actor != SystemActor {
		entry.UserID = &actor
	}

	if oldValue != nil {
		raw, err := json.Marshal(oldValue)
		if err != nil {
			return nil, err
		}
		entry.OldValue = raw
	}
	if newValue != nil {
		raw, err := json.Marshal(newValue)
		if err != nil {
			return nil, err
		}
		entry.NewValue = raw
	}

	return entry, nil
}
