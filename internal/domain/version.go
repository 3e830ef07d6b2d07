package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SnapshotType describes how a version came to exist
type SnapshotType string

const (
	SnapshotInitialProtection SnapshotType = "Initial Protection"
	SnapshotManualSave        SnapshotType = "Manual Save"
	SnapshotAutoBackup        SnapshotType = "Auto Backup"
	SnapshotSystemBackup      SnapshotType = "System Backup"
	SnapshotRestore           SnapshotType = "Restore"
	SnapshotRollback          SnapshotType = "Rollback"
)

var snapshotTypes = map[SnapshotType]struct{}{
	SnapshotInitialProtection: {},
	SnapshotManualSave:        {},
	SnapshotAutoBackup:        {},
	SnapshotSystemBackup:      {},
	SnapshotRestore:           {},
	SnapshotRollback:          {},
}

func (t SnapshotType) IsValid() bool {
	_, ok := snapshotTypes[t]
	return ok
}

// SystemActor is the createdBy value used for scheduler and maintenance writes.
const SystemActor = "system"

// WorkflowVersion is an immutable snapshot of a workflow definition.
type WorkflowVersion struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflowId"`
	VersionNumber int             `json:"versionNumber"`
	SnapshotType  SnapshotType    `json:"snapshotType"`
	Data          json.RawMessage `json:"data"`
	CreatedBy     string          `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewWorkflowVersion creates a version record ready to be appended.
// The payload is copied so later mutation of the caller's slice cannot leak in.
func NewWorkflowVersion(workflowID string, versionNumber int, snapshotType SnapshotType, createdBy string, data json.RawMessage) *WorkflowVersion {
	payload := make(json.RawMessage, len(data))
	copy(payload, data)

	return &WorkflowVersion{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		VersionNumber: versionNumber,
		SnapshotType:  snapshotType,
		Data:          payload,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
	}
}

// NextVersionNumber returns the number the next version of a workflow must carry.
func NextVersionNumber(latest *WorkflowVersion) int {
	if latest == nil {
		return 1
	}
	return latest.VersionNumber + 1
}

// ChangeSet counts step-level differences between two versions.
type ChangeSet struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
}

func (c ChangeSet) IsEmpty() bool {
	return c.Added == 0 && c.Modified == 0 && c.Removed == 0
}
