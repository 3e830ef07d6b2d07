package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/diff"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

// HistoryLimits bounds the history window returned to callers.
type HistoryLimits struct {
	Default int
	Max     int
}

var DefaultHistoryLimits = HistoryLimits{Default: 50, Max: 50}

// VersionSummary is a presentation-ready history row.
type VersionSummary struct {
	ID            string              `json:"id"`
	WorkflowID    string              `json:"workflowId"`
	VersionNumber int                 `json:"versionNumber"`
	SnapshotType  domain.SnapshotType `json:"snapshotType"`
	CreatedBy     string              `json:"createdBy"`
	CreatedByName string              `json:"createdByName"`
	CreatedAt     time.Time           `json:"createdAt"`
	Data          json.RawMessage     `json:"data"`
	Changes       domain.ChangeSet    `json:"changes"`
	ChangeSummary string              `json:"changeSummary"`
	Status        string              `json:"status"`
}

const (
	VersionStatusActive   = "active"
	VersionStatusInactive = "inactive"
)

// RestoreResult is returned by RestoreVersion
type RestoreResult struct {
	Message         string                  `json:"message"`
	RestoredVersion *domain.WorkflowVersion `json:"restoredVersion"`
}

// RollbackResult is returned by RollbackWorkflow. RollbackVersion is nil when
// the workflow has a single version.
type RollbackResult struct {
	Message         string                  `json:"message"`
	RollbackVersion *domain.WorkflowVersion `json:"rollbackVersion"`
}

// VersionComparison is returned by CompareVersions
type VersionComparison struct {
	From          *domain.WorkflowVersion `json:"from"`
	To            *domain.WorkflowVersion `json:"to"`
	Changes       domain.ChangeSet        `json:"changes"`
	ChangeSummary string                  `json:"changeSummary"`
}

// Rollback outcomes reported to metrics
const (
	RollbackOutcomeCreated = "created"
	RollbackOutcomeNoop    = "noop"
	RollbackOutcomeFailed  = "failed"
)

// VersionUseCase orchestrates every version creation pathway and the history reads.
//
// Only the version write is durable-critical. Audit entries and events are
// written after it; their failures are logged and counted, never returned.
type VersionUseCase struct {
	versionRepo    ports.VersionRepository
	auditRepo      ports.AuditRepository
	workflowRepo   ports.WorkflowRepository
	userDirectory  ports.UserDirectory
	eventPublisher ports.EventPublisher
	validator      ports.PayloadValidator
	metrics        ports.MetricsRecorder
	engine         *diff.Engine
	logger         logger.Logger
	limits         HistoryLimits
}

// NewVersionUseCase creates a new version use case. eventPublisher, validator
// and metrics may be nil.
func NewVersionUseCase(
	versionRepo ports.VersionRepository,
	auditRepo ports.AuditRepository,
	workflowRepo ports.WorkflowRepository,
	userDirectory ports.UserDirectory,
	eventPublisher ports.EventPublisher,
	validator ports.PayloadValidator,
	metrics ports.MetricsRecorder,
	engine *diff.Engine,
	log logger.Logger,
	limits HistoryLimits,
) *VersionUseCase {
	if engine == nil {
		engine = diff.NewEngine(nil)
	}
	if limits.Max <= 0 {
		limits = DefaultHistoryLimits
	}
	if limits.Default <= 0 || limits.Default > limits.Max {
		limits.Default = limits.Max
	}
	return &VersionUseCase{
		versionRepo:    versionRepo,
		auditRepo:      auditRepo,
		workflowRepo:   workflowRepo,
		userDirectory:  userDirectory,
		eventPublisher: eventPublisher,
		validator:      validator,
		metrics:        metrics,
		engine:         engine,
		logger:         log,
		limits:         limits,
	}
}

// CreateVersion appends a snapshot of data to the workflow's history.
func (uc *VersionUseCase) CreateVersion(ctx context.Context, workflowID, userID string, data json.RawMessage, snapshotType domain.SnapshotType) (*domain.WorkflowVersion, error) {
	if !snapshotType.IsValid() {
		return nil, domain.ErrInvalidSnapshotType
	}
	if err := uc.validate(data); err != nil {
		return nil, err
	}
	if _, err := uc.findWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	version, err := uc.appendVersion(ctx, workflowID, userID, data, snapshotType)
	if err != nil {
		return nil, err
	}

	uc.audit(ctx, domain.AuditVersionCreated, workflowID, userID, nil, versionAuditValue(version))
	return version, nil
}

// ProtectWorkflow loads the workflow and starts its history.
func (uc *VersionUseCase) ProtectWorkflow(ctx context.Context, workflowID, userID string, initialData json.RawMessage) (*domain.WorkflowVersion, error) {
	workflow, err := uc.findWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return uc.CreateInitialVersion(ctx, workflow, userID, initialData)
}

// CreateInitialVersion records the first version of a newly protected
// workflow. Without initialData a minimal descriptor is stored.
func (uc *VersionUseCase) CreateInitialVersion(ctx context.Context, workflow *domain.Workflow, userID string, initialData json.RawMessage) (*domain.WorkflowVersion, error) {
	if workflow == nil || workflow.ID == "" {
		return nil, domain.ErrInvalidWorkflow
	}

	data := initialData
	if len(data) == 0 {
		var err error
		data, err = json.Marshal(map[string]interface{}{
			"externalId":  workflow.ExternalID,
			"name":        workflow.Name,
			"status":      "active",
			"protectedAt": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build initial snapshot: %w", err)
		}
	}
	if err := uc.validate(data); err != nil {
		return nil, err
	}

	latest, err := uc.versionRepo.FindLatest(ctx, workflow.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest version: %w", err)
	}
	if latest != nil {
		return nil, domain.ErrAlreadyProtected
	}

	version, err := uc.appendAfter(ctx, nil, workflow.ID, userID, data, domain.SnapshotInitialProtection)
	if err != nil {
		return nil, err
	}

	uc.audit(ctx, domain.AuditVersionCreated, workflow.ID, userID, nil, versionAuditValue(version))
	uc.audit(ctx, domain.AuditInitialProtection, workflow.ID, userID, nil, map[string]interface{}{
		"workflowName": workflow.Name,
		"externalId":   workflow.ExternalID,
		"versionId":    version.ID,
	})
	return version, nil
}

// CreateAutomatedBackup re-persists the latest snapshot tagged as an Auto Backup.
func (uc *VersionUseCase) CreateAutomatedBackup(ctx context.Context, workflowID, userID string) (*domain.WorkflowVersion, error) {
	if userID == "" {
		userID = domain.SystemActor
	}

	if _, err := uc.findWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	latest, err := uc.versionRepo.FindLatest(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest version: %w", err)
	}
	if latest == nil {
		return nil, domain.ErrNoVersionToBackup
	}

	version, err := uc.appendAfter(ctx, latest, workflowID, userID, latest.Data, domain.SnapshotAutoBackup)
	if err != nil {
		return nil, err
	}

	uc.audit(ctx, domain.AuditAutomatedBackupCreated, workflowID, userID, nil, map[string]interface{}{
		"versionId":     version.ID,
		"versionNumber": version.VersionNumber,
		"sourceVersion": latest.VersionNumber,
	})
	return version, nil
}

// FindHistory returns up to limit versions, newest first, each diffed against
// its chronological predecessor. Only the newest is marked active.
func (uc *VersionUseCase) FindHistory(ctx context.Context, workflowID string, limit int) ([]*VersionSummary, error) {
	start := time.Now()

	if limit <= 0 {
		limit = uc.limits.Default
	}
	if limit > uc.limits.Max {
		limit = uc.limits.Max
	}

	if _, err := uc.findWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	// one extra row so the oldest entry in the window still gets its real predecessor
	versions, err := uc.versionRepo.FindAll(ctx, workflowID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to find versions: %w", err)
	}

	window := versions
	if len(window) > limit {
		window = window[:limit]
	}

	names := uc.actorNames(ctx, createdByIDs(window))

	summaries := make([]*VersionSummary, 0, len(window))
	for i, v := range window {
		var previous []byte
		if i+1 < len(versions) {
			previous = versions[i+1].Data
		}
		result := uc.engine.Compare(v.Data, previous)

		status := VersionStatusInactive
		if i == 0 {
			status = VersionStatusActive
		}

		summaries = append(summaries, &VersionSummary{
			ID:            v.ID,
			WorkflowID:    v.WorkflowID,
			VersionNumber: v.VersionNumber,
			SnapshotType:  v.SnapshotType,
			CreatedBy:     v.CreatedBy,
			CreatedByName: domain.ActorDisplayName(v.CreatedBy, names),
			CreatedAt:     v.CreatedAt,
			Data:          v.Data,
			Changes:       result.Changes,
			ChangeSummary: result.Summary,
			Status:        status,
		})
	}

	logger.LogPerformance(ctx, uc.logger, "find_history", time.Since(start), map[string]interface{}{
		"workflow_id": workflowID,
		"versions":    len(summaries),
	})

	return summaries, nil
}

// GetVersion returns a version that belongs to workflowID.
func (uc *VersionUseCase) GetVersion(ctx context.Context, workflowID, versionID string) (*domain.WorkflowVersion, error) {
	version, err := uc.versionRepo.FindByID(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find version: %w", err)
	}
	if version == nil || version.WorkflowID != workflowID {
		return nil, domain.ErrVersionNotFound
	}
	return version, nil
}

// RestoreVersion appends a copy of the target version's data tagged Restore.
func (uc *VersionUseCase) RestoreVersion(ctx context.Context, workflowID, versionID, userID string) (*RestoreResult, error) {
	target, err := uc.GetVersion(ctx, workflowID, versionID)
	if err != nil {
		return nil, err
	}

	latest, err := uc.versionRepo.FindLatest(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest version: %w", err)
	}

	restored, err := uc.appendAfter(ctx, latest, workflowID, userID, target.Data, domain.SnapshotRestore)
	if err != nil {
		return nil, err
	}

	uc.audit(ctx, domain.AuditVersionRestored, workflowID, userID,
		versionAuditRef(latest),
		map[string]interface{}{
			"restoredFromId":      target.ID,
			"restoredFromVersion": target.VersionNumber,
			"versionId":           restored.ID,
			"versionNumber":       restored.VersionNumber,
		})
	uc.publish(ctx, ports.EventTypeVersionRestored, restored)

	return &RestoreResult{
		Message:         fmt.Sprintf("Workflow restored to version %d as version %d", target.VersionNumber, restored.VersionNumber),
		RestoredVersion: restored,
	}, nil
}

// RollbackWorkflow appends a copy of the version preceding the latest one.
//
//	no versions   -> ErrRollbackNotPossible
//	one version   -> no-op, RollbackVersion is nil
//	two or more   -> new Rollback version copying the predecessor's data
func (uc *VersionUseCase) RollbackWorkflow(ctx context.Context, workflowID, userID string) (*RollbackResult, error) {
	if _, err := uc.findWorkflow(ctx, workflowID); err != nil {
		uc.recordRollback(RollbackOutcomeFailed)
		return nil, err
	}

	latest, err := uc.versionRepo.FindLatest(ctx, workflowID)
	if err != nil {
		uc.recordRollback(RollbackOutcomeFailed)
		return nil, fmt.Errorf("failed to find latest version: %w", err)
	}
	if latest == nil {
		uc.recordRollback(RollbackOutcomeFailed)
		return nil, domain.ErrRollbackNotPossible
	}

	// by ordering, not latest-1: admin removal can leave gaps
	target, err := uc.versionRepo.FindPredecessor(ctx, workflowID, latest.VersionNumber)
	if err != nil {
		uc.recordRollback(RollbackOutcomeFailed)
		return nil, fmt.Errorf("failed to find previous version: %w", err)
	}
	if target == nil {
		uc.recordRollback(RollbackOutcomeNoop)
		return &RollbackResult{
			Message: "Workflow has only one version; there is no earlier version to roll back to",
		}, nil
	}

	rollback, err := uc.appendAfter(ctx, latest, workflowID, userID, target.Data, domain.SnapshotRollback)
	if err != nil {
		uc.recordRollback(RollbackOutcomeFailed)
		return nil, err
	}
	uc.recordRollback(RollbackOutcomeCreated)

	uc.audit(ctx, domain.AuditWorkflowRolledBack, workflowID, userID,
		versionAuditRef(latest),
		map[string]interface{}{
			"rolledBackToId":      target.ID,
			"rolledBackToVersion": target.VersionNumber,
			"versionId":           rollback.ID,
			"versionNumber":       rollback.VersionNumber,
		})
	uc.publish(ctx, ports.EventTypeWorkflowRolledBack, rollback)

	return &RollbackResult{
		Message:         fmt.Sprintf("Workflow rolled back to version %d as version %d", target.VersionNumber, rollback.VersionNumber),
		RollbackVersion: rollback,
	}, nil
}

// CompareVersions diffs two versions of the same workflow, treating from as the older side.
func (uc *VersionUseCase) CompareVersions(ctx context.Context, workflowID, fromID, toID string) (*VersionComparison, error) {
	from, err := uc.GetVersion(ctx, workflowID, fromID)
	if err != nil {
		return nil, err
	}
	to, err := uc.GetVersion(ctx, workflowID, toID)
	if err != nil {
		return nil, err
	}

	result := uc.engine.Compare(to.Data, from.Data)
	return &VersionComparison{From: from, To: to, Changes: result.Changes, ChangeSummary: result.Summary}, nil
}

// RemoveVersion deletes a non-latest version. Keeping the latest means the
// next version number is never reused.
func (uc *VersionUseCase) RemoveVersion(ctx context.Context, workflowID, versionID, userID string) error {
	version, err := uc.GetVersion(ctx, workflowID, versionID)
	if err != nil {
		return err
	}

	latest, err := uc.versionRepo.FindLatest(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to find latest version: %w", err)
	}
	if latest != nil && latest.ID == version.ID {
		return domain.ErrLatestVersionRemove
	}

	if err := uc.versionRepo.Delete(ctx, versionID); err != nil {
		return fmt.Errorf("failed to remove version: %w", err)
	}

	uc.audit(ctx, domain.AuditVersionRemoved, workflowID, userID, versionAuditValue(version), nil)
	uc.publish(ctx, ports.EventTypeVersionRemoved, version)
	return nil
}

// appendVersion looks up the latest version and appends after it.
func (uc *VersionUseCase) appendVersion(ctx context.Context, workflowID, userID string, data json.RawMessage, snapshotType domain.SnapshotType) (*domain.WorkflowVersion, error) {
	latest, err := uc.versionRepo.FindLatest(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest version: %w", err)
	}
	return uc.appendAfter(ctx, latest, workflowID, userID, data, snapshotType)
}

// appendAfter writes the version numbered one past latest. A concurrent writer
// surfaces as domain.ErrVersionConflict; retrying is left to the caller.
func (uc *VersionUseCase) appendAfter(ctx context.Context, latest *domain.WorkflowVersion, workflowID, userID string, data json.RawMessage, snapshotType domain.SnapshotType) (*domain.WorkflowVersion, error) {
	if userID == "" {
		userID = domain.SystemActor
	}

	version := domain.NewWorkflowVersion(workflowID, domain.NextVersionNumber(latest), snapshotType, userID, data)
	if err := uc.versionRepo.Create(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.VersionCreated(string(snapshotType))
	}
	uc.logger.Info(ctx, "Workflow version created", map[string]interface{}{
		"workflow_id":    workflowID,
		"version_id":     version.ID,
		"version_number": version.VersionNumber,
		"snapshot_type":  snapshotType,
	})
	uc.publish(ctx, ports.EventTypeVersionCreated, version)

	return version, nil
}

func (uc *VersionUseCase) validate(data json.RawMessage) error {
	if len(data) == 0 {
		return domain.ErrEmptySnapshotData
	}
	if uc.validator != nil {
		return uc.validator.Validate(data)
	}
	if !json.Valid(data) {
		return domain.NewValidationError("snapshot data must be valid JSON")
	}
	return nil
}

func (uc *VersionUseCase) findWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	workflow, err := uc.workflowRepo.FindByID(ctx, workflowID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find workflow: %w", err)
	}
	if workflow == nil {
		return nil, domain.ErrWorkflowNotFound
	}
	return workflow, nil
}

// audit writes an audit entry on a best-effort basis.
func (uc *VersionUseCase) audit(ctx context.Context, action, workflowID, userID string, oldValue, newValue interface{}) {
	if err := writeAudit(ctx, uc.auditRepo, action, workflowID, userID, oldValue, newValue); err != nil {
		if uc.metrics != nil {
			uc.metrics.AuditWriteFailed(action)
		}
		uc.logger.Error(ctx, "Failed to write audit log entry", err, map[string]interface{}{
			"action":      action,
			"workflow_id": workflowID,
		})
	}
}

func (uc *VersionUseCase) publish(ctx context.Context, eventType string, version *domain.WorkflowVersion) {
	if uc.eventPublisher == nil {
		return
	}
	event := ports.NewEvent(eventType, domain.EntityTypeWorkflow, version.WorkflowID, map[string]interface{}{
		"version_id":     version.ID,
		"version_number": version.VersionNumber,
		"snapshot_type":  version.SnapshotType,
		"created_by":     version.CreatedBy,
	}, 1)
	if err := uc.eventPublisher.Publish(ctx, *event); err != nil {
		uc.logger.Warn(ctx, "Failed to publish event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}

func (uc *VersionUseCase) recordRollback(outcome string) {
	if uc.metrics != nil {
		uc.metrics.RollbackCompleted(outcome)
	}
}

func (uc *VersionUseCase) actorNames(ctx context.Context, ids []string) map[string]*domain.User {
	return lookupUsers(ctx, uc.userDirectory, uc.logger, ids)
}

func versionAuditValue(v *domain.WorkflowVersion) map[string]interface{} {
	return map[string]interface{}{
		"versionId":     v.ID,
		"versionNumber": v.VersionNumber,
		"snapshotType":  v.SnapshotType,
	}
}

// versionAuditRef identifies the version that was latest before a write.
func versionAuditRef(v *domain.WorkflowVersion) interface{} {
	if v == nil {
		return nil
	}
	return map[string]interface{}{
		"versionId":     v.ID,
		"versionNumber": v.VersionNumber,
	}
}

func createdByIDs(versions []*domain.WorkflowVersion) []string {
	ids := make([]string, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.CreatedBy)
	}
	return ids
}
