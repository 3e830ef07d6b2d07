package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/diff"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

// CompliancePolicy carries the configurable scoring inputs.
type CompliancePolicy struct {
	Weights    domain.ScoreWeights
	Thresholds domain.ComplianceThresholds
}

var DefaultCompliancePolicy = CompliancePolicy{
	Weights:    domain.DefaultScoreWeights,
	Thresholds: domain.DefaultComplianceThresholds,
}

// ComplianceUseCase derives compliance reports from the snapshot store and audit log.
type ComplianceUseCase struct {
	versionRepo   ports.VersionRepository
	auditRepo     ports.AuditRepository
	workflowRepo  ports.WorkflowRepository
	userDirectory ports.UserDirectory
	metrics       ports.MetricsRecorder
	engine        *diff.Engine
	logger        logger.Logger
	policy        CompliancePolicy
}

func NewComplianceUseCase(
	versionRepo ports.VersionRepository,
	auditRepo ports.AuditRepository,
	workflowRepo ports.WorkflowRepository,
	userDirectory ports.UserDirectory,
	metrics ports.MetricsRecorder,
	engine *diff.Engine,
	log logger.Logger,
	policy CompliancePolicy,
) *ComplianceUseCase {
	if engine == nil {
		engine = diff.NewEngine(nil)
	}
	return &ComplianceUseCase{
		versionRepo:   versionRepo,
		auditRepo:     auditRepo,
		workflowRepo:  workflowRepo,
		userDirectory: userDirectory,
		metrics:       metrics,
		engine:        engine,
		logger:        log,
		policy:        policy,
	}
}

// GenerateComplianceReport summarizes the versions and audit entries of a
// workflow within [start, end]. The report is computed fresh on every call.
func (uc *ComplianceUseCase) GenerateComplianceReport(ctx context.Context, workflowID string, start, end time.Time) (*domain.ComplianceReport, error) {
	began := time.Now()

	period := domain.ReportPeriod{Start: start, End: end}
	if err := period.Validate(); err != nil {
		return nil, err
	}

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

	versions, err := uc.versionRepo.FindInRange(ctx, workflowID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to find versions in range: %w", err)
	}

	entries, err := uc.auditRepo.FindByEntityInRange(ctx, domain.EntityTypeWorkflow, workflowID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to find audit entries in range: %w", err)
	}

	summary := domain.ComplianceSummary{TotalAuditEntries: len(entries)}
	for _, v := range versions {
		summary.Count(v.SnapshotType)
	}

	actors := make(map[string]bool)
	actorIDs := make([]string, 0, len(entries)+len(versions))
	for _, e := range entries {
		if e.UserID == nil {
			continue
		}
		actors[*e.UserID] = true
		actorIDs = append(actorIDs, *e.UserID)
	}
	summary.UniqueUsers = len(actors)
	summary.ComplianceScore = domain.ComplianceScore(summary, uc.policy.Weights)

	for _, v := range versions {
		actorIDs = append(actorIDs, v.CreatedBy)
	}
	users := lookupUsers(ctx, uc.userDirectory, uc.logger, actorIDs)

	reportVersions, err := uc.reportVersions(ctx, workflowID, versions, users)
	if err != nil {
		return nil, err
	}

	trail := make([]domain.ReportAuditEntry, 0, len(entries))
	for _, e := range entries {
		name := domain.SystemActorName
		if e.UserID != nil {
			name = domain.ActorDisplayName(*e.UserID, users)
		}
		trail = append(trail, domain.ReportAuditEntry{
			ID:        e.ID,
			Action:    e.Action,
			UserID:    e.UserID,
			UserName:  name,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			Timestamp: e.Timestamp,
		})
	}

	report := &domain.ComplianceReport{
		WorkflowID:      workflow.ID,
		WorkflowName:    workflow.Name,
		Period:          period,
		Summary:         summary,
		Recommendations: domain.Recommendations(summary, uc.policy.Thresholds),
		Versions:        reportVersions,
		AuditTrail:      trail,
		GeneratedAt:     time.Now().UTC(),
	}

	if uc.metrics != nil {
		uc.metrics.ReportGenerated()
	}
	logger.LogPerformance(ctx, uc.logger, "generate_compliance_report", time.Since(began), map[string]interface{}{
		"workflow_id":      workflowID,
		"versions":         summary.TotalVersions,
		"audit_entries":    summary.TotalAuditEntries,
		"compliance_score": summary.ComplianceScore,
	})

	return report, nil
}

// reportVersions diffs each version against its chronological predecessor.
// versions is ascending; the first one's predecessor may lie before the window.
func (uc *ComplianceUseCase) reportVersions(ctx context.Context, workflowID string, versions []*domain.WorkflowVersion, users map[string]*domain.User) ([]domain.ReportVersion, error) {
	rows := make([]domain.ReportVersion, 0, len(versions))

	for i, v := range versions {
		var previous []byte
		if i > 0 {
			previous = versions[i-1].Data
		} else {
			before, err := uc.versionRepo.FindPredecessor(ctx, workflowID, v.VersionNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to find previous version: %w", err)
			}
			if before != nil {
				previous = before.Data
			}
		}

		result := uc.engine.Compare(v.Data, previous)
		rows = append(rows, domain.ReportVersion{
			ID:            v.ID,
			VersionNumber: v.VersionNumber,
			SnapshotType:  v.SnapshotType,
			CreatedBy:     v.CreatedBy,
			CreatedByName: domain.ActorDisplayName(v.CreatedBy, users),
			CreatedAt:     v.CreatedAt,
			Changes:       result.Changes,
			ChangeSummary: result.Summary,
		})
	}

	return rows, nil
}
