package domain

import (
	"encoding/json"
	"time"
)

// ScoreWeights are the per-item contributions to the compliance score.
type ScoreWeights struct {
	AutoBackup   int `yaml:"autoBackup" json:"autoBackup"`
	ManualSave   int `yaml:"manualSave" json:"manualSave"`
	SystemBackup int `yaml:"systemBackup" json:"systemBackup"`
	AuditEntry   int `yaml:"auditEntry" json:"auditEntry"`
}

// DefaultScoreWeights mirrors the weights shipped in config/policy.yaml.
var DefaultScoreWeights = ScoreWeights{AutoBackup: 20, ManualSave: 15, SystemBackup: 10, AuditEntry: 5}

// ComplianceThresholds drive recommendation rules.
type ComplianceThresholds struct {
	MinAutoBackups   int     `yaml:"minAutoBackups" json:"minAutoBackups"`
	MinUniqueUsers   int     `yaml:"minUniqueUsers" json:"minUniqueUsers"`
	MinAuditCoverage float64 `yaml:"minAuditCoverage" json:"minAuditCoverage"`
}

var DefaultComplianceThresholds = ComplianceThresholds{MinAutoBackups: 5, MinUniqueUsers: 2, MinAuditCoverage: 0.8}

const (
	MaxComplianceScore = 100
	MinComplianceScore = 0
)

const (
	RecommendBackupFrequency = "Increase backup frequency: schedule automated backups so every reporting period has recent restore points"
	RecommendReviewProcess   = "Implement a review process: have more than one team member review workflow changes"
	RecommendChangeTracking  = "Improve change tracking: record an audit entry for every workflow change"
)

// ComplianceSummary holds the counters of a report window.
type ComplianceSummary struct {
	TotalVersions     int `json:"totalVersions"`
	AutoBackups       int `json:"autoBackups"`
	ManualSaves       int `json:"manualSaves"`
	SystemBackups     int `json:"systemBackups"`
	Restores          int `json:"restores"`
	Rollbacks         int `json:"rollbacks"`
	TotalAuditEntries int `json:"totalAuditEntries"`
	UniqueUsers       int `json:"uniqueUsers"`
	ComplianceScore   int `json:"complianceScore"`
}

// Count adds one version to the snapshot type buckets.
func (s *ComplianceSummary) Count(snapshotType SnapshotType) {
	s.TotalVersions++
	switch snapshotType {
	case SnapshotAutoBackup:
		s.AutoBackups++
	case SnapshotManualSave:
		s.ManualSaves++
	case SnapshotSystemBackup:
		s.SystemBackups++
	case SnapshotRestore:
		s.Restores++
	case SnapshotRollback:
		s.Rollbacks++
	}
}

// ComplianceScore computes the weighted heuristic clamped to [0, 100].
func ComplianceScore(s ComplianceSummary, w ScoreWeights) int {
	score := s.AutoBackups*w.AutoBackup +
		s.ManualSaves*w.ManualSave +
		s.SystemBackups*w.SystemBackup +
		s.TotalAuditEntries*w.AuditEntry

	if score > MaxComplianceScore {
		return MaxComplianceScore
	}
	if score < MinComplianceScore {
		return MinComplianceScore
	}
	return score
}

// Recommendations applies the threshold rules to a summary.
func Recommendations(s ComplianceSummary, t ComplianceThresholds) []string {
	recommendations := []string{}

	if s.AutoBackups < t.MinAutoBackups {
		recommendations = append(recommendations, RecommendBackupFrequency)
	}
	if s.UniqueUsers < t.MinUniqueUsers {
		recommendations = append(recommendations, RecommendReviewProcess)
	}
	if s.TotalVersions > 0 {
		coverage := float64(s.TotalAuditEntries) / float64(s.TotalVersions)
		if coverage < t.MinAuditCoverage {
			recommendations = append(recommendations, RecommendChangeTracking)
		}
	}

	return recommendations
}

// ReportPeriod is the inclusive window a report covers.
type ReportPeriod struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

func (p ReportPeriod) Validate() error {
	if p.Start.After(p.End) {
		return ErrInvalidDateRange
	}
	return nil
}

// ReportVersion is one version row of a compliance report.
type ReportVersion struct {
	ID            string       `json:"id"`
	VersionNumber int          `json:"versionNumber"`
	SnapshotType  SnapshotType `json:"snapshotType"`
	CreatedBy     string       `json:"createdBy"`
	CreatedByName string       `json:"createdByName"`
	CreatedAt     time.Time    `json:"createdAt"`
	Changes       ChangeSet    `json:"changes"`
	ChangeSummary string       `json:"changeSummary"`
}

// ReportAuditEntry is one audit trail row of a compliance report.
type ReportAuditEntry struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    *string         `json:"userId"`
	UserName  string          `json:"userName"`
	OldValue  json.RawMessage `json:"oldValue,omitempty"`
	NewValue  json.RawMessage `json:"newValue,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ComplianceReport is derived on demand and never persisted.
type ComplianceReport struct {
	WorkflowID      string             `json:"workflowId"`
	WorkflowName    string             `json:"workflowName"`
	Period          ReportPeriod       `json:"period"`
	Summary         ComplianceSummary  `json:"summary"`
	Recommendations []string           `json:"recommendations"`
	Versions        []ReportVersion    `json:"versions"`
	AuditTrail      []ReportAuditEntry `json:"auditTrail"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}
