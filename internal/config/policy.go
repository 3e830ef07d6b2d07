package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/workflowguard/workflowguard/internal/domain"
)

// Policy is the read-only business configuration loaded from config/policy.yaml.
type Policy struct {
	History    HistoryPolicy         `yaml:"history"`
	Diff       DiffPolicy            `yaml:"diff"`
	Compliance CompliancePolicy      `yaml:"compliance"`
	Plans      map[string]PlanPolicy `yaml:"plans"`
	// DefaultPlan applies to callers whose token carries no plan.
	DefaultPlan string `yaml:"defaultPlan"`
}

type HistoryPolicy struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

type DiffPolicy struct {
	StepKeys []string `yaml:"stepKeys"`
}

type CompliancePolicy struct {
	Weights    domain.ScoreWeights         `yaml:"weights"`
	Thresholds domain.ComplianceThresholds `yaml:"thresholds"`
}

type PlanPolicy struct {
	Features []string `yaml:"features"`
}

// Plan features gated at the HTTP layer
const (
	FeatureVersionHistory   = "version_history"
	FeatureRollback         = "rollback"
	FeatureAutomatedBackup  = "automated_backup"
	FeatureComplianceReport = "compliance_report"
)

// step keys are used verbatim as gjson paths
var stepKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// DefaultPolicy is used when no policy file exists.
func DefaultPolicy() *Policy {
	return &Policy{
		History: HistoryPolicy{DefaultLimit: 50, MaxLimit: 50},
		Diff:    DiffPolicy{StepKeys: []string{"actions", "steps", "workflowActions"}},
		Compliance: CompliancePolicy{
			Weights:    domain.DefaultScoreWeights,
			Thresholds: domain.DefaultComplianceThresholds,
		},
		Plans: map[string]PlanPolicy{
			"starter":      {Features: []string{FeatureVersionHistory}},
			"professional": {Features: []string{FeatureVersionHistory, FeatureRollback, FeatureAutomatedBackup}},
			"enterprise":   {Features: []string{FeatureVersionHistory, FeatureRollback, FeatureAutomatedBackup, FeatureComplianceReport}},
		},
		DefaultPlan: "starter",
	}
}

// LoadPolicy parses the YAML policy file at path. Missing sections keep their
// defaults. A missing file yields DefaultPolicy.
func LoadPolicy(path string) (*Policy, error) {
	policy := DefaultPolicy()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policy, nil
		}
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	if err := yaml.Unmarshal(raw, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return policy, nil
}

func (p *Policy) Validate() error {
	if p.History.DefaultLimit <= 0 || p.History.MaxLimit <= 0 {
		return fmt.Errorf("policy: history limits must be positive")
	}
	if p.History.DefaultLimit > p.History.MaxLimit {
		return fmt.Errorf("policy: history.defaultLimit exceeds history.maxLimit")
	}
	if len(p.Diff.StepKeys) == 0 {
		return fmt.Errorf("policy: diff.stepKeys must not be empty")
	}
	for _, key := range p.Diff.StepKeys {
		if !stepKeyPattern.MatchString(key) {
			return fmt.Errorf("policy: invalid step key %q", key)
		}
	}
	if _, ok := p.Plans[p.DefaultPlan]; !ok {
		return fmt.Errorf("policy: default plan %q is not defined", p.DefaultPlan)
	}
	return nil
}

// PlanAllows reports whether plan includes feature. Unknown plans fall back to
// the default plan.
func (p *Policy) PlanAllows(plan, feature string) bool {
	planPolicy, ok := p.Plans[plan]
	if !ok {
		planPolicy = p.Plans[p.DefaultPlan]
	}
	for _, f := range planPolicy.Features {
		if f == feature {
			return true
		}
	}
	return false
}
