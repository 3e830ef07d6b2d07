package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/workflowguard/workflowguard/infrastructure/service/apikey"
	"github.com/workflowguard/workflowguard/infrastructure/service/jwt"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
	"github.com/workflowguard/workflowguard/internal/usecase"
)

type mockVersions struct {
	mock.Mock
}

func (m *mockVersions) CreateAutomatedBackup(ctx context.Context, workflowID, userID string) (*domain.WorkflowVersion, error) {
	args := m.Called(workflowID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkflowVersion), args.Error(1)
}

func (m *mockVersions) FindHistory(ctx context.Context, workflowID string, limit int) ([]*usecase.VersionSummary, error) {
	args := m.Called(workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*usecase.VersionSummary), args.Error(1)
}

func (m *mockVersions) RollbackWorkflow(ctx context.Context, workflowID, userID string) (*usecase.RollbackResult, error) {
	args := m.Called(workflowID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RollbackResult), args.Error(1)
}

type mockCompliance struct {
	mock.Mock
}

func (m *mockCompliance) GenerateComplianceReport(ctx context.Context, workflowID string, start, end time.Time) (*domain.ComplianceReport, error) {
	args := m.Called(workflowID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ComplianceReport), args.Error(1)
}

func run(t *testing.T, backend *Backend, args ...string) (string, error) {
	t.Helper()
	closed := false
	open := func(ctx context.Context) (*Backend, error) {
		if backend == nil {
			return nil, errors.New("no database")
		}
		backend.Close = func() error { closed = true; return nil }
		return backend, nil
	}

	cmd := NewRootCommand(open)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()

	if backend != nil && err == nil {
		assert.True(t, closed, "backend should be closed")
	}
	return out.String(), err
}

func TestBackupCommand(t *testing.T) {
	versions := new(mockVersions)
	versions.On("CreateAutomatedBackup", "wf-1", domain.SystemActor).
		Return(&domain.WorkflowVersion{ID: "ver-4", VersionNumber: 4}, nil).Once()
	versions.On("CreateAutomatedBackup", "wf-2", domain.SystemActor).
		Return(nil, domain.ErrNoVersionToBackup).Once()
	versions.On("CreateAutomatedBackup", "wf-3", domain.SystemActor).
		Return(nil, domain.ErrWorkflowNotFound).Once()

	backend := &Backend{Versions: versions}

	out, err := run(t, backend, "backup", "--workflow", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Created backup version 4 (ver-4) for workflow wf-1\n", out)

	out, err = run(t, backend, "backup", "--workflow", "wf-2")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to back up")

	_, err = run(t, backend, "backup", "--workflow", "wf-3")
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)

	versions.AssertExpectations(t)
}

func TestBackupCommand_Errors(t *testing.T) {
	_, err := run(t, &Backend{Versions: new(mockVersions)}, "backup")
	assert.EqualError(t, err, "--workflow is required")

	_, err = run(t, nil, "backup", "--workflow", "wf-1")
	assert.ErrorContains(t, err, "failed to initialize backend")
}

func TestHistoryCommand(t *testing.T) {
	versions := new(mockVersions)
	versions.On("FindHistory", "wf-1", 10).Return([]*usecase.VersionSummary{
		{VersionNumber: 2, SnapshotType: domain.SnapshotManualSave, CreatedByName: "Alice", ChangeSummary: "1 step(s) added", Status: usecase.VersionStatusActive},
		{VersionNumber: 1, SnapshotType: domain.SnapshotInitialProtection, CreatedByName: "Alice", ChangeSummary: "Initial version", Status: usecase.VersionStatusInactive},
	}, nil).Once()
	versions.On("FindHistory", "wf-2", 0).Return([]*usecase.VersionSummary{}, nil).Once()

	backend := &Backend{Versions: versions}

	out, err := run(t, backend, "history", "--workflow", "wf-1", "--limit", "10")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "VERSION"))
	assert.Contains(t, lines[1], "Manual Save")
	assert.Contains(t, lines[1], "active")
	assert.Contains(t, lines[2], "Initial Protection")

	out, err = run(t, backend, "history", "--workflow", "wf-2")
	require.NoError(t, err)
	assert.Equal(t, "No versions found.\n", out)

	versions.AssertExpectations(t)
}

func TestRollbackCommand(t *testing.T) {
	versions := new(mockVersions)
	versions.On("RollbackWorkflow", "wf-1", domain.SystemActor).
		Return(&usecase.RollbackResult{Message: "Workflow rolled back to version 1 as version 3"}, nil).Once()
	versions.On("RollbackWorkflow", "wf-1", "ops-user").
		Return(nil, domain.ErrRollbackNotPossible).Once()

	backend := &Backend{Versions: versions}

	out, err := run(t, backend, "rollback", "--workflow", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Workflow rolled back to version 1 as version 3\n", out)

	_, err = run(t, backend, "rollback", "--workflow", "wf-1", "--user", "ops-user")
	assert.ErrorIs(t, err, domain.ErrRollbackNotPossible)

	versions.AssertExpectations(t)
}

func TestReportCommand(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC).Add(24*time.Hour - time.Nanosecond)

	compliance := new(mockCompliance)
	compliance.On("GenerateComplianceReport", "wf-1", start, end).Return(&domain.ComplianceReport{
		WorkflowID:      "wf-1",
		WorkflowName:    "Lead Sync",
		Summary:         domain.ComplianceSummary{TotalVersions: 3, ComplianceScore: 45},
		Recommendations: []string{domain.RecommendBackupFrequency},
	}, nil).Once()

	out, err := run(t, &Backend{Compliance: compliance}, "report", "--workflow", "wf-1", "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, err)

	var report domain.ComplianceReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Lead Sync", report.WorkflowName)
	assert.Equal(t, 45, report.Summary.ComplianceScore)

	_, err = run(t, &Backend{Compliance: compliance}, "report", "--workflow", "wf-1", "--from", "yesterday", "--to", "2024-01-31")
	assert.ErrorContains(t, err, "--from")

	compliance.AssertExpectations(t)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	out, err := run(t, nil, "token", "--user", "u-1", "--role", "admin", "--plan", "enterprise")
	require.NoError(t, err)

	svc, err := jwt.NewJWTService("cli-test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	claims, err := svc.ValidateAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, ports.RoleAdmin, claims.Role)
	assert.Equal(t, "enterprise", claims.Plan)

	_, err = run(t, nil, "token", "--user", "u-1", "--role", "scheduler")
	assert.ErrorContains(t, err, "unsupported role")

	_, err = run(t, nil, "token")
	assert.EqualError(t, err, "--user is required")
}

func TestTokenCommand_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := run(t, nil, "token", "--user", "u-1")
	assert.Error(t, err)
}

func TestHashKeyCommand(t *testing.T) {
	out, err := run(t, nil, "hash-key", "--key", "scheduler-secret", "--cost", "4")
	require.NoError(t, err)

	hash := strings.TrimSpace(strings.TrimPrefix(out, "hash:"))
	assert.True(t, apikey.NewBcryptKeyVerifier(hash).Verify("scheduler-secret"))
	assert.False(t, apikey.NewBcryptKeyVerifier(hash).Verify("other"))

	out, err = run(t, nil, "hash-key", "--cost", "4")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	key := strings.TrimSpace(strings.TrimPrefix(lines[0], "key:"))
	hash = strings.TrimSpace(strings.TrimPrefix(lines[1], "hash:"))
	assert.True(t, apikey.NewBcryptKeyVerifier(hash).Verify(key))
}
