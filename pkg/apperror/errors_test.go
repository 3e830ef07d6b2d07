package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/workflowguard/workflowguard/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"not found", domain.ErrVersionNotFound, http.StatusNotFound, "version_not_found"},
		{"wrapped conflict", fmt.Errorf("failed to create version: %w", domain.ErrVersionConflict), http.StatusConflict, "version_conflict"},
		{"invalid state", domain.ErrRollbackNotPossible, http.StatusUnprocessableEntity, "rollback_not_possible"},
		{"validation", domain.NewValidationError("actions: must be an array"), http.StatusBadRequest, "validation_failed"},
		{"app error passes through", ErrPlanUpgrade, http.StatusForbidden, "PLAN_UPGRADE_REQUIRED"},
		{"unknown error", errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapError(tt.err)
			assert.Equal(t, tt.expectedStatus, appErr.Status)
			assert.Equal(t, tt.expectedCode, appErr.Code)
		})
	}
}

func TestMapError_HidesInternalDetails(t *testing.T) {
	appErr := MapError(errors.New("pq: password authentication failed for user \"admin\""))
	assert.Equal(t, "An unexpected error occurred", appErr.Message)
}
