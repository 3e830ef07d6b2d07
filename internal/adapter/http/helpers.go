package http

import (
	"net/http"

	"github.com/workflowguard/workflowguard/infrastructure/http/middleware"
	"github.com/workflowguard/workflowguard/infrastructure/http/response"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/ports"
	"github.com/workflowguard/workflowguard/pkg/apperror"
)

func writeSuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	response.Success(w, statusCode, message, data)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	response.ErrorWithCode(w, statusCode, code, message)
}

// writeUseCaseError maps err onto the envelope. Internal errors are logged and
// answered with fallback instead of the raw error text.
func writeUseCaseError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error, fallback string) {
	appErr := apperror.MapError(err)

	if appErr.Status >= http.StatusInternalServerError {
		log.Error(r.Context(), fallback, err, map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		})
		writeErrorResponse(w, appErr.Status, appErr.Code, fallback)
		return
	}

	writeErrorResponse(w, appErr.Status, appErr.Code, appErr.Message)
}

// currentUser returns the authenticated claims, writing 401 when absent.
func currentUser(w http.ResponseWriter, r *http.Request) (*ports.TokenClaims, bool) {
	claims := middleware.GetUserClaims(r.Context())
	if claims == nil {
		writeErrorResponse(w, http.StatusUnauthorized, apperror.ErrUnauthorized.Code, "User not authenticated")
		return nil, false
	}
	return claims, true
}

// allowFeature checks the caller's plan. The scheduler bypasses plan gates.
func allowFeature(w http.ResponseWriter, gate ports.FeatureGate, claims *ports.TokenClaims, feature string) bool {
	if gate == nil || claims.Role == ports.RoleScheduler || claims.Role == ports.RoleAdmin {
		return true
	}
	if gate.PlanAllows(claims.Plan, feature) {
		return true
	}
	writeErrorResponse(w, apperror.ErrPlanUpgrade.Status, apperror.ErrPlanUpgrade.Code, apperror.ErrPlanUpgrade.Message)
	return false
}
