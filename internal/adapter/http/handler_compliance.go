package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/workflowguard/workflowguard/infrastructure/http/validator"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/config"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
)

type ComplianceUseCase interface {
	GenerateComplianceReport(ctx context.Context, workflowID string, start, end time.Time) (*domain.ComplianceReport, error)
}

type ComplianceHandler struct {
	complianceUseCase ComplianceUseCase
	features          ports.FeatureGate
	logger            logger.Logger
}

func NewComplianceHandler(complianceUseCase ComplianceUseCase, features ports.FeatureGate, log logger.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		complianceUseCase: complianceUseCase,
		features:          features,
		logger:            log,
	}
}

func (h *ComplianceHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workflows/{id}/compliance-report", h.GetReport).Methods("GET")
}

// GetReport expects startDate and endDate as YYYY-MM-DD or RFC 3339
func (h *ComplianceHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !allowFeature(w, h.features, claims, config.FeatureComplianceReport) {
		return
	}

	query := r.URL.Query()
	startStr, endStr := query.Get("startDate"), query.Get("endDate")
	if !validator.ValidateRequired(startStr) || !validator.ValidateRequired(endStr) {
		writeErrorResponse(w, http.StatusBadRequest, "missing_dates", "startDate and endDate are required")
		return
	}

	start, err := validator.ParseDate(startStr, false)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}
	end, err := validator.ParseDate(endStr, true)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_date", err.Error())
		return
	}

	report, err := h.complianceUseCase.GenerateComplianceReport(r.Context(), mux.Vars(r)["id"], start, end)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to generate compliance report")
		return
	}

	writeSuccessResponse(w, http.StatusOK, "Compliance report generated successfully", report)
}
