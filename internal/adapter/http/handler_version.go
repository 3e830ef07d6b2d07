package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/workflowguard/workflowguard/infrastructure/http/validator"
	"github.com/workflowguard/workflowguard/infrastructure/service/logger"
	"github.com/workflowguard/workflowguard/internal/config"
	"github.com/workflowguard/workflowguard/internal/domain"
	"github.com/workflowguard/workflowguard/internal/ports"
	"github.com/workflowguard/workflowguard/internal/usecase"
)

// VersionUseCase defines the behavior the handler depends on.
type VersionUseCase interface {
	CreateVersion(ctx context.Context, workflowID, userID string, data json.RawMessage, snapshotType domain.SnapshotType) (*domain.WorkflowVersion, error)
	ProtectWorkflow(ctx context.Context, workflowID, userID string, initialData json.RawMessage) (*domain.WorkflowVersion, error)
	CreateAutomatedBackup(ctx context.Context, workflowID, userID string) (*domain.WorkflowVersion, error)
	FindHistory(ctx context.Context, workflowID string, limit int) ([]*usecase.VersionSummary, error)
	GetVersion(ctx context.Context, workflowID, versionID string) (*domain.WorkflowVersion, error)
	CompareVersions(ctx context.Context, workflowID, fromID, toID string) (*usecase.VersionComparison, error)
	RestoreVersion(ctx context.Context, workflowID, versionID, userID string) (*usecase.RestoreResult, error)
	RollbackWorkflow(ctx context.Context, workflowID, userID string) (*usecase.RollbackResult, error)
	RemoveVersion(ctx context.Context, workflowID, versionID, userID string) error
}

// CreateVersionRequest is the body of POST /versions
type CreateVersionRequest struct {
	Data         json.RawMessage     `json:"data"`
	SnapshotType domain.SnapshotType `json:"snapshotType"`
}

// ProtectRequest is the optional body of POST /protect
type ProtectRequest struct {
	Data json.RawMessage `json:"data"`
}

const maxBodyBytes = 5 << 20

// VersionHandler handles HTTP requests for workflow versions
type VersionHandler struct {
	versionUseCase VersionUseCase
	features       ports.FeatureGate
	logger         logger.Logger
}

func NewVersionHandler(versionUseCase VersionUseCase, features ports.FeatureGate, log logger.Logger) *VersionHandler {
	return &VersionHandler{
		versionUseCase: versionUseCase,
		features:       features,
		logger:         log,
	}
}

// RegisterRoutes registers version routes relative to the /api/v1 subrouter
func (h *VersionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/workflows/{id}/versions", h.CreateVersion).Methods("POST")
	router.HandleFunc("/workflows/{id}/protect", h.ProtectWorkflow).Methods("POST")
	router.HandleFunc("/workflows/{id}/backups", h.CreateBackup).Methods("POST")
	router.HandleFunc("/workflows/{id}/history", h.GetHistory).Methods("GET")
	router.HandleFunc("/workflows/{id}/compare", h.CompareVersions).Methods("GET")
	router.HandleFunc("/workflows/{id}/versions/{versionId}", h.GetVersion).Methods("GET")
	router.HandleFunc("/workflows/{id}/versions/{versionId}/restore", h.RestoreVersion).Methods("POST")
	router.HandleFunc("/workflows/{id}/rollback", h.Rollback).Methods("POST")
}

// RegisterAdminRoutes registers routes relative to the /api/v1/admin subrouter
func (h *VersionHandler) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc("/workflows/{id}/versions/{versionId}", h.RemoveVersion).Methods("DELETE")
}

// CreateVersion handles manual saves and other explicit snapshots
func (h *VersionHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	workflowID := mux.Vars(r)["id"]

	var req CreateVersionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.SnapshotType == "" {
		req.SnapshotType = domain.SnapshotManualSave
	}

	version, err := h.versionUseCase.CreateVersion(r.Context(), workflowID, claims.UserID, req.Data, req.SnapshotType)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to create version")
		return
	}

	writeSuccessResponse(w, http.StatusCreated, "Version created successfully", version)
}

// ProtectWorkflow records the first version of a workflow
func (h *VersionHandler) ProtectWorkflow(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	workflowID := mux.Vars(r)["id"]

	var req ProtectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	version, err := h.versionUseCase.ProtectWorkflow(r.Context(), workflowID, claims.UserID, req.Data)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to protect workflow")
		return
	}

	writeSuccessResponse(w, http.StatusCreated, "Workflow protected successfully", version)
}

// CreateBackup is called by the backup scheduler or a user on a paid plan
func (h *VersionHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !allowFeature(w, h.features, claims, config.FeatureAutomatedBackup) {
		return
	}

	version, err := h.versionUseCase.CreateAutomatedBackup(r.Context(), mux.Vars(r)["id"], claims.UserID)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to create backup")
		return
	}

	writeSuccessResponse(w, http.StatusCreated, "Backup created successfully", version)
}

// GetHistory handles retrieving the version history of a workflow
func (h *VersionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 {
			writeErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = l
	}

	history, err := h.versionUseCase.FindHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to retrieve history")
		return
	}

	writeSuccessResponse(w, http.StatusOK, "History retrieved successfully", history)
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	vars := mux.Vars(r)

	version, err := h.versionUseCase.GetVersion(r.Context(), vars["id"], vars["versionId"])
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to retrieve version")
		return
	}

	writeSuccessResponse(w, http.StatusOK, "Version retrieved successfully", version)
}

func (h *VersionHandler) CompareVersions(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if !validator.ValidateRequired(from) || !validator.ValidateRequired(to) {
		writeErrorResponse(w, http.StatusBadRequest, "missing_versions", "Both from and to version IDs are required")
		return
	}

	comparison, err := h.versionUseCase.CompareVersions(r.Context(), mux.Vars(r)["id"], from, to)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to compare versions")
		return
	}

	writeSuccessResponse(w, http.StatusOK, "Versions compared successfully", comparison)
}

func (h *VersionHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !allowFeature(w, h.features, claims, config.FeatureRollback) {
		return
	}
	vars := mux.Vars(r)

	result, err := h.versionUseCase.RestoreVersion(r.Context(), vars["id"], vars["versionId"], claims.UserID)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to restore version")
		return
	}

	writeSuccessResponse(w, http.StatusCreated, result.Message, result)
}

// Rollback answers 200 for the single-version no-op and 201 when a version was appended
func (h *VersionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !allowFeature(w, h.features, claims, config.FeatureRollback) {
		return
	}

	result, err := h.versionUseCase.RollbackWorkflow(r.Context(), mux.Vars(r)["id"], claims.UserID)
	if err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to roll back workflow")
		return
	}

	status := http.StatusCreated
	if result.RollbackVersion == nil {
		status = http.StatusOK
	}
	writeSuccessResponse(w, status, result.Message, result)
}

func (h *VersionHandler) RemoveVersion(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	if err := h.versionUseCase.RemoveVersion(r.Context(), vars["id"], vars["versionId"], claims.UserID); err != nil {
		writeUseCaseError(w, r, h.logger, err, "Failed to remove version")
		return
	}

	logger.LogSecurityEvent(r.Context(), h.logger, "version_removed", "MEDIUM", map[string]interface{}{
		"workflow_id": vars["id"],
		"version_id":  vars["versionId"],
		"admin_id":    claims.UserID,
	})
	writeSuccessResponse(w, http.StatusOK, "Version removed successfully", nil)
}
