package domain

import "errors"

// ErrorKind classifies a DomainError for the transport layer.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidState ErrorKind = "invalid_state"
	KindValidation   ErrorKind = "validation"
	KindInternal     ErrorKind = "internal"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

// NewValidationError builds a one-off validation error carrying a detailed message.
func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, "validation_failed", message)
}

var (
	ErrWorkflowNotFound    = NewDomainError(KindNotFound, "workflow_not_found", "workflow not found")
	ErrVersionNotFound     = NewDomainError(KindNotFound, "version_not_found", "version not found")
	ErrNoVersionToBackup   = NewDomainError(KindNotFound, "no_version_to_backup", "no version exists to back up")
	ErrUserNotFound        = NewDomainError(KindNotFound, "user_not_found", "user not found")
	ErrVersionConflict     = NewDomainError(KindConflict, "version_conflict", "version number already taken for this workflow")
	ErrAlreadyProtected    = NewDomainError(KindConflict, "already_protected", "workflow is already protected")
	ErrRollbackNotPossible = NewDomainError(KindInvalidState, "rollback_not_possible", "rollback not possible: workflow has no versions")
	ErrLatestVersionRemove = NewDomainError(KindInvalidState, "latest_version_removal", "the latest version cannot be removed")
	ErrInvalidDateRange    = NewDomainError(KindValidation, "invalid_date_range", "start date must not be after end date")
	ErrInvalidSnapshotType = NewDomainError(KindValidation, "invalid_snapshot_type", "invalid snapshot type")
	ErrEmptySnapshotData   = NewDomainError(KindValidation, "empty_snapshot_data", "snapshot data is required")
	ErrInvalidWorkflow     = NewDomainError(KindValidation, "invalid_workflow", "workflow is required")
)

// KindOf reports the kind of the first DomainError in err's chain,
// or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}
