package validator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/workflowguard/workflowguard/internal/domain"
)

// SnapshotValidator checks snapshot payloads against a JSON schema built from
// the configured step container keys.
type SnapshotValidator struct {
	schema *gojsonschema.Schema
}

// NewSnapshotValidator compiles the snapshot schema. Every step key, when
// present, must hold an array or null.
func NewSnapshotValidator(stepKeys []string) (*SnapshotValidator, error) {
	properties := make(map[string]interface{}, len(stepKeys))
	for _, key := range stepKeys {
		properties[key] = map[string]interface{}{"type": []string{"array", "null"}}
	}

	schemaDoc := map[string]interface{}{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": properties,
	}

	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot schema: %w", err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to compile snapshot schema: %w", err)
	}

	return &SnapshotValidator{schema: schema}, nil
}

// Validate returns a validation DomainError describing every violation.
func (v *SnapshotValidator) Validate(data []byte) error {
	if len(data) == 0 {
		return domain.ErrEmptySnapshotData
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return domain.NewValidationError("snapshot data must be valid JSON")
	}

	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return domain.NewValidationError("invalid snapshot data: " + strings.Join(msgs, "; "))
	}

	return nil
}

func ValidateRequired(value string) bool {
	return strings.TrimSpace(value) != ""
}

// ValidateUUID reports whether value is a canonical UUID string.
func ValidateUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

// ParseDate accepts RFC 3339 timestamps or plain dates. A plain end date is
// extended to the last instant of that day.
func ParseDate(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
