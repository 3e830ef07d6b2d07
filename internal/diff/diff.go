// Package diff compares workflow snapshot payloads step by step.
//
// Comparison is set reconciliation: a step is matched against the other
// payload by identity, so reordering steps is not a change.
package diff

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/workflowguard/workflowguard/internal/domain"
)

// DefaultStepKeys are tried in order to locate the step list of a payload.
var DefaultStepKeys = []string{"actions", "steps", "workflowActions"}

const NoChangesSummary = "No changes detected"

// Result is the outcome of comparing two payloads.
type Result struct {
	Changes domain.ChangeSet `json:"changes"`
	Summary string           `json:"changeSummary"`
}

// Engine holds the extraction and identity policy.
type Engine struct {
	stepKeys []string
	chain    []IdentityRule
}

func NewEngine(stepKeys []string) *Engine {
	if len(stepKeys) == 0 {
		stepKeys = DefaultStepKeys
	}
	return &Engine{stepKeys: stepKeys, chain: DefaultIdentityChain}
}

// ExtractSteps returns the first array found under the configured keys.
// Payloads without one, including malformed JSON, yield no steps.
func (e *Engine) ExtractSteps(payload []byte) []Step {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return []Step{}
	}

	for _, key := range e.stepKeys {
		r := gjson.GetBytes(payload, key)
		if !r.IsArray() {
			continue
		}
		items := r.Array()
		steps := make([]Step, 0, len(items))
		for _, item := range items {
			steps = append(steps, newStep(item.Raw))
		}
		return steps
	}

	return []Step{}
}

// Compare diffs current against previous. A nil previous means current is the
// first version and every step counts as added.
func (e *Engine) Compare(current, previous []byte) Result {
	currentSteps := e.ExtractSteps(current)

	if previous == nil {
		changes := domain.ChangeSet{Added: len(currentSteps)}
		return Result{Changes: changes, Summary: Summarize(changes)}
	}

	changes := e.CompareSteps(currentSteps, e.ExtractSteps(previous))
	return Result{Changes: changes, Summary: Summarize(changes)}
}

// CompareSteps counts added, modified and removed steps. O(n*m).
func (e *Engine) CompareSteps(current, previous []Step) domain.ChangeSet {
	var changes domain.ChangeSet

	for _, c := range current {
		match, ok := e.find(c, previous)
		if !ok {
			changes.Added++
			continue
		}
		if !c.DeepEqual(match) {
			changes.Modified++
		}
	}

	for _, p := range previous {
		if _, ok := e.find(p, current); !ok {
			changes.Removed++
		}
	}

	return changes
}

func (e *Engine) find(step Step, candidates []Step) (Step, bool) {
	for _, candidate := range candidates {
		if SameEntity(e.chain, step, candidate) {
			return candidate, true
		}
	}
	return Step{}, false
}

// Summarize renders a change set as a human readable sentence.
func Summarize(c domain.ChangeSet) string {
	var parts []string
	if c.Added > 0 {
		parts = append(parts, fmt.Sprintf("%d step(s) added", c.Added))
	}
	if c.Modified > 0 {
		parts = append(parts, fmt.Sprintf("%d step(s) modified", c.Modified))
	}
	if c.Removed > 0 {
		parts = append(parts, fmt.Sprintf("%d step(s) removed", c.Removed))
	}
	if len(parts) == 0 {
		return NoChangesSummary
	}
	return strings.Join(parts, ", ")
}
