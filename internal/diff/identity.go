package diff

import (
	"encoding/json"
	"reflect"

	"github.com/tidwall/gjson"
)

// Step is one workflow step extracted from a snapshot payload.
type Step struct {
	Raw   string
	value interface{}
}

func newStep(raw string) Step {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	return Step{Raw: raw, value: value}
}

// field returns a step attribute, treating JSON null as absent.
func (s Step) field(name string) (gjson.Result, bool) {
	r := gjson.Get(s.Raw, name)
	if !r.Exists() || r.Type == gjson.Null {
		return r, false
	}
	return r, true
}

// DeepEqual reports whether two steps carry the same JSON value.
func (s Step) DeepEqual(other Step) bool {
	return reflect.DeepEqual(s.value, other.value)
}

// IdentityRule compares two steps on one attribute. decided is false when the
// rule cannot judge the pair and the next rule in the chain should be tried.
type IdentityRule func(a, b Step) (same bool, decided bool)

// DefaultIdentityChain matches by id, then actionId, then by structure.
var DefaultIdentityChain = []IdentityRule{ByField("id"), ByField("actionId"), ByStructure}

// ByField decides identity when both steps carry the named attribute.
func ByField(name string) IdentityRule {
	return func(a, b Step) (bool, bool) {
		av, aok := a.field(name)
		bv, bok := b.field(name)
		if !aok || !bok {
			return false, false
		}
		return reflect.DeepEqual(av.Value(), bv.Value()), true
	}
}

// ByStructure compares type, actionType and the canonical form of settings.
// It always decides.
func ByStructure(a, b Step) (bool, bool) {
	for _, name := range []string{"type", "actionType"} {
		av, _ := a.field(name)
		bv, _ := b.field(name)
		if !reflect.DeepEqual(av.Value(), bv.Value()) {
			return false, true
		}
	}
	return canonicalSettings(a) == canonicalSettings(b), true
}

// canonicalSettings re-encodes settings so that key order does not matter.
func canonicalSettings(s Step) string {
	r, ok := s.field("settings")
	if !ok {
		return "null"
	}
	out, err := json.Marshal(r.Value())
	if err != nil {
		return r.Raw
	}
	return string(out)
}

// SameEntity runs the chain and returns the first decisive verdict.
func SameEntity(chain []IdentityRule, a, b Step) bool {
	for _, rule := range chain {
		if same, decided := rule(a, b); decided {
			return same
		}
	}
	return false
}
