package filter

import "fmt"

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 16

// ScopeField is the tag every indexed chunk carries with its scope key.
const ScopeField = "scope"

// Condition is an exact tag match.
type Condition struct {
	key   string
	value string
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, value string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, value: value}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Value returns the exact match value.
func (c Condition) Value() string { return c.value }

// Expression is a conjunction of tag matches evaluated by the backend.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{must: must}, nil
}

// ForScope returns the server-side isolation filter for one scope key.
func ForScope(scopeKey string) (Expression, error) {
	c, err := NewMatch(ScopeField, scopeKey)
	if err != nil {
		return Expression{}, err
	}
	return Expression{must: []Condition{c}}, nil
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Value returns the match value for key, if present.
func (e Expression) Value(key string) (string, bool) {
	for _, c := range e.must {
		if c.key == key {
			return c.value, true
		}
	}
	return "", false
}

// AsMap flattens the expression into key -> value (for backends with map filters).
func (e Expression) AsMap() map[string]string {
	if len(e.must) == 0 {
		return nil
	}
	m := make(map[string]string, len(e.must))
	for _, c := range e.must {
		m[c.key] = c.value
	}
	return m
}
