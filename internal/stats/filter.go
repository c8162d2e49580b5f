package stats

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidFilter is returned for a filter naming an unknown dimension or
// missing its ":" separator.
var ErrInvalidFilter = errors.New("invalidFilter")

// Predicate matches sessions having Value among their keys for dimension
// Key, or lacking it when Negated.
type Predicate struct {
	Key     string
	Value   string
	Negated bool
}

// Filter is a conjunction of predicates. The zero Filter matches every
// session.
type Filter []Predicate

// ParseFilter reads ";"-joined "[!]key:value" predicates. An empty value
// selects sessions for which the dimension is unknown.
func ParseFilter(s string) (Filter, error) {
	var f Filter
	for part := range strings.SplitSeq(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		var p Predicate
		if rest, ok := strings.CutPrefix(part, "!"); ok {
			p.Negated = true
			part = rest
		}
		key, value, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("%w: %q has no value", ErrInvalidFilter, part)
		}
		if !slices.Contains(Dimensions, key) {
			return nil, fmt.Errorf("%w: unknown dimension %q", ErrInvalidFilter, key)
		}
		p.Key = key
		p.Value = orUnknown(value)
		f = append(f, p)
	}
	return f, nil
}

// String returns the filter in the form ParseFilter reads.
func (f Filter) String() string {
	parts := make([]string, len(f))
	for i, p := range f {
		prefix := ""
		if p.Negated {
			prefix = "!"
		}
		parts[i] = prefix + p.Key + ":" + p.Value
	}
	return strings.Join(parts, ";")
}

// Matches reports whether every predicate holds for attrs.
func (f Filter) Matches(attrs Attributes) bool {
	for _, p := range f {
		if slices.Contains(attrs[p.Key], p.Value) == p.Negated {
			return false
		}
	}
	return true
}
