package language

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Set is an ordered, de-duplicated collection of language codes.
type Set struct {
	codes []Code
}

// NewSet builds a set from codes, dropping duplicates and empties.
func NewSet(codes ...Code) Set {
	filtered := lo.Filter(codes, func(c Code, _ int) bool { return c != "" })
	return Set{codes: lo.Uniq(filtered)}
}

// ParseSet normalizes every value and returns the resulting set.
func ParseSet(values []string) (Set, error) {
	codes := make([]Code, 0, len(values))
	var bad []string
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		code, err := Parse(value)
		if err != nil {
			bad = append(bad, value)
			continue
		}
		codes = append(codes, code)
	}
	if len(bad) > 0 {
		return Set{}, fmt.Errorf("language: unrecognized %s", strings.Join(bad, ", "))
	}
	return NewSet(codes...), nil
}

// Codes returns a copy of the set members in insertion order.
func (s Set) Codes() []Code {
	return slices.Clone(s.codes)
}

// Strings returns the members as plain strings.
func (s Set) Strings() []string {
	return lo.Map(s.codes, func(c Code, _ int) string { return string(c) })
}

func (s Set) Len() int { return len(s.codes) }

func (s Set) Empty() bool { return len(s.codes) == 0 }

func (s Set) Contains(code Code) bool {
	return slices.Contains(s.codes, code)
}

// Equal reports whether both sets hold the same members, ignoring order.
func (s Set) Equal(other Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	return lo.Every(other.codes, s.codes)
}

// Intersect keeps the members of s that are also in other, in s order.
func (s Set) Intersect(other Set) Set {
	return Set{codes: lo.Filter(s.codes, func(c Code, _ int) bool { return other.Contains(c) })}
}

// Difference keeps the members of s that are not in other.
func (s Set) Difference(other Set) Set {
	return Set{codes: lo.Filter(s.codes, func(c Code, _ int) bool { return !other.Contains(c) })}
}

func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}

// KeysOf returns the set of keys present in m, sorted for stable output.
func KeysOf[V any](m map[Code]V) Set {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return Set{codes: keys}
}
