// Package normalization maps loosely written configuration strings onto
// typed enum values.
package normalization

import (
	"fmt"
	"slices"
	"strings"
)

// Func allows custom normalization behavior.
type Func func(string) string

// Normalizer provides type-safe string-to-enum normalization with error handling.
// Several keys may map to the same value, which is how aliases such as
// "utf-8" and "utf8" are expressed.
type Normalizer[T comparable] struct {
	name         string
	clean        Func
	validValues  map[string]T
	defaultValue T
	validKeys    []string // Cached for error messages
}

// NewNormalizer creates a normalizer with a map of valid string->value pairs.
// The name is used in error messages ("invalid <name> ...").
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	return WithCustomNormalizer(name, values, defaultValue, defaultNormalization)
}

// WithCustomNormalizer creates a normalizer with custom string normalization.
func WithCustomNormalizer[T comparable](name string, values map[string]T, defaultValue T, clean Func) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))

	for k, v := range values {
		key := clean(k)
		normalized[key] = v
		validKeys = append(validKeys, key)
	}
	slices.Sort(validKeys)

	return &Normalizer[T]{
		name:         name,
		clean:        clean,
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
	}
}

// Normalize converts raw to the enum type, returning the default when raw
// is empty or unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.validValues[n.clean(raw)]; ok {
		return value
	}
	return n.defaultValue
}

// Parse converts raw to the enum type. An empty string yields the default;
// an unknown value is an error.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	cleaned := n.clean(raw)
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if value, ok := n.validValues[cleaned]; ok {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", n.name, raw, strings.Join(n.validKeys, ", "))
}

// IsValid reports whether raw names a known value.
func (n *Normalizer[T]) IsValid(raw string) bool {
	_, ok := n.validValues[n.clean(raw)]
	return ok
}

// Default returns the value used for empty or unknown input.
func (n *Normalizer[T]) Default() T {
	return n.defaultValue
}

// ValidKeys returns all valid normalized keys.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.validKeys)
}

// defaultNormalization provides standard string normalization.
func defaultNormalization(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
