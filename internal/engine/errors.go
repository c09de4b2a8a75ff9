package engine

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError carries per-field messages for a rejected discovery or
// operation input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError marks an operation rejected by document state, such as a
// backward status transition.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }
