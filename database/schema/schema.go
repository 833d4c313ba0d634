// Package schema compares the columns a backend reports for a table with
// the columns the gateway expects to find there.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrTableMissing is returned when the backend reports no columns at all
// for a table.
var ErrTableMissing = errors.New("table missing")

// Column is one column as the backend's catalogue reports it. Type is
// compared case-insensitively.
type Column struct {
	Type     string
	Nullable bool
}

// Table is a gateway table and the columns it must carry. Extra columns
// in the database are allowed.
type Table struct {
	Name    string
	Columns map[string]Column
}

// DriftError describes how a table differs from what the gateway expects.
type DriftError struct {
	Table   string
	Missing []string
	Changed []string
}

func (e *DriftError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	parts = append(parts, e.Changed...)
	return fmt.Sprintf("table %s has drifted: %s", e.Table, strings.Join(parts, "; "))
}

// Compare checks actual against want. It returns ErrTableMissing when
// actual is empty and a *DriftError when columns are absent or differ.
func Compare(want Table, actual map[string]Column) error {
	if len(actual) == 0 {
		return fmt.Errorf("%s: %w", want.Name, ErrTableMissing)
	}

	drift := &DriftError{Table: want.Name}
	for name, w := range want.Columns {
		got, ok := actual[name]
		if !ok {
			drift.Missing = append(drift.Missing, name)
			continue
		}
		if !strings.EqualFold(got.Type, w.Type) {
			drift.Changed = append(drift.Changed, fmt.Sprintf("%s is %s, want %s", name, strings.ToLower(got.Type), w.Type))
		}
		if got.Nullable != w.Nullable {
			drift.Changed = append(drift.Changed, fmt.Sprintf("%s is %s, want %s", name, nullability(got.Nullable), nullability(w.Nullable)))
		}
	}

	if len(drift.Missing) == 0 && len(drift.Changed) == 0 {
		return nil
	}
	// map order is random
	slices.Sort(drift.Missing)
	slices.Sort(drift.Changed)
	return drift
}

func nullability(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}
