package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is fixed-width so TEXT columns sort chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in UTC for a TEXT column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NullTime renders an optional time; nil becomes NULL.
func NullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

// ParseTime reads a column written by FormatTime. RFC3339 is accepted for
// rows written by hand or by older tooling.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseNullTime is ParseTime for nullable columns.
func ParseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
