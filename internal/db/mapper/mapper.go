// Package mapper converts between domain values and their SQLite column
// representations. Timestamps are stored as UTC unix milliseconds so that
// MIN/MAX aggregates and range filters compare numerically.
package mapper

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Millis converts t to unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// TimeFromMillis converts unix milliseconds to a UTC time.
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NullMillisFromPtr converts an optional time to a nullable millis column.
func NullMillisFromPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: Millis(*t), Valid: true}
}

// TimePtrFromNullMillis converts a nullable millis column to an optional time.
func TimePtrFromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := TimeFromMillis(ms.Int64)
	return &t
}

// NullStrFromPtr converts a *string to sql.NullString.
func NullStrFromPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NullStrFromStr converts a string to sql.NullString (empty string → NULL).
func NullStrFromStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// PtrFromNullStr converts sql.NullString to *string.
func PtrFromNullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// BoolToInt maps a bool onto SQLite's 0/1 integer convention.
func BoolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// PropertiesToJSON encodes message properties for the msg_props column.
func PropertiesToJSON(props map[string]string) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("marshal message properties: %w", err)
	}
	return string(b), nil
}

// PropertiesFromJSON decodes the msg_props column.
func PropertiesFromJSON(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return map[string]string{}, nil
	}
	props := make(map[string]string)
	if err := json.Unmarshal([]byte(s), &props); err != nil {
		return nil, fmt.Errorf("unmarshal message properties: %w", err)
	}
	return props, nil
}
