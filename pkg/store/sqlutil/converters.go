// Package sqlutil converts between this module's pointer-typed optional
// fields and the sql.Null* types the State Store's repositories bind query
// parameters and scan rows with.
package sqlutil

import (
	"database/sql"
	"time"
)

// ToNullString maps a nil or empty pointer to an invalid sql.NullString.
func ToNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// ToNullStringValue maps an empty string to an invalid sql.NullString.
func ToNullStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime maps a nil pointer to an invalid sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ToNullInt64 maps a nil pointer to an invalid sql.NullInt64.
func ToNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// ToNullFloat64 maps a nil pointer to an invalid sql.NullFloat64.
func ToNullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// FromNullString maps an invalid sql.NullString to "".
func FromNullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

// FromNullTime maps an invalid sql.NullTime to a nil pointer.
func FromNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// FromNullInt64 maps an invalid sql.NullInt64 to a nil pointer.
func FromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// FromNullFloat64 maps an invalid sql.NullFloat64 to a nil pointer.
func FromNullFloat64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
