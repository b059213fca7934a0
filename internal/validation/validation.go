// Package validation holds the per-field sanitization and validation primitives every handler boundary runs input
// through before it reaches a service: HTML/control-character stripping, UUID format checks, declared-enum checks,
// numeric range checks, and bounded tag arrays. A failed check collects a field-level apierrors.FieldError rather
// than returning on the first failure, so a single request reports every problem with its input at once.
package validation

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goalguild/core-service/internal/apierrors"
)

// sanitizer strips all HTML/script content rather than allowing a safe subset, since the fields this package
// validates are plain text (titles, names, descriptions), never rendered as rich text.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML tags and control characters from s and trims surrounding whitespace. Safe to call on any
// string field before it is persisted or compared.
func Sanitize(s string) string {
	clean := sanitizer.Sanitize(s)
	clean = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, clean)
	return strings.TrimSpace(clean)
}

// Errors accumulates per-field validation failures across a single request. The zero value is ready to use.
type Errors struct {
	fields []apierrors.FieldError
}

// Add records a field failure unconditionally.
func (e *Errors) Add(field, message string) {
	e.fields = append(e.fields, apierrors.FieldError{Field: field, Message: message})
}

// Require adds a failure if value is empty after trimming whitespace.
func (e *Errors) Require(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
	}
}

// UUID adds a failure if value does not parse as a UUID. Empty values are reported as malformed rather than
// silently skipped; callers that treat the field as optional should check for emptiness themselves first.
func (e *Errors) UUID(field, value string) {
	if _, err := uuid.Parse(value); err != nil {
		e.Add(field, "must be a valid UUID")
	}
}

// OptionalUUID adds a failure only if value is non-empty and fails to parse as a UUID.
func (e *Errors) OptionalUUID(field, value string) {
	if value == "" {
		return
	}
	e.UUID(field, value)
}

// Enum adds a failure if value is not one of allowed.
func (e *Errors) Enum(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	e.Add(field, "must be one of "+strings.Join(allowed, ", "))
}

// IntRange adds a failure if value falls outside [min, max], inclusive.
func (e *Errors) IntRange(field string, value, min, max int) {
	if value < min || value > max {
		e.Add(field, "must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
}

// TimeRange adds a failure if value falls outside [min, max], inclusive.
func (e *Errors) TimeRange(field string, value, min, max time.Time) {
	if value.Before(min) || value.After(max) {
		e.Add(field, "must fall between "+min.Format(time.RFC3339)+" and "+max.Format(time.RFC3339))
	}
}

// MaxLength adds a failure if value is longer than max runes.
func (e *Errors) MaxLength(field, value string, max int) {
	if len([]rune(value)) > max {
		e.Add(field, "must be at most "+strconv.Itoa(max)+" characters")
	}
}

// alphanumeric reports whether s contains only ASCII letters and digits.
func alphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// maxTags and maxTagLength bound tag arrays per the 4.11 input contract: at most 10 tags, each at most 20
// alphanumeric characters.
const (
	maxTags      = 10
	maxTagLength = 20
)

// Tags adds a failure if values has more than maxTags entries, or any entry is empty, longer than maxTagLength, or
// contains a non-alphanumeric character.
func (e *Errors) Tags(field string, values []string) {
	if len(values) > maxTags {
		e.Add(field, "must have at most "+strconv.Itoa(maxTags)+" tags")
		return
	}
	for _, v := range values {
		if v == "" || len(v) > maxTagLength || !alphanumeric(v) {
			e.Add(field, "each tag must be 1-"+strconv.Itoa(maxTagLength)+" alphanumeric characters")
			return
		}
	}
}

// Err returns nil if no field failed, or an apierrors.ValidationFailed error carrying every recorded field failure
// otherwise.
func (e *Errors) Err(message string) error {
	if len(e.fields) == 0 {
		return nil
	}
	return apierrors.WithFields(message, e.fields)
}
