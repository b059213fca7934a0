package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goalguild/core-service/internal/apierrors"
)

func TestSanitizeStripsTagsAndControlChars(t *testing.T) {
	t.Parallel()
	got := Sanitize("  <script>alert(1)</script>hello\x00world  ")
	want := "helloworld"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitizePreservesNewlinesAndTabs(t *testing.T) {
	t.Parallel()
	got := Sanitize("line one\nline two\ttabbed")
	want := "line one\nline two\ttabbed"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

func TestErrorsRequireRejectsBlank(t *testing.T) {
	t.Parallel()
	var e Errors
	e.Require("title", "   ")
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for a blank required field")
	}
}

func TestErrorsRequireAllowsNonBlank(t *testing.T) {
	t.Parallel()
	var e Errors
	e.Require("title", "a quest")
	if err := e.Err("validation failed"); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestErrorsUUIDRejectsMalformed(t *testing.T) {
	t.Parallel()
	var e Errors
	e.UUID("goalId", "not-a-uuid")
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for a malformed UUID")
	}
}

func TestErrorsUUIDAcceptsValid(t *testing.T) {
	t.Parallel()
	var e Errors
	e.UUID("goalId", uuid.New().String())
	if err := e.Err("validation failed"); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestErrorsOptionalUUIDSkipsEmpty(t *testing.T) {
	t.Parallel()
	var e Errors
	e.OptionalUUID("templateId", "")
	if err := e.Err("validation failed"); err != nil {
		t.Errorf("Err() = %v, want nil for an empty optional field", err)
	}
}

func TestErrorsEnumRejectsUnknownValue(t *testing.T) {
	t.Parallel()
	var e Errors
	e.Enum("tier", "enterprise", "default", "premium", "admin")
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for a value outside the declared enum")
	}
}

func TestErrorsIntRangeRejectsOutOfBounds(t *testing.T) {
	t.Parallel()
	var e Errors
	e.IntRange("rewardXp", 1500, 0, 1000)
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for rewardXp above the max")
	}
}

func TestErrorsIntRangeAcceptsBoundaryValues(t *testing.T) {
	t.Parallel()
	var e Errors
	e.IntRange("rewardXp", 0, 0, 1000)
	e.IntRange("rewardXp", 1000, 0, 1000)
	if err := e.Err("validation failed"); err != nil {
		t.Errorf("Err() = %v, want nil (0 and 1000 are both inclusive bounds)", err)
	}
}

func TestErrorsTimeRangeRejectsTooSoon(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	var e Errors
	e.TimeRange("dueAt", now.Add(30*time.Minute), now.Add(time.Hour), now.AddDate(1, 0, 0))
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for a deadline sooner than now+1h")
	}
}

func TestErrorsTimeRangeRejectsTooFar(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	var e Errors
	e.TimeRange("dueAt", now.AddDate(2, 0, 0), now.Add(time.Hour), now.AddDate(1, 0, 0))
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for a deadline beyond now+1y")
	}
}

func TestErrorsTagsRejectsTooMany(t *testing.T) {
	t.Parallel()
	tags := make([]string, 11)
	for i := range tags {
		tags[i] = "tag"
	}
	var e Errors
	e.Tags("tags", tags)
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for more than 10 tags")
	}
}

func TestErrorsTagsRejectsTooLongEntry(t *testing.T) {
	t.Parallel()
	var e Errors
	e.Tags("tags", []string{"thisTagIsWayTooLongToBeValid"})
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for a tag longer than 20 characters")
	}
}

func TestErrorsTagsRejectsNonAlphanumeric(t *testing.T) {
	t.Parallel()
	var e Errors
	e.Tags("tags", []string{"has-a-dash"})
	if err := e.Err("validation failed"); err == nil {
		t.Fatal("Err() = nil, want an error for a non-alphanumeric tag")
	}
}

func TestErrorsTagsAcceptsValidSet(t *testing.T) {
	t.Parallel()
	var e Errors
	e.Tags("tags", []string{"urgent", "q3", "backend"})
	if err := e.Err("validation failed"); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestErrCollectsMultipleFieldFailures(t *testing.T) {
	t.Parallel()
	var e Errors
	e.Require("title", "")
	e.IntRange("rewardXp", -5, 0, 1000)
	err := e.Err("quest is invalid")

	var apiErr *apierrors.Error
	if !asAPIError(err, &apiErr) {
		t.Fatalf("Err() did not return an *apierrors.Error: %v", err)
	}
	if apiErr.Kind != apierrors.ValidationFailed {
		t.Errorf("Kind = %v, want %v", apiErr.Kind, apierrors.ValidationFailed)
	}
	if len(apiErr.Fields) != 2 {
		t.Errorf("Fields has %d entries, want 2 (one per failed check)", len(apiErr.Fields))
	}
}

func asAPIError(err error, target **apierrors.Error) bool {
	apiErr, ok := err.(*apierrors.Error)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
