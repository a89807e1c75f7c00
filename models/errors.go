package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every error returned by the category core matches exactly one of
// these through errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrRecordNotFound = errors.New("record not found")
	ErrConflict       = errors.New("conflict")
	ErrConsistency    = errors.New("consistency violation")
)

var (
	ErrInvalidCategoryName        = errors.New("invalid category name")
	ErrInvalidCategoryDescription = errors.New("invalid category description")
	ErrInvalidCategorySlug        = errors.New("invalid category slug")
	ErrInvalidCategoryColor       = errors.New("invalid category color")
	ErrInvalidCategoryIcon        = errors.New("invalid category icon")
	ErrInvalidParentID            = errors.New("invalid parent ID")
	ErrCategoryCycle              = errors.New("category cannot be its own ancestor")
	ErrNegativePostsCount         = errors.New("posts count cannot be negative")

	ErrSlugTaken          = errors.New("slug already in use")
	ErrSlugSpaceExhausted = errors.New("no free slug suffix left")
	ErrCategoryInUse      = errors.New("category still has published posts")

	ErrCategoryNotFound = errors.New("category not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrInvalidPostTitle = errors.New("invalid post title")
	ErrInvalidPostState = errors.New("invalid post state")

	ErrDatabaseCredentialNotConfigured = errors.New("database credentials not configured")
)

// Error is the envelope returned to callers of the category core. Kind is one of
// ErrValidation, ErrRecordNotFound, ErrConflict or ErrConsistency; Err carries
// the specific cause.
type Error struct {
	Kind   error
	Op     string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports a malformed create or update payload.
func NewValidationError(op string, fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Fields: fields}
}

// NewValidationCause reports a payload rejected for a single specific reason.
func NewValidationCause(op string, cause error) *Error {
	return &Error{Kind: ErrValidation, Op: op, Err: cause}
}

func NewNotFoundError(op string, cause error) *Error {
	return &Error{Kind: ErrRecordNotFound, Op: op, Err: cause}
}

func NewConflictError(op string, cause error) *Error {
	return &Error{Kind: ErrConflict, Op: op, Err: cause}
}

// NewConsistencyError reports a counter adjustment that could not be committed
// together with the membership change that triggered it.
func NewConsistencyError(op string, cause error) *Error {
	return &Error{Kind: ErrConsistency, Op: op, Err: cause}
}
