package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTitleLength is the longest accepted title, in characters.
	MaxTitleLength = 50
	// MaxDescriptionLength is the longest accepted description, in characters.
	MaxDescriptionLength = 250
)

// ValidationError reports a single form field that failed a business rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks the user editable fields of t. It returns nil or a joined
// error holding one *ValidationError per offending field.
func Validate(t Task) error {
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}

	title := strings.TrimSpace(t.Title)
	switch {
	case title == "":
		fail("title", "must not be empty")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		fail("title", fmt.Sprintf("must be at most %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(strings.TrimSpace(t.Description)) > MaxDescriptionLength {
		fail("description", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
	}
	if t.DueDate.IsZero() {
		fail("due_date", "must not be empty")
	}
	if !t.Importance.Valid() {
		fail("importance", fmt.Sprintf("unknown value %q", t.Importance))
	}
	if !t.Status.Valid() {
		fail("status", fmt.Sprintf("unknown value %q", t.Status))
	}
	return errors.Join(errs...)
}

// FieldErrors flattens err into its field level validation failures.
func FieldErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*ValidationError
		for _, e := range joined.Unwrap() {
			out = append(out, FieldErrors(e)...)
		}
		return out
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return []*ValidationError{ve}
	}
	return nil
}
