package onboarding

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// BioMinLength and BioMaxLength bound the sanitized bio in characters.
	BioMinLength = 100
	BioMaxLength = 500
)

var textPolicy = bluemonday.StrictPolicy()

// Draft is the qualification form.
type Draft struct {
	Bio        string `json:"bio"`
	Education  string `json:"education"`
	Experience string `json:"experience"`
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned when a draft is rejected. The wizard stage is unchanged.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "qualification draft invalid"
	}
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "qualification draft invalid: " + strings.Join(parts, "; ")
}

// Field returns the error for field, if any.
func (v ValidationErrors) Field(name string) (FieldError, bool) {
	for _, fe := range v {
		if fe.Field == name {
			return fe, true
		}
	}
	return FieldError{}, false
}

// Sanitized strips markup and surrounding whitespace from every field. The result is
// HTML-escaped text, and sanitizing it again returns it unchanged.
func (d Draft) Sanitized() Draft {
	return Draft{
		Bio:        sanitizeText(d.Bio),
		Education:  sanitizeText(d.Education),
		Experience: sanitizeText(d.Experience),
	}
}

func sanitizeText(s string) string {
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// Validate checks the sanitized draft, which is exactly the text that gets persisted.
// Lengths count the escaped form. It returns nil when the draft is acceptable.
func (d Draft) Validate() ValidationErrors {
	d = d.Sanitized()

	var errs ValidationErrors
	switch n := utf8.RuneCountInString(d.Bio); {
	case n < BioMinLength:
		errs = append(errs, FieldError{Field: "bio", Message: "bio must be at least 100 characters"})
	case n > BioMaxLength:
		errs = append(errs, FieldError{Field: "bio", Message: "bio must be at most 500 characters"})
	}
	if d.Education == "" {
		errs = append(errs, FieldError{Field: "education", Message: "education is required"})
	}
	if d.Experience == "" {
		errs = append(errs, FieldError{Field: "experience", Message: "experience is required"})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
