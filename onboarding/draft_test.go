package onboarding

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func validBio() string {
	return strings.Repeat("Experienced tutor. ", 6)
}

func TestDraftValidateAcceptsBounds(t *testing.T) {
	for _, n := range []int{BioMinLength, BioMaxLength} {
		d := Draft{Bio: strings.Repeat("é", n), Education: "BSc", Experience: "5 years"}
		if errs := d.Validate(); errs != nil {
			t.Fatalf("expected bio of %d runes to pass, got %v", n, errs)
		}
	}
}

func TestDraftValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		draft Draft
		field string
	}{
		{"short bio", Draft{Bio: strings.Repeat("a", BioMinLength-1), Education: "BSc", Experience: "x"}, "bio"},
		{"long bio", Draft{Bio: strings.Repeat("a", BioMaxLength+1), Education: "BSc", Experience: "x"}, "bio"},
		{"padded bio", Draft{Bio: "   " + strings.Repeat("a", BioMinLength-1) + "   ", Education: "BSc", Experience: "x"}, "bio"},
		{"missing education", Draft{Bio: validBio(), Education: "  ", Experience: "x"}, "education"},
		{"missing experience", Draft{Bio: validBio(), Education: "BSc"}, "experience"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := tc.draft.Validate()
			if _, ok := errs.Field(tc.field); !ok {
				t.Fatalf("expected %s error, got %v", tc.field, errs)
			}
		})
	}
}

func TestDraftSanitizedStripsMarkup(t *testing.T) {
	d := Draft{
		Bio:        "<b>Hello</b> <script>alert(1)</script>world",
		Education:  "  <i>MSc</i> & PhD ",
		Experience: "plain",
	}.Sanitized()

	if strings.Contains(d.Bio, "<") || strings.Contains(d.Bio, "alert") {
		t.Fatalf("expected markup stripped, got %q", d.Bio)
	}
	if d.Education != "MSc &amp; PhD" {
		t.Fatalf("expected escaped text education, got %q", d.Education)
	}
}

func TestDraftSanitizedKeepsEscapedMarkupInert(t *testing.T) {
	d := Draft{Bio: "&lt;script&gt;alert(1)&lt;/script&gt;MSc"}.Sanitized()

	if strings.Contains(d.Bio, "<") {
		t.Fatalf("escaped markup came back live: %q", d.Bio)
	}
	if again := d.Sanitized(); again != d {
		t.Fatalf("sanitizing twice changed the draft: %q -> %q", d.Bio, again.Bio)
	}
}

func TestDraftValidateMeasuresPersistedText(t *testing.T) {
	// 450 letters plus 20 escaped tags are 630 runes once stored.
	raw := Draft{
		Bio:        strings.Repeat("a", 450) + strings.Repeat("&lt;b&gt;", 20),
		Education:  "BSc",
		Experience: "x",
	}
	if _, ok := raw.Validate().Field("bio"); !ok {
		t.Fatalf("expected bio over the limit once escaped, got %d runes", utf8.RuneCountInString(raw.Sanitized().Bio))
	}

	clean := Draft{Bio: validBio(), Education: "BSc &amp; PhD", Experience: "x"}.Sanitized()
	if errs := clean.Validate(); errs != nil {
		t.Fatalf("expected sanitized draft to stay valid, got %v", errs)
	}
	if n := utf8.RuneCountInString(clean.Bio); n < BioMinLength || n > BioMaxLength {
		t.Fatalf("persisted bio out of bounds: %d runes", n)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := Draft{}.Validate()
	if len(errs) != 3 {
		t.Fatalf("expected three field errors, got %v", errs)
	}
	if !strings.Contains(errs.Error(), "education: education is required") {
		t.Fatalf("unexpected message: %s", errs.Error())
	}
}
