package onboarding

// StageKind names a wizard stage.
type StageKind uint8

const (
	StageQualification StageKind = iota
	StageSubjectSelection
	StageSubjectTest
	StageResults
)

func (k StageKind) String() string {
	switch k {
	case StageQualification:
		return "qualification"
	case StageSubjectSelection:
		return "subject_selection"
	case StageSubjectTest:
		return "subject_test"
	case StageResults:
		return "results"
	default:
		return "unknown"
	}
}

// Stage is implemented by exactly the four stage types below.
type Stage interface {
	Kind() StageKind
}

// Qualification collects the draft. Errors holds the last rejected submission.
type Qualification struct {
	Draft  Draft
	Errors ValidationErrors
}

// SubjectSelection follows an accepted draft.
type SubjectSelection struct {
	Draft Draft
}

// SubjectTest runs one attempt for the first selected subject.
type SubjectTest struct {
	Selected []Subject
	Attempt  *Attempt
}

// Subject returns the subject under test.
func (s SubjectTest) Subject() Subject {
	return s.Attempt.Subject
}

// Results holds the scored attempt.
type Results struct {
	Selected []Subject
	Result   Result
	Finished bool
}

func (Qualification) Kind() StageKind    { return StageQualification }
func (SubjectSelection) Kind() StageKind { return StageSubjectSelection }
func (SubjectTest) Kind() StageKind      { return StageSubjectTest }
func (Results) Kind() StageKind          { return StageResults }
