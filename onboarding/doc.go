// Package onboarding drives a provider through the four-stage qualification flow:
// Qualification, SubjectSelection, SubjectTest, Results.
//
// Each stage is its own type carrying only the data valid at that stage, so a
// SubjectTest always has a subject and an attempt, and a Results stage always has a
// scored result. The [Wizard] owns the current stage and the test deadline timer.
//
// Persistence happens at exactly two points, both through [Deps]: the qualification
// draft when it is accepted, and the expertise commit when a passed result is
// finished. Raw answers are never persisted.
//
// # What this package must NOT do
//
//   - Import goOnboard or the identity service.
//   - Enforce a retry cooldown after a failed test; that policy belongs to the service.
//   - Allow back navigation out of SubjectTest or Results.
package onboarding
