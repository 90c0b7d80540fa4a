// Package scheduler owns named timers for the onboarding runtime: the OTC expiry
// and resend countdowns and the qualification test deadline.
//
// # Time base
//
// Every timer is scheduled against the scheduler's own clock. Timers never read the
// wall clock themselves; the clock moves only through [Scheduler.Advance],
// [Scheduler.AdvanceTo], or the ticker loop in [Scheduler.Run]. Two timers armed at
// the same instant with the same interval therefore fire on the same advance and
// cannot drift relative to each other.
//
// # Teardown
//
// A timer is identified by name. Re-registering a name replaces the previous timer,
// [Scheduler.Cancel] and [Scheduler.CancelPrefix] remove timers, and [Scheduler.Close]
// removes all of them. No callback runs after its timer has been cancelled.
//
// # What this package must NOT do
//
//   - Import goOnboard or any sibling package.
//   - Invoke callbacks while holding the scheduler lock.
package scheduler
