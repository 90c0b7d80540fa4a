package flows

// Deps groups flow dependency sets. The root engine builds this once and delegates
// each operation to the matching flow function.
type Deps struct {
	SignIn  SignInDeps
	Restore RestoreDeps
	OTC     OTCDeps
	Profile ProfileDeps
}
