package page

// State is the build lifecycle state of a page.
type State string

const (
	StateIdle       State = "idle"
	StateStaging    State = "staging"
	StateExecuting  State = "executing"
	StatePublishing State = "publishing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends a build.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Phase returns the metrics and log phase name of a working state.
func (s State) Phase() string {
	return string(s)
}
