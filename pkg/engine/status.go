package engine

import "fmt"

// RunStatus represents the overall status of an orchestration run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every stage completed and the record was persisted.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run aborted on a fatal error.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// ResourceAction describes what the provisioner did with a resource.
type ResourceAction string

const (
	// ResourceReused indicates an override address was adopted.
	ResourceReused ResourceAction = "reused"

	// ResourceDeployed indicates the resource was created during this run.
	ResourceDeployed ResourceAction = "deployed"

	// ResourceSkipped indicates an optional resource that was not requested.
	ResourceSkipped ResourceAction = "skipped"
)

// PhaseOutcome is the result of one initialization phase.
type PhaseOutcome string

const (
	// PhaseSkipped indicates the phase had no input and was not attempted.
	PhaseSkipped PhaseOutcome = "skipped"

	// PhaseApplied indicates the phase call succeeded during this run.
	PhaseApplied PhaseOutcome = "applied"

	// PhaseAlreadyApplied indicates the phase was rejected, recorded as done,
	// or its precondition showed it had already run.
	PhaseAlreadyApplied PhaseOutcome = "already-applied"
)

// AdminOutcome is the result of ensuring a proxy admin.
type AdminOutcome string

const (
	// AdminUnchanged indicates the probed admin already matched.
	AdminUnchanged AdminOutcome = "unchanged"

	// AdminChanged indicates the probed admin differed and was changed.
	AdminChanged AdminOutcome = "changed"

	// AdminAssumedAndSet indicates the probe was unavailable and the change
	// call was issued unconditionally and accepted.
	AdminAssumedAndSet AdminOutcome = "assumed-and-set"

	// AdminNotApplicable indicates the probe was unavailable and the
	// unconditional change call was rejected.
	AdminNotApplicable AdminOutcome = "not-applicable"
)
