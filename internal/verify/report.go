package verify

import (
	"fmt"
	"time"

	"uiverify/internal/config"
)

// Stage names one step of a scenario; failures are reported against it.
type Stage string

const (
	StageSetup            Stage = "setup"
	StageLaunch           Stage = "launch"
	StageNewPage          Stage = "new-page"
	StageNavigate         Stage = "navigate"
	StageOpenDashboard    Stage = "open-dashboard"
	StageDashboardHeading Stage = "dashboard-heading"
	StageOpenDialog       Stage = "open-dialog"
	StageDialogHeading    Stage = "dialog-heading"
	StageCaptureLight     Stage = "capture-light"
	StageToggleTheme      Stage = "toggle-theme"
	StageThemeSettle      Stage = "theme-settle"
	StageCaptureDark      Stage = "capture-dark"
)

// Status is the outcome of a run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// ArtifactKind tells what state an artifact is evidence of.
type ArtifactKind string

const (
	KindLight ArtifactKind = "light"
	KindDark  ArtifactKind = "dark"
	KindError ArtifactKind = "error"
)

// Artifact is a file written during a run.
type Artifact struct {
	Name string       `json:"name"`
	Path string       `json:"path"`
	Kind ArtifactKind `json:"kind"`
}

// Failure is a verification failure at a specific stage.
type Failure struct {
	Stage Stage
	Cause error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("verification failed at %s: %v", f.Stage, f.Cause)
}

func (f *Failure) Unwrap() error { return f.Cause }

// StepRecord is a completed or failed step.
type StepRecord struct {
	Stage   Stage         `json:"stage"`
	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// Report is the tagged result of a run: either passed with its artifacts, or
// failed with the stage and cause. Callers decide the exit policy.
type Report struct {
	Scenario   config.Scenario
	Status     Status
	Artifacts  []Artifact
	Failure    *Failure
	Steps      []StepRecord
	StartedAt  time.Time
	FinishedAt time.Time

	ConsoleMessages int64
	ConsoleDropped  int64
}

// Err returns the failure, or nil if the run passed.
func (r Report) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Passed reports whether every step succeeded.
func (r Report) Passed() bool { return r.Status == StatusPassed }

// Artifact returns the first artifact of the given kind.
func (r Report) Artifact(kind ArtifactKind) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

func (r *Report) fail(stage Stage, err error) {
	if r.Failure != nil {
		return
	}
	r.Failure = &Failure{Stage: stage, Cause: err}
}
