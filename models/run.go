package models

import "time"

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	RunPending     RunStatus = "PENDING"
	RunCrawling    RunStatus = "CRAWLING"
	RunNormalizing RunStatus = "NORMALIZING"
	RunValidating  RunStatus = "VALIDATING"
	RunAggregating RunStatus = "AGGREGATING"
	RunDone        RunStatus = "DONE"
	RunFailed      RunStatus = "FAILED"
)

// transitions holds the legal state machine edges. FAILED is reachable from
// CRAWLING only: later stages degrade output instead of failing the run.
var transitions = map[RunStatus][]RunStatus{
	RunPending:     {RunCrawling},
	RunCrawling:    {RunNormalizing, RunFailed},
	RunNormalizing: {RunValidating},
	RunValidating:  {RunAggregating},
	RunAggregating: {RunDone},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s RunStatus) CanTransition(next RunStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the run has reached an end state.
func (s RunStatus) Terminal() bool {
	return s == RunDone || s == RunFailed
}

// BranchFailure records one branch whose traversal was aborted after the
// retry budget was exhausted. Other branches continue.
type BranchFailure struct {
	Branch   string `json:"branch"`
	URL      string `json:"url"`
	Error    string `json:"error"`
	Snapshot string `json:"snapshot,omitempty"`
}

// Stage names the pipeline stages whose artifacts are exposed to the
// orchestrator by stable key.
type Stage string

const (
	StageRaw        Stage = "raw"
	StageCanonical  Stage = "canonical"
	StageValidation Stage = "validation"
	StageSummary    Stage = "summary"
)

// Run is the record of one end-to-end pipeline execution for one source.
// Artifacts maps each completed stage to the location of its output.
type Run struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	Status     RunStatus        `json:"status"`
	Partial    bool             `json:"partial,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Artifacts  map[Stage]string `json:"artifacts"`
	Failures   []BranchFailure  `json:"failures,omitempty"`

	RawCount         int `json:"raw_count"`
	DroppedRaw       int `json:"dropped_raw"`
	NormalizedCount  int `json:"normalized_count"`
	DroppedNormalize int `json:"dropped_normalize"`
	AcceptedCount    int `json:"accepted_count"`
	RejectedCount    int `json:"rejected_count"`
}

// NewRun returns a pending Run for the given source.
func NewRun(id, source string) *Run {
	return &Run{
		ID:        id,
		Source:    source,
		Status:    RunPending,
		StartedAt: time.Now().UTC(),
		Artifacts: make(map[Stage]string),
	}
}

// Key returns the stable identifier used for stage-output handoff.
func (r *Run) Key() string {
	return r.Source + "_" + r.ID
}
