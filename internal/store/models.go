// Package store contains the event-database layer for workflow-monitor.
package store

import "time"

// CatalogEntry is one row of the job catalog. The catalog is written once
// at planning time; Name is stable for the workflow's lifetime and is the
// join key against the live HTCondor queue.
type CatalogEntry struct {
	JobID int64
	Name  string
	Type  string
}

// Job types as recorded in the catalog.
const (
	TypeCompute      = "compute"
	TypeStageIn      = "stage-in-tx"
	TypeStageOut     = "stage-out-tx"
	TypeCreateDir    = "create-dir"
	TypeStageWorker  = "stage-worker"
	TypeCleanup      = "cleanup"
	TypeRegistration = "registration"
)

// RawEvent is one append-only job state transition. Multiple events may
// share a timestamp; Seq is the writer-assigned tie-break.
type RawEvent struct {
	JobID     int64
	JobName   string
	JobType   string
	State     string
	Timestamp time.Time
	Seq       int64
}

// AttemptRow carries the exit code and site of a job's latest submission
// attempt.
type AttemptRow struct {
	JobID    int64
	ExitCode *int
	Site     *string
}

// WorkflowStateRow is one workflow-level state transition.
type WorkflowStateRow struct {
	State     string
	Timestamp time.Time
	Status    *int
}

// Workflow-level states recorded by the monitor daemon.
const (
	WorkflowStarted    = "WORKFLOW_STARTED"
	WorkflowTerminated = "WORKFLOW_TERMINATED"
)

// Raw job states referenced by the reducer.
const (
	StateSubmit        = "SUBMIT"
	StateExecute       = "EXECUTE"
	StateJobTerminated = "JOB_TERMINATED"
	StateJobSuccess    = "JOB_SUCCESS"
	StateJobFailure    = "JOB_FAILURE"
)
