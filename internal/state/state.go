// Package state reduces raw transition events into the latest known state
// of each job and of the workflow as a whole. Reductions are pure: given
// the same rows and capture instant they always produce the same result.
package state

import (
	"time"

	"github.com/mjstealey/workflow-monitor/internal/store"
)

// Display states: the small user-facing taxonomy raw states collapse into.
const (
	DisplaySuccess     = "SUCCESS"
	DisplayFailed      = "FAILED"
	DisplayRunning     = "RUNNING"
	DisplayQueued      = "QUEUED"
	DisplayPre         = "PRE"
	DisplayPost        = "POST"
	DisplayDone        = "DONE"
	DisplayHeld        = "HELD"
	DisplayUnsubmitted = "UNSUBMITTED"
)

var displayMap = map[string]string{
	"POST_SCRIPT_SUCCESS":    DisplaySuccess,
	"JOB_SUCCESS":            DisplaySuccess,
	"POST_SCRIPT_FAILURE":    DisplayFailed,
	"JOB_FAILURE":            DisplayFailed,
	"EXECUTE":                DisplayRunning,
	"SUBMIT":                 DisplayQueued,
	"PRE_SCRIPT_STARTED":     DisplayPre,
	"PRE_SCRIPT_SUCCESS":     DisplayPre,
	"POST_SCRIPT_STARTED":    DisplayPost,
	"POST_SCRIPT_TERMINATED": DisplayPost,
	"JOB_TERMINATED":         DisplayDone,
	"JOB_HELD":               DisplayHeld,
}

// DisplayState collapses a raw job state into the display taxonomy. A nil
// raw state means the job was never submitted; unmapped states pass
// through unchanged.
func DisplayState(raw *string) string {
	if raw == nil {
		return DisplayUnsubmitted
	}
	if mapped, ok := displayMap[*raw]; ok {
		return mapped
	}
	return *raw
}

// JobRecord is the reduced view of one job: its latest state plus derived
// fields. Records are rebuilt from scratch each poll; the event log, not
// the record, is the source of truth.
type JobRecord struct {
	JobID      int64
	Name       string
	Type       string
	RawState   *string
	ExitCode   *int
	Site       *string
	SubmitTime *time.Time
	StartTime  *time.Time
	EndTime    *time.Time

	// DisplayState and Duration are fixed at reduction time against the
	// cycle's capture instant so one snapshot stays internally consistent.
	DisplayState string
	Duration     *time.Duration
}

// IsCompute reports whether the job is a compute job rather than
// infrastructure (staging, cleanup, registration and the like).
func (j *JobRecord) IsCompute() bool {
	return j.Type == store.TypeCompute
}

func isTerminal(state string) bool {
	switch state {
	case store.StateJobTerminated, store.StateJobSuccess, store.StateJobFailure:
		return true
	}
	return false
}

// ReduceJob folds a job's transition events into a JobRecord.
//
// Latest state: maximum timestamp, ties broken by maximum sequence number.
// SubmitTime: earliest SUBMIT. StartTime: earliest EXECUTE, so a retried
// job's duration spans all attempts. EndTime: latest terminal event, so
// the final attempt's outcome wins.
func ReduceJob(entry store.CatalogEntry, events []store.RawEvent, attempt *store.AttemptRow, now time.Time) JobRecord {
	rec := JobRecord{
		JobID: entry.JobID,
		Name:  entry.Name,
		Type:  entry.Type,
	}
	if attempt != nil {
		rec.ExitCode = attempt.ExitCode
		rec.Site = attempt.Site
	}

	var latest *store.RawEvent
	for i := range events {
		ev := &events[i]
		if ev.JobID != entry.JobID {
			continue
		}

		if latest == nil || ev.Timestamp.After(latest.Timestamp) ||
			(ev.Timestamp.Equal(latest.Timestamp) && ev.Seq > latest.Seq) {
			latest = ev
		}

		switch {
		case ev.State == store.StateSubmit:
			if rec.SubmitTime == nil || ev.Timestamp.Before(*rec.SubmitTime) {
				t := ev.Timestamp
				rec.SubmitTime = &t
			}
		case ev.State == store.StateExecute:
			if rec.StartTime == nil || ev.Timestamp.Before(*rec.StartTime) {
				t := ev.Timestamp
				rec.StartTime = &t
			}
		case isTerminal(ev.State):
			if rec.EndTime == nil || ev.Timestamp.After(*rec.EndTime) {
				t := ev.Timestamp
				rec.EndTime = &t
			}
		}
	}

	if latest != nil {
		s := latest.State
		rec.RawState = &s
	}
	rec.DisplayState = DisplayState(rec.RawState)

	switch {
	case rec.StartTime != nil && rec.EndTime != nil:
		d := rec.EndTime.Sub(*rec.StartTime)
		rec.Duration = &d
	case rec.StartTime != nil && rec.DisplayState == DisplayRunning:
		d := now.Sub(*rec.StartTime)
		rec.Duration = &d
	}

	return rec
}

// WorkflowStatus is the reduced workflow-level view.
type WorkflowStatus struct {
	State      string // WORKFLOW_STARTED | WORKFLOW_TERMINATED | UNKNOWN
	ExitStatus *int
	Start      *time.Time
	End        *time.Time
}

// StateUnknown is reported when the log holds no workflow-level rows, or
// when the read degraded.
const StateUnknown = "UNKNOWN"

// ReduceWorkflow folds the ascending workflow-level transitions. The
// latest row wins for the current state; a later start or termination
// supersedes an earlier one, supporting restarted workflows.
func ReduceWorkflow(rows []store.WorkflowStateRow) WorkflowStatus {
	status := WorkflowStatus{State: StateUnknown}
	if len(rows) == 0 {
		return status
	}

	for i := range rows {
		row := &rows[i]
		switch row.State {
		case store.WorkflowStarted:
			t := row.Timestamp
			status.Start = &t
		case store.WorkflowTerminated:
			t := row.Timestamp
			status.End = &t
		}
	}

	last := rows[len(rows)-1]
	status.State = last.State
	status.ExitStatus = last.Status
	return status
}
