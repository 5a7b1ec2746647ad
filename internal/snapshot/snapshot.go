// Package snapshot assembles the per-cycle view of a workflow: the
// reduced workflow state, all job records, and a bounded window of recent
// events. A Snapshot is immutable once built and safe to hand to a
// concurrent renderer.
package snapshot

import (
	"context"
	"time"

	"github.com/mjstealey/workflow-monitor/internal/state"
	"github.com/mjstealey/workflow-monitor/internal/store"
)

// Snapshot is the result of one synthesis cycle.
type Snapshot struct {
	WorkflowState string // WORKFLOW_STARTED | WORKFLOW_TERMINATED | UNKNOWN
	ExitStatus    *int   // 0 = success, set only once terminated
	Start         *time.Time
	End           *time.Time
	Jobs          []state.JobRecord // catalog order
	RecentEvents  []store.RawEvent  // most recent first
	PollTime      time.Time         // capture instant for this cycle
}

// IsRunning reports whether the workflow's latest state is started.
func (s *Snapshot) IsRunning() bool {
	return s.WorkflowState == store.WorkflowStarted
}

// IsComplete reports whether the workflow's latest state is terminal.
func (s *Snapshot) IsComplete() bool {
	return s.WorkflowState == store.WorkflowTerminated
}

// Succeeded reports a terminated workflow with exit status zero.
func (s *Snapshot) Succeeded() bool {
	return s.IsComplete() && s.ExitStatus != nil && *s.ExitStatus == 0
}

// Failed reports a terminated workflow with a non-zero exit status.
func (s *Snapshot) Failed() bool {
	return s.IsComplete() && !s.Succeeded()
}

// Elapsed returns the wall-clock span of the workflow, measured to the
// capture instant while it is still running. Undefined before the first
// start event.
func (s *Snapshot) Elapsed() *time.Duration {
	if s.Start == nil {
		return nil
	}
	end := s.PollTime
	if s.End != nil {
		end = *s.End
	}
	d := end.Sub(*s.Start)
	return &d
}

// JobCounts returns the number of jobs per display state.
func (s *Snapshot) JobCounts() map[string]int {
	counts := make(map[string]int)
	for i := range s.Jobs {
		counts[s.Jobs[i].DisplayState]++
	}
	return counts
}

// ComputeJobs returns the compute jobs in catalog order.
func (s *Snapshot) ComputeJobs() []state.JobRecord {
	var jobs []state.JobRecord
	for i := range s.Jobs {
		if s.Jobs[i].IsCompute() {
			jobs = append(jobs, s.Jobs[i])
		}
	}
	return jobs
}

// InfraJobs returns the non-compute jobs in catalog order.
func (s *Snapshot) InfraJobs() []state.JobRecord {
	var jobs []state.JobRecord
	for i := range s.Jobs {
		if !s.Jobs[i].IsCompute() {
			jobs = append(jobs, s.Jobs[i])
		}
	}
	return jobs
}

// TotalJobs returns the catalog size.
func (s *Snapshot) TotalJobs() int { return len(s.Jobs) }

func (s *Snapshot) countState(states ...string) int {
	n := 0
	for i := range s.Jobs {
		for _, ds := range states {
			if s.Jobs[i].DisplayState == ds {
				n++
				break
			}
		}
	}
	return n
}

// DoneCount counts jobs that finished successfully.
func (s *Snapshot) DoneCount() int { return s.countState(state.DisplaySuccess) }

// FailedCount counts jobs whose latest state is a failure.
func (s *Snapshot) FailedCount() int { return s.countState(state.DisplayFailed) }

// RunningCount counts jobs currently executing.
func (s *Snapshot) RunningCount() int { return s.countState(state.DisplayRunning) }

// QueuedCount counts jobs that are active but not executing: queued plus
// pre/post script phases.
func (s *Snapshot) QueuedCount() int {
	return s.countState(state.DisplayQueued, state.DisplayPre, state.DisplayPost)
}

// UnsubmittedCount counts jobs with no recorded state yet.
func (s *Snapshot) UnsubmittedCount() int { return s.countState(state.DisplayUnsubmitted) }

// ProgressPct returns completion as a percentage in [0, 100]. An empty
// catalog reports 0.0 rather than dividing by zero.
func (s *Snapshot) ProgressPct() float64 {
	total := s.TotalJobs()
	if total == 0 {
		return 0.0
	}
	return 100.0 * float64(s.DoneCount()) / float64(total)
}

// Degraded returns the snapshot reported when the event database could
// not be read this cycle: unknown state, no time bounds, no jobs. It is
// indistinguishable from a workflow that has not started yet; callers
// retry on the next cycle.
func Degraded(now time.Time) Snapshot {
	return Snapshot{
		WorkflowState: state.StateUnknown,
		PollTime:      now,
	}
}

// Synthesize reads the event database once and assembles a Snapshot. Any
// read failure, such as the writer holding the lock mid-transaction,
// yields the degraded snapshot instead of an error: the failure leaves no
// residue and the next healthy cycle is authoritative.
func Synthesize(ctx context.Context, r store.EventReader, eventLimit int, now time.Time) Snapshot {
	wfRows, err := r.WorkflowStates(ctx)
	if err != nil {
		return Degraded(now)
	}
	catalog, err := r.JobCatalog(ctx)
	if err != nil {
		return Degraded(now)
	}
	events, err := r.JobEvents(ctx)
	if err != nil {
		return Degraded(now)
	}
	attempts, err := r.JobAttempts(ctx)
	if err != nil {
		return Degraded(now)
	}
	recent, err := r.RecentEvents(ctx, eventLimit)
	if err != nil {
		return Degraded(now)
	}

	wf := state.ReduceWorkflow(wfRows)

	byJob := make(map[int64][]store.RawEvent, len(catalog))
	for _, ev := range events {
		byJob[ev.JobID] = append(byJob[ev.JobID], ev)
	}
	attemptByJob := make(map[int64]*store.AttemptRow, len(attempts))
	for i := range attempts {
		attemptByJob[attempts[i].JobID] = &attempts[i]
	}

	jobs := make([]state.JobRecord, 0, len(catalog))
	for _, entry := range catalog {
		jobs = append(jobs, state.ReduceJob(entry, byJob[entry.JobID], attemptByJob[entry.JobID], now))
	}

	return Snapshot{
		WorkflowState: wf.State,
		ExitStatus:    wf.ExitStatus,
		Start:         wf.Start,
		End:           wf.End,
		Jobs:          jobs,
		RecentEvents:  recent,
		PollTime:      now,
	}
}
