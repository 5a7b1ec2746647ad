package state

import (
	"testing"
	"time"

	"github.com/mjstealey/workflow-monitor/internal/store"
)

func strptr(s string) *string { return &s }

func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func ev(jobID int64, state string, sec int64, seq int64) store.RawEvent {
	return store.RawEvent{
		JobID:     jobID,
		JobName:   "job",
		JobType:   "compute",
		State:     state,
		Timestamp: at(sec),
		Seq:       seq,
	}
}

func TestDisplayState_Mapping(t *testing.T) {
	cases := []struct {
		raw  *string
		want string
	}{
		{strptr("JOB_SUCCESS"), DisplaySuccess},
		{strptr("POST_SCRIPT_SUCCESS"), DisplaySuccess},
		{strptr("JOB_FAILURE"), DisplayFailed},
		{strptr("POST_SCRIPT_FAILURE"), DisplayFailed},
		{strptr("EXECUTE"), DisplayRunning},
		{strptr("SUBMIT"), DisplayQueued},
		{strptr("PRE_SCRIPT_STARTED"), DisplayPre},
		{strptr("PRE_SCRIPT_SUCCESS"), DisplayPre},
		{strptr("POST_SCRIPT_STARTED"), DisplayPost},
		{strptr("POST_SCRIPT_TERMINATED"), DisplayPost},
		{strptr("JOB_TERMINATED"), DisplayDone},
		{strptr("JOB_HELD"), DisplayHeld},
		{nil, DisplayUnsubmitted},
		{strptr("GRID_SUBMIT"), "GRID_SUBMIT"}, // unmapped states pass through
	}

	for _, tc := range cases {
		got := DisplayState(tc.raw)
		if got != tc.want {
			t.Errorf("DisplayState(%v) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestReduceJob_LatestStateWins(t *testing.T) {
	entry := store.CatalogEntry{JobID: 1, Name: "preprocess_ID0000001", Type: "compute"}
	events := []store.RawEvent{
		ev(1, "SUBMIT", 0, 1),
		ev(1, "EXECUTE", 2, 2),
		ev(1, "JOB_SUCCESS", 10, 3),
	}

	rec := ReduceJob(entry, events, nil, at(20))
	if rec.RawState == nil || *rec.RawState != "JOB_SUCCESS" {
		t.Fatalf("raw state: got %v", rec.RawState)
	}
	if rec.DisplayState != DisplaySuccess {
		t.Errorf("display state: got %q", rec.DisplayState)
	}
	if rec.SubmitTime == nil || !rec.SubmitTime.Equal(at(0)) {
		t.Errorf("submit time: got %v", rec.SubmitTime)
	}
	if rec.Duration == nil || *rec.Duration != 8*time.Second {
		t.Errorf("duration: got %v, want 8s", rec.Duration)
	}
}

func TestReduceJob_TieBrokenBySequence(t *testing.T) {
	entry := store.CatalogEntry{JobID: 1, Name: "j", Type: "compute"}
	// Same timestamp, different sequence numbers, fed in both orders.
	forward := []store.RawEvent{
		ev(1, "JOB_TERMINATED", 10, 7),
		ev(1, "POST_SCRIPT_STARTED", 10, 8),
	}
	backward := []store.RawEvent{forward[1], forward[0]}

	for _, events := range [][]store.RawEvent{forward, backward} {
		rec := ReduceJob(entry, events, nil, at(20))
		if rec.RawState == nil || *rec.RawState != "POST_SCRIPT_STARTED" {
			t.Errorf("higher sequence should win, got %v", rec.RawState)
		}
	}
}

func TestReduceJob_FirstStartLastEnd(t *testing.T) {
	entry := store.CatalogEntry{JobID: 1, Name: "j", Type: "compute"}
	// Job retried: two execution attempts, two terminal events.
	events := []store.RawEvent{
		ev(1, "EXECUTE", 5, 2),
		ev(1, "JOB_FAILURE", 20, 3),
		ev(1, "EXECUTE", 12, 5),
		ev(1, "JOB_SUCCESS", 35, 6),
	}

	rec := ReduceJob(entry, events, nil, at(40))
	if rec.StartTime == nil || !rec.StartTime.Equal(at(5)) {
		t.Errorf("start time: got %v, want t=5", rec.StartTime)
	}
	if rec.EndTime == nil || !rec.EndTime.Equal(at(35)) {
		t.Errorf("end time: got %v, want t=35", rec.EndTime)
	}
	// Duration spans all attempts.
	if rec.Duration == nil || *rec.Duration != 30*time.Second {
		t.Errorf("duration: got %v, want 30s", rec.Duration)
	}
}

func TestReduceJob_RunningUsesCaptureInstant(t *testing.T) {
	entry := store.CatalogEntry{JobID: 1, Name: "j", Type: "compute"}
	events := []store.RawEvent{
		ev(1, "SUBMIT", 0, 1),
		ev(1, "EXECUTE", 2, 2),
	}

	rec := ReduceJob(entry, events, nil, at(9))
	if rec.DisplayState != DisplayRunning {
		t.Fatalf("display state: got %q", rec.DisplayState)
	}
	if rec.Duration == nil || *rec.Duration != 7*time.Second {
		t.Errorf("duration: got %v, want 7s", rec.Duration)
	}
	if rec.EndTime != nil {
		t.Errorf("running job must not have an end time")
	}
}

func TestReduceJob_SubmitOnly(t *testing.T) {
	entry := store.CatalogEntry{JobID: 2, Name: "B", Type: "compute"}
	events := []store.RawEvent{ev(2, "SUBMIT", 0, 1)}

	rec := ReduceJob(entry, events, nil, at(5))
	if rec.DisplayState != DisplayQueued {
		t.Errorf("display state: got %q, want QUEUED", rec.DisplayState)
	}
	if rec.StartTime != nil {
		t.Errorf("start time should be unset, got %v", rec.StartTime)
	}
	if rec.Duration != nil {
		t.Errorf("duration should be unset, got %v", rec.Duration)
	}
}

func TestReduceJob_NoEvents(t *testing.T) {
	entry := store.CatalogEntry{JobID: 3, Name: "C", Type: "cleanup"}

	rec := ReduceJob(entry, nil, nil, at(5))
	if rec.RawState != nil {
		t.Errorf("raw state should be nil, got %v", rec.RawState)
	}
	if rec.DisplayState != DisplayUnsubmitted {
		t.Errorf("display state: got %q, want UNSUBMITTED", rec.DisplayState)
	}
}

func TestReduceJob_IgnoresOtherJobs(t *testing.T) {
	entry := store.CatalogEntry{JobID: 1, Name: "j", Type: "compute"}
	events := []store.RawEvent{
		ev(1, "SUBMIT", 0, 1),
		ev(9, "JOB_SUCCESS", 100, 2),
	}

	rec := ReduceJob(entry, events, nil, at(5))
	if rec.DisplayState != DisplayQueued {
		t.Errorf("events of other jobs leaked into reduction: %q", rec.DisplayState)
	}
}

func TestReduceJob_AttemptFields(t *testing.T) {
	entry := store.CatalogEntry{JobID: 1, Name: "j", Type: "compute"}
	exit := 1
	site := "condorpool"
	attempt := &store.AttemptRow{JobID: 1, ExitCode: &exit, Site: &site}

	rec := ReduceJob(entry, nil, attempt, at(0))
	if rec.ExitCode == nil || *rec.ExitCode != 1 {
		t.Errorf("exit code: got %v", rec.ExitCode)
	}
	if rec.Site == nil || *rec.Site != "condorpool" {
		t.Errorf("site: got %v", rec.Site)
	}
}

func TestReduceWorkflow_Empty(t *testing.T) {
	status := ReduceWorkflow(nil)
	if status.State != StateUnknown {
		t.Errorf("got %q, want UNKNOWN", status.State)
	}
	if status.Start != nil || status.End != nil {
		t.Errorf("empty log must not produce time bounds")
	}
}

func TestReduceWorkflow_StartAndEnd(t *testing.T) {
	zero := 0
	rows := []store.WorkflowStateRow{
		{State: store.WorkflowStarted, Timestamp: at(0)},
		{State: store.WorkflowTerminated, Timestamp: at(10), Status: &zero},
	}

	status := ReduceWorkflow(rows)
	if status.State != store.WorkflowTerminated {
		t.Errorf("state: got %q", status.State)
	}
	if status.ExitStatus == nil || *status.ExitStatus != 0 {
		t.Errorf("exit status: got %v", status.ExitStatus)
	}
	if status.Start == nil || !status.Start.Equal(at(0)) {
		t.Errorf("start: got %v", status.Start)
	}
	if status.End == nil || !status.End.Equal(at(10)) {
		t.Errorf("end: got %v", status.End)
	}
}

func TestReduceWorkflow_RestartSupersedes(t *testing.T) {
	one := 1
	rows := []store.WorkflowStateRow{
		{State: store.WorkflowStarted, Timestamp: at(0)},
		{State: store.WorkflowTerminated, Timestamp: at(10), Status: &one},
		{State: store.WorkflowStarted, Timestamp: at(50)},
	}

	status := ReduceWorkflow(rows)
	if status.State != store.WorkflowStarted {
		t.Errorf("restarted workflow should be running, got %q", status.State)
	}
	if status.Start == nil || !status.Start.Equal(at(50)) {
		t.Errorf("later start should supersede, got %v", status.Start)
	}
}
