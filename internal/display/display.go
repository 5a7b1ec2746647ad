// Package display renders a workflow snapshot to the terminal. It is pure
// presentation: it reads the snapshot and the advisory live-queue view and
// never feeds anything back into state synthesis.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mjstealey/workflow-monitor/internal/braindump"
	"github.com/mjstealey/workflow-monitor/internal/condor"
	"github.com/mjstealey/workflow-monitor/internal/snapshot"
	"github.com/mjstealey/workflow-monitor/internal/state"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"

	clearScreen = "\033[H\033[2J"
)

// stateColor styles each display state. Unknown states render dim.
var stateColor = map[string]string{
	state.DisplaySuccess: colorBold + colorGreen,
	state.DisplayFailed:  colorBold + colorRed,
	state.DisplayRunning: colorBold + colorCyan,
	state.DisplayQueued:  colorYellow,
	state.DisplayPre:     colorBlue,
	state.DisplayPost:    colorBlue,
	state.DisplayHeld:    colorMagenta,
	state.DisplayDone:    colorGreen,
}

// typeLabel shortens catalog job types for the table.
var typeLabel = map[string]string{
	"compute":      "compute",
	"stage-in-tx":  "stage-in",
	"stage-out-tx": "stage-out",
	"create-dir":   "dir-create",
	"stage-worker": "stage-worker",
	"cleanup":      "cleanup",
	"registration": "register",
}

// Renderer writes snapshots to a terminal.
type Renderer struct {
	out     io.Writer
	info    *braindump.Info
	allJobs bool
	events  int
	repaint bool // live mode: clear and redraw each cycle
}

// New creates a renderer. repaint selects live full-screen redraw versus
// the plain one-shot print used by --once.
func New(out io.Writer, info *braindump.Info, allJobs bool, events int, repaint bool) *Renderer {
	return &Renderer{
		out:     out,
		info:    info,
		allJobs: allJobs,
		events:  events,
		repaint: repaint,
	}
}

// Publish renders one cycle.
func (r *Renderer) Publish(snap snapshot.Snapshot, live []condor.QueueJob) {
	var b strings.Builder
	if r.repaint {
		b.WriteString(clearScreen)
	}

	r.writeHeader(&b, snap)
	r.writeStatusBar(&b, snap)
	r.writeJobTable(&b, snap, condor.IndexByNode(live))
	if !r.allJobs {
		r.writeInfraSummary(&b, snap)
	}
	r.writeEvents(&b, snap)

	fmt.Fprint(r.out, b.String())
}

// Summary emits the final one-line result.
func (r *Renderer) Summary(snap snapshot.Snapshot) {
	elapsed := FormatDurationPtr(snap.Elapsed())
	switch {
	case snap.Succeeded():
		fmt.Fprintf(r.out, "\n%s✔ Workflow completed successfully%s  (elapsed: %s)\n",
			colorBold+colorGreen, colorReset, elapsed)
	case snap.Failed():
		fmt.Fprintf(r.out, "\n%s✖ Workflow FAILED%s  (elapsed: %s, failed jobs: %d)\n",
			colorBold+colorRed, colorReset, elapsed, snap.FailedCount())
	default:
		fmt.Fprintf(r.out, "\n%s◌ Monitoring stopped%s  (state: %s)\n",
			colorYellow, colorReset, snap.WorkflowState)
	}
}

func (r *Renderer) writeHeader(b *strings.Builder, snap snapshot.Snapshot) {
	fmt.Fprintf(b, "%sWorkflow Monitor%s  %srefreshed %s%s\n",
		colorBold, colorReset, colorDim, formatClockValue(snap.PollTime), colorReset)
	fmt.Fprintf(b, "%sworkflow:%s %s  %suuid:%s %s  %suser:%s %s  %splanner:%s %s\n\n",
		colorDim, colorReset, r.info.DaxLabel,
		colorDim, colorReset, r.info.ShortUUID(),
		colorDim, colorReset, r.info.User,
		colorDim, colorReset, r.info.PlannerVersion)
}

func (r *Renderer) writeStatusBar(b *strings.Builder, snap snapshot.Snapshot) {
	fmt.Fprintf(b, "%s  elapsed: %s  %.1f%%  %d/%d done",
		workflowStateText(snap),
		FormatDurationPtr(snap.Elapsed()),
		snap.ProgressPct(), snap.DoneCount(), snap.TotalJobs())

	fmt.Fprintf(b, "   %sDone:%d%s %sRun:%d%s %sQueued:%d%s",
		colorGreen, snap.DoneCount(), colorReset,
		colorCyan, snap.RunningCount(), colorReset,
		colorYellow, snap.QueuedCount(), colorReset)
	if n := snap.UnsubmittedCount(); n > 0 {
		fmt.Fprintf(b, " %sWait:%d%s", colorDim, n, colorReset)
	}
	if n := snap.FailedCount(); n > 0 {
		fmt.Fprintf(b, " %sFail:%d%s", colorBold+colorRed, n, colorReset)
	}
	b.WriteByte('\n')

	b.WriteString(progressBar(snap, 40))
	b.WriteString("\n\n")
}

// progressBar renders completion as block characters, failures in red.
func progressBar(snap snapshot.Snapshot, width int) string {
	total := snap.TotalJobs()
	filled := 0
	failFilled := 0
	if total > 0 {
		filled = width * snap.DoneCount() / total
		if failed := snap.FailedCount(); failed > 0 {
			failFilled = width * failed / total
			if failFilled == 0 {
				failFilled = 1
			}
			if failFilled > width-filled {
				failFilled = width - filled
			}
		}
	}

	var b strings.Builder
	b.WriteString(colorDim + "[" + colorReset)
	b.WriteString(colorBold + colorGreen + strings.Repeat("█", filled) + colorReset)
	b.WriteString(colorBold + colorRed + strings.Repeat("█", failFilled) + colorReset)
	b.WriteString(colorDim + strings.Repeat("░", width-filled-failFilled) + "]" + colorReset)
	return b.String()
}

func (r *Renderer) writeJobTable(b *strings.Builder, snap snapshot.Snapshot, liveIndex map[string]condor.QueueJob) {
	jobs := snap.Jobs
	title := "All Jobs"
	if !r.allJobs {
		jobs = snap.ComputeJobs()
		title = "Compute Jobs"
	}

	fmt.Fprintf(b, "%s%s%s\n", colorBold, title, colorReset)
	fmt.Fprintf(b, "%s%-32s %-12s %-10s %5s %10s  %s%s\n",
		colorDim, "Job Name", "Type", "State", "Exit", "Duration", "Live", colorReset)

	if len(jobs) == 0 {
		fmt.Fprintf(b, "%s(no jobs yet)%s\n", colorDim, colorReset)
	}
	for i := range jobs {
		job := &jobs[i]

		exit := "-"
		exitColor := colorDim
		if job.ExitCode != nil {
			exit = fmt.Sprintf("%d", *job.ExitCode)
			if *job.ExitCode == 0 {
				exitColor = colorGreen
			} else {
				exitColor = colorRed
			}
		}

		liveCell := ""
		if entry, ok := liveIndex[job.Name]; ok {
			liveCell = condor.StatusLabel(entry.JobStatus)
			if entry.RemoteHost != "" {
				liveCell += " @" + entry.RemoteHost
			}
		}

		fmt.Fprintf(b, "%-32s %s%-12s%s %s%-10s%s %s%5s%s %10s  %s%s%s\n",
			truncate(job.Name, 32),
			colorDim, jobTypeLabel(job.Type), colorReset,
			styleFor(job.DisplayState), pad(job.DisplayState, 10), colorReset,
			exitColor, exit, colorReset,
			FormatDurationPtr(job.Duration),
			colorCyan, liveCell, colorReset)
	}
	b.WriteByte('\n')
}

// writeInfraSummary condenses non-compute jobs to (type, state) counts.
func (r *Renderer) writeInfraSummary(b *strings.Builder, snap snapshot.Snapshot) {
	infra := snap.InfraJobs()
	if len(infra) == 0 {
		return
	}

	type key struct{ typ, state string }
	counts := make(map[key]int)
	var order []key
	for i := range infra {
		k := key{jobTypeLabel(infra[i].Type), infra[i].DisplayState}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}

	fmt.Fprintf(b, "%sInfrastructure%s\n", colorBold, colorReset)
	for _, k := range order {
		fmt.Fprintf(b, "  %-14s %s%-10s%s %3d\n",
			k.typ, styleFor(k.state), pad(k.state, 10), colorReset, counts[k])
	}
	b.WriteByte('\n')
}

func (r *Renderer) writeEvents(b *strings.Builder, snap snapshot.Snapshot) {
	fmt.Fprintf(b, "%sRecent Events%s\n", colorBold, colorReset)

	events := snap.RecentEvents
	if len(events) > r.events {
		events = events[:r.events]
	}
	if len(events) == 0 {
		fmt.Fprintf(b, "%s(none)%s\n", colorDim, colorReset)
		return
	}
	for i := range events {
		ev := &events[i]
		display := state.DisplayState(&ev.State)
		fmt.Fprintf(b, "%s%s%s  %-32s %s%s%s\n",
			colorDim, formatClockValue(ev.Timestamp), colorReset,
			truncate(ev.JobName, 32),
			styleFor(display), ev.State, colorReset)
	}
}

func workflowStateText(snap snapshot.Snapshot) string {
	switch {
	case snap.IsRunning():
		return colorBold + colorCyan + "● RUNNING" + colorReset
	case snap.Succeeded():
		return colorBold + colorGreen + "✔ SUCCESS" + colorReset
	case snap.Failed():
		return colorBold + colorRed + "✖ FAILED" + colorReset
	default:
		return colorDim + "◌ " + snap.WorkflowState + colorReset
	}
}

func styleFor(displayState string) string {
	if c, ok := stateColor[displayState]; ok {
		return c
	}
	return colorDim
}

func jobTypeLabel(typ string) string {
	if label, ok := typeLabel[typ]; ok {
		return label
	}
	return typ
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// truncate shortens s to width cells, counting runes so a multi-byte job
// name is never split mid-character.
func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

// FormatDuration renders a duration as 3s, 4m05s, or 1h02m03s.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-"
	}
	total := int(d.Seconds())
	sec := total % 60
	min := (total / 60) % 60
	hour := total / 3600
	switch {
	case hour > 0:
		return fmt.Sprintf("%dh%02dm%02ds", hour, min, sec)
	case min > 0:
		return fmt.Sprintf("%dm%02ds", min, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

// FormatDurationPtr renders an optional duration, "-" when absent.
func FormatDurationPtr(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return FormatDuration(*d)
}

func formatClockValue(t time.Time) string {
	return t.Local().Format("15:04:05")
}
