// Package monitor drives the poll / publish / sleep cycle and decides
// when monitoring stops.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/mjstealey/workflow-monitor/internal/condor"
	"github.com/mjstealey/workflow-monitor/internal/observability"
	"github.com/mjstealey/workflow-monitor/internal/snapshot"
	"github.com/mjstealey/workflow-monitor/internal/state"
	"github.com/mjstealey/workflow-monitor/internal/store"
)

// Publisher consumes the snapshot produced each cycle. Implementations
// must not retain or mutate the snapshot's slices.
type Publisher interface {
	// Publish renders one cycle's snapshot and live-queue view.
	Publish(snap snapshot.Snapshot, live []condor.QueueJob)

	// Summary emits the final one-line result when monitoring stops.
	Summary(snap snapshot.Snapshot)
}

// QueueFunc obtains the live-queue snapshot. ok=false means the queue was
// unreachable this cycle.
type QueueFunc func(ctx context.Context) ([]condor.QueueJob, bool)

// Config holds the loop's timing parameters.
type Config struct {
	Interval   time.Duration // steady-state cadence
	EventLimit int           // recent events per snapshot
	Once       bool          // single cycle, no sleeping

	// StoreTimeout bounds the event-database read so a locked writer
	// cannot stall the cadence. QueueTimeout bounds the live-queue fetch
	// independently. QueueMinInterval throttles how often the remote
	// schedd is actually queried; between queries the previous live view
	// is reused.
	StoreTimeout     time.Duration
	QueueTimeout     time.Duration
	QueueMinInterval time.Duration
}

// Monitor owns one workflow's refresh loop.
type Monitor struct {
	reader  store.EventReader
	queue   QueueFunc
	pub     Publisher
	cfg     Config
	log     *slog.Logger
	metrics *observability.MonitorMetrics
	limiter *rate.Limiter
	now     func() time.Time

	lastLive []condor.QueueJob
}

// New creates a monitor. metrics may be nil when observability is not
// enabled.
func New(reader store.EventReader, queue QueueFunc, pub Publisher, cfg Config, log *slog.Logger, metrics *observability.MonitorMetrics) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.EventLimit < 0 {
		cfg.EventLimit = 0
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = condor.DefaultTimeout
	}
	if cfg.QueueMinInterval <= 0 {
		cfg.QueueMinInterval = 5 * time.Second
	}

	return &Monitor{
		reader:  reader,
		queue:   queue,
		pub:     pub,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		limiter: rate.NewLimiter(rate.Every(cfg.QueueMinInterval), 1),
		now:     time.Now,
	}
}

// Run drives the loop until the workflow terminates or ctx is cancelled.
// A terminal snapshot triggers exactly one delayed re-poll to absorb
// events the writer may still be flushing, then the loop halts. The final
// summary is always published, interrupt included.
func (m *Monitor) Run(ctx context.Context) error {
	snap, live := m.cycle(ctx)
	m.pub.Publish(snap, live)

	if m.cfg.Once {
		m.pub.Summary(snap)
		return nil
	}

	for {
		if snap.IsComplete() && !snap.IsRunning() {
			// One grace re-poll: the monitor daemon flushes its last
			// events right after the terminal transition.
			if err := m.sleep(ctx); err != nil {
				m.pub.Summary(snap)
				return nil
			}
			final, live := m.cycle(ctx)
			if ctx.Err() != nil {
				// Interrupted mid-repoll: the degraded result is not
				// authoritative, summarize the terminal snapshot we
				// already have.
				m.pub.Summary(snap)
				return nil
			}
			m.pub.Publish(final, live)
			m.pub.Summary(final)
			m.log.Info("workflow terminal, monitoring stopped",
				"state", final.WorkflowState, "failed_jobs", final.FailedCount())
			return nil
		}

		if err := m.sleep(ctx); err != nil {
			m.pub.Summary(snap)
			return nil
		}

		next, nextLive := m.cycle(ctx)
		if ctx.Err() != nil {
			// Cancelled mid-synthesis: the degraded result is not
			// authoritative, summarize the last good snapshot instead.
			m.pub.Summary(snap)
			return nil
		}
		snap, live = next, nextLive
		m.pub.Publish(snap, live)
	}
}

// cycle performs one synthesis-and-merge: the event-database read and the
// live-queue fetch run concurrently, each against its own deadline, and
// each degrades independently.
func (m *Monitor) cycle(ctx context.Context) (snapshot.Snapshot, []condor.QueueJob) {
	ctx, span := otel.Tracer("wfmon").Start(ctx, "poll_cycle")
	defer span.End()

	started := m.now()
	var snap snapshot.Snapshot
	live := m.lastLive

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
		defer cancel()
		snap = snapshot.Synthesize(sctx, m.reader, m.cfg.EventLimit, started)
	}()

	if m.limiter.Allow() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, m.cfg.QueueTimeout)
			defer cancel()
			jobs, ok := m.queue(qctx)
			if ok {
				live = jobs
				return
			}
			live = nil
			m.metrics.RecordQueueMiss(ctx)
			m.log.Debug("live queue unavailable, merging empty set")
		}()
	}

	wg.Wait()
	m.lastLive = live

	degraded := snap.WorkflowState == state.StateUnknown && snap.TotalJobs() == 0
	m.metrics.RecordCycle(ctx, m.now().Sub(started), degraded)
	span.SetAttributes(
		attribute.String("workflow.state", snap.WorkflowState),
		attribute.Int("workflow.jobs", snap.TotalJobs()),
		attribute.Bool("poll.degraded", degraded),
	)

	return snap, live
}

func (m *Monitor) sleep(ctx context.Context) error {
	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
