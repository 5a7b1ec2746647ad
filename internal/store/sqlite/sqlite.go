// Package sqlite implements store.EventReader against the stampede SQLite
// database written by the workflow monitor daemon.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mjstealey/workflow-monitor/internal/store"
)

// busyTimeout bounds how long a read waits on a writer's lock before
// failing, so a mid-write database cannot stall the refresh cadence.
const busyTimeout = 5 * time.Second

// Store is a read-only handle to the stampede database. The connection is
// reused across polls; the writer process owns the schema.
type Store struct {
	db *sql.DB
}

// Open opens the database read-only. The file is never created or
// modified by this process.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open event database: %w", err)
	}
	// A single connection avoids piling up readers against a locked writer.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) WorkflowStates(ctx context.Context) ([]store.WorkflowStateRow, error) {
	query := "SELECT state, timestamp, status FROM workflowstate ORDER BY timestamp"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []store.WorkflowStateRow
	for rows.Next() {
		var (
			row    store.WorkflowStateRow
			ts     float64
			status sql.NullInt64
		)
		if err := rows.Scan(&row.State, &ts, &status); err != nil {
			return nil, err
		}
		row.Timestamp = timeFromEpoch(ts)
		if status.Valid {
			v := int(status.Int64)
			row.Status = &v
		}
		states = append(states, row)
	}
	return states, rows.Err()
}

func (s *Store) JobCatalog(ctx context.Context) ([]store.CatalogEntry, error) {
	query := "SELECT job_id, exec_job_id, type_desc FROM job ORDER BY job_id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []store.CatalogEntry
	for rows.Next() {
		var entry store.CatalogEntry
		if err := rows.Scan(&entry.JobID, &entry.Name, &entry.Type); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) JobEvents(ctx context.Context) ([]store.RawEvent, error) {
	query := `
	SELECT j.job_id, j.exec_job_id, j.type_desc, js.state, js.timestamp, js.jobstate_submit_seq
	FROM job j
	JOIN job_instance ji ON j.job_id = ji.job_id
	JOIN jobstate js ON ji.job_instance_id = js.job_instance_id
	ORDER BY js.timestamp, js.jobstate_submit_seq
	`
	return s.queryEvents(ctx, query)
}

func (s *Store) RecentEvents(ctx context.Context, limit int) ([]store.RawEvent, error) {
	query := `
	SELECT j.job_id, j.exec_job_id, j.type_desc, js.state, js.timestamp, js.jobstate_submit_seq
	FROM job j
	JOIN job_instance ji ON j.job_id = ji.job_id
	JOIN jobstate js ON ji.job_instance_id = js.job_instance_id
	ORDER BY js.timestamp DESC, js.jobstate_submit_seq DESC
	LIMIT ?
	`
	return s.queryEvents(ctx, query, limit)
}

func (s *Store) JobAttempts(ctx context.Context) ([]store.AttemptRow, error) {
	query := `
	SELECT ji.job_id, ji.exitcode, ji.site
	FROM job_instance ji
	JOIN (
		SELECT job_id, MAX(job_submit_seq) AS last_seq
		FROM job_instance
		GROUP BY job_id
	) last ON ji.job_id = last.job_id AND ji.job_submit_seq = last.last_seq
	ORDER BY ji.job_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []store.AttemptRow
	for rows.Next() {
		var (
			attempt  store.AttemptRow
			exitCode sql.NullInt64
			site     sql.NullString
		)
		if err := rows.Scan(&attempt.JobID, &exitCode, &site); err != nil {
			return nil, err
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			attempt.ExitCode = &v
		}
		if site.Valid {
			v := site.String
			attempt.Site = &v
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...interface{}) ([]store.RawEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.RawEvent
	for rows.Next() {
		var (
			ev store.RawEvent
			ts float64
		)
		if err := rows.Scan(&ev.JobID, &ev.JobName, &ev.JobType, &ev.State, &ts, &ev.Seq); err != nil {
			return nil, err
		}
		ev.Timestamp = timeFromEpoch(ts)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// timeFromEpoch converts the database's REAL epoch-seconds timestamps.
func timeFromEpoch(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
