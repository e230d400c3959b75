// Package jobs provides a durable SQLite-backed job queue with
// at-least-once delivery. Handlers must be idempotent.
package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a job row.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Job is one unit of queued work.
type Job struct {
	ID          int64
	Kind        string
	Args        json.RawMessage
	UniqueKey   *string
	State       State
	Attempt     int
	MaxAttempts int
	RunAt       time.Time
	LastError   *string
	CreatedAt   time.Time
}

// Options tune job scheduling.
type Options struct {
	// Delay postpones the first run.
	Delay time.Duration
	// UniqueKey enforces at most one non-terminal job per (kind, key).
	UniqueKey string
	// MaxAttempts caps handler-error retries. 0 uses the default of 25.
	MaxAttempts int
}

var (
	// ErrNotFound indicates the job row does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrUnknownKind indicates no handler is registered for a job kind.
	ErrUnknownKind = errors.New("unknown job kind")
)

// Store persists job rows.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const jobCols = "id, kind, args, unique_key, state, attempt, max_attempts, run_at, last_error, created_at"

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	j := &Job{}
	var args string
	if err := row.Scan(&j.ID, &j.Kind, &args, &j.UniqueKey, &j.State, &j.Attempt,
		&j.MaxAttempts, &j.RunAt, &j.LastError, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Args = json.RawMessage(args)
	return j, nil
}

// Schedule enqueues a job. When a UniqueKey is given and a non-terminal
// job with the same (kind, key) already exists, Schedule is a no-op and
// returns the existing job.
func (s *Store) Schedule(kind string, args any, opts Options) (*Job, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode job args: %w", err)
	}
	if args == nil {
		raw = []byte("{}")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 25
	}
	var key *string
	if opts.UniqueKey != "" {
		key = &opts.UniqueKey
	}

	now := time.Now()
	runAt := now.Add(opts.Delay)
	result, err := s.db.Exec(`
		INSERT INTO jobs (kind, args, unique_key, state, attempt, max_attempts, run_at, created_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		kind, string(raw), key, StatePending, maxAttempts, runAt, now,
	)
	if err != nil {
		if isUniqueViolation(err) && key != nil {
			return s.findActive(kind, *key)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return &Job{
		ID: id, Kind: kind, Args: raw, UniqueKey: key,
		State: StatePending, MaxAttempts: maxAttempts, RunAt: runAt, CreatedAt: now,
	}, nil
}

func (s *Store) findActive(kind, key string) (*Job, error) {
	j, err := scanJob(s.db.QueryRow(
		"SELECT "+jobCols+" FROM jobs WHERE kind = ? AND unique_key = ? AND state IN (?, ?)",
		kind, key, StatePending, StateRunning))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return j, nil
}

// Get retrieves a job by ID.
func (s *Store) Get(id int64) (*Job, error) {
	j, err := scanJob(s.db.QueryRow("SELECT "+jobCols+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return j, nil
}

// claimDue atomically moves up to limit due pending jobs to running and
// returns them. Each claim bumps the attempt counter.
func (s *Store) claimDue(limit int) ([]*Job, error) {
	rows, err := s.db.Query(
		"SELECT "+jobCols+" FROM jobs WHERE state = ? AND run_at <= ? ORDER BY run_at LIMIT ?",
		StatePending, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var due []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		due = append(due, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	var claimed []*Job
	for _, j := range due {
		result, err := s.db.Exec(
			"UPDATE jobs SET state = ?, attempt = attempt + 1 WHERE id = ? AND state = ?",
			StateRunning, j.ID, StatePending)
		if err != nil {
			return nil, fmt.Errorf("claim job %d: %w", j.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			continue // another worker won the claim
		}
		j.State = StateRunning
		j.Attempt++
		claimed = append(claimed, j)
	}
	return claimed, nil
}

// complete marks a job done.
func (s *Store) complete(j *Job) error {
	if _, err := s.db.Exec("UPDATE jobs SET state = ?, last_error = NULL WHERE id = ?",
		StateDone, j.ID); err != nil {
		return fmt.Errorf("complete job %d: %w", j.ID, err)
	}
	j.State = StateDone
	return nil
}

// reschedule puts a job back in the queue after a handler-requested
// delay, optionally replacing its arguments.
func (s *Store) reschedule(j *Job, after time.Duration, args json.RawMessage) error {
	runAt := time.Now().Add(after)
	if args == nil {
		args = j.Args
	}
	if _, err := s.db.Exec(
		"UPDATE jobs SET state = ?, run_at = ?, args = ?, last_error = NULL WHERE id = ?",
		StatePending, runAt, string(args), j.ID); err != nil {
		return fmt.Errorf("reschedule job %d: %w", j.ID, err)
	}
	j.State = StatePending
	j.RunAt = runAt
	j.Args = args
	return nil
}

// failed records a handler error. The job retries until attempts are
// exhausted, then parks in the failed state.
func (s *Store) failed(j *Job, handlerErr error, retryIn time.Duration) error {
	msg := handlerErr.Error()
	if j.Attempt >= j.MaxAttempts {
		if _, err := s.db.Exec("UPDATE jobs SET state = ?, last_error = ? WHERE id = ?",
			StateFailed, msg, j.ID); err != nil {
			return fmt.Errorf("fail job %d: %w", j.ID, err)
		}
		j.State = StateFailed
		j.LastError = &msg
		return nil
	}

	runAt := time.Now().Add(retryIn)
	if _, err := s.db.Exec("UPDATE jobs SET state = ?, run_at = ?, last_error = ? WHERE id = ?",
		StatePending, runAt, msg, j.ID); err != nil {
		return fmt.Errorf("retry job %d: %w", j.ID, err)
	}
	j.State = StatePending
	j.RunAt = runAt
	j.LastError = &msg
	return nil
}

// Prune deletes terminal jobs older than the cutoff.
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM jobs WHERE state IN (?, ?) AND created_at < ?",
		StateDone, StateFailed, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return result.RowsAffected()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
