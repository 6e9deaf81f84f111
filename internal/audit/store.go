package audit

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sweeney/door-lock/internal/logic"
)

// Entry is one row of the access log.
type Entry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Source  string    `json:"source,omitempty"`
	Current string    `json:"current,omitempty"`
	Target  string    `json:"target,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// FromEvent converts a controller event into a log entry.
func FromEvent(e logic.Event) Entry {
	entry := Entry{
		At:      e.Timestamp,
		Kind:    string(e.Type),
		Source:  string(e.Source),
		Current: e.Current.String(),
		Target:  e.Target.String(),
	}
	switch e.Type {
	case logic.EventButton:
		entry.Detail = fmt.Sprintf("%s pin=%d", e.Button.Class, e.Button.Pin)
	case logic.EventMotionOn, logic.EventMotionOff:
		entry.Detail = fmt.Sprintf("motion=%t", e.Motion)
	}
	return entry
}

type job struct {
	entry Entry
	ch    chan error // nil for fire-and-forget
}

// Store writes entries from a single goroutine and reads them directly.
type Store struct {
	db      *sql.DB
	entropy *rand.Rand
	jobs    chan job

	mu      sync.Mutex
	closed  bool
	dropped int
	failed  int
	done    chan struct{}
}

func newStore(db *sql.DB) *Store {
	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		jobs:    make(chan job, 256),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.done)
	for j := range s.jobs {
		err := s.insert(j.entry)
		if j.ch != nil {
			j.ch <- err
			continue
		}
		if err != nil {
			s.mu.Lock()
			s.failed++
			s.mu.Unlock()
		}
	}
}

func (s *Store) insert(e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.At), s.entropy).String()
	}
	if _, err := s.db.Exec(`
INSERT INTO access_log(id, at_ms, kind, source, current, target, detail)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.At.UTC().UnixMilli(), e.Kind, e.Source, e.Current, e.Target, e.Detail); err != nil {
		return fmt.Errorf("insert access_log: %w", err)
	}
	return nil
}

// Record writes e and waits for the result.
func (s *Store) Record(ctx context.Context, e Entry) error {
	ch := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("audit store closed")
	}
	select {
	case s.jobs <- job{entry: e, ch: ch}:
	case <-ctx.Done():
		s.mu.Unlock()
		return ctx.Err()
	}
	s.mu.Unlock()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Log queues e without waiting. Returns false if the queue is full or the
// store is closed; the entry is then dropped.
func (s *Store) Log(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.jobs <- job{entry: e}:
		return true
	default:
		s.dropped++
		return false
	}
}

// Stats returns how many queued entries were dropped or failed to insert.
func (s *Store) Stats() (dropped, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped, s.failed
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, at_ms, kind, source, current, target, detail
FROM access_log
ORDER BY at_ms DESC, id DESC
LIMIT ?;
`, n)
	if err != nil {
		return nil, fmt.Errorf("query access_log: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, n)
	for rows.Next() {
		var e Entry
		var atMs int64
		if err := rows.Scan(&e.ID, &atMs, &e.Kind, &e.Source, &e.Current, &e.Target, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan access_log: %w", err)
		}
		e.At = time.UnixMilli(atMs).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access_log: %w", err)
	}
	return out, nil
}

// Close drains queued writes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	<-s.done
	return s.db.Close()
}
