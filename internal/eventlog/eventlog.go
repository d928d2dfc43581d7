// Package eventlog persists per-channel measurement outcomes to sqlite so
// estimator runs can be inspected after the fact.
package eventlog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/pose.report/internal/monitoring"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the event log at path. Use ":memory:" for
// an ephemeral log in tests.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS measurement_events (
			run_id            TEXT,
			channel           TEXT,
			event             TEXT,
			drained           BIGINT,
			accepted          BIGINT,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_measurement_events_run
			ON measurement_events(run_id, channel);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create event schema: %w", err)
	}

	return &DB{db}, nil
}

// RecordProcessOutcome stores the result of one Process call on a channel.
func (db *DB) RecordProcessOutcome(runID, channel string, drained, accepted int) error {
	_, err := db.Exec(`
		INSERT INTO measurement_events (run_id, channel, event, drained, accepted)
		VALUES (?, ?, 'process', ?, ?)`,
		runID, channel, drained, accepted)
	if err != nil {
		return fmt.Errorf("failed to record process outcome: %w", err)
	}
	return nil
}

// RecordChannelEvent stores a discrete channel event ("init", "timeout",
// "timeout_cleared", ...).
func (db *DB) RecordChannelEvent(runID, channel, event string) error {
	_, err := db.Exec(`
		INSERT INTO measurement_events (run_id, channel, event, drained, accepted)
		VALUES (?, ?, ?, 0, 0)`,
		runID, channel, event)
	if err != nil {
		return fmt.Errorf("failed to record channel event: %w", err)
	}
	return nil
}

// ProcessTotals sums the drained/accepted counters for one channel of a run.
func (db *DB) ProcessTotals(runID, channel string) (drained, accepted int, err error) {
	row := db.QueryRow(`
		SELECT COALESCE(SUM(drained), 0), COALESCE(SUM(accepted), 0)
		FROM measurement_events
		WHERE run_id = ? AND channel = ? AND event = 'process'`,
		runID, channel)
	if err := row.Scan(&drained, &accepted); err != nil {
		return 0, 0, fmt.Errorf("failed to sum process totals: %w", err)
	}
	return drained, accepted, nil
}

// ChannelEvents returns the discrete events recorded for one channel of a
// run, oldest first.
func (db *DB) ChannelEvents(runID, channel string) ([]string, error) {
	rows, err := db.Query(`
		SELECT event FROM measurement_events
		WHERE run_id = ? AND channel = ? AND event != 'process'
		ORDER BY rowid`,
		runID, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel events: %w", err)
	}
	defer rows.Close()

	var events []string
	for rows.Next() {
		var event string
		if err := rows.Scan(&event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Recorder adapts DB to the estimator's Recorder interface. Write failures
// are logged, never propagated into the tick loop.
type Recorder struct {
	db *DB
}

// NewRecorder returns a Recorder writing to db.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

// RecordProcess implements estimation.Recorder.
func (r *Recorder) RecordProcess(runID, channel string, drained, accepted int) {
	if err := r.db.RecordProcessOutcome(runID, channel, drained, accepted); err != nil {
		monitoring.Logf("eventlog: %v", err)
	}
}

// RecordEvent implements estimation.Recorder.
func (r *Recorder) RecordEvent(runID, channel, event string) {
	if err := r.db.RecordChannelEvent(runID, channel, event); err != nil {
		monitoring.Logf("eventlog: %v", err)
	}
}
