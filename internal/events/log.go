package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Log persists events to the event_log table.
type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append persists an event and returns its row ID.
func (l *Log) Append(ctx context.Context, e Event) (int64, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO event_log (type, entity_type, entity_id, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.EventType(), e.EntityType(), e.EntityID(), string(payload), e.OccurredAt(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return result.LastInsertId()
}

// Record is a persisted event with its raw JSON payload.
type Record struct {
	ID         int64
	Type       string
	EntityType string
	EntityID   int64
	Payload    string
	OccurredAt time.Time
}

// ForEntity returns all persisted events for one entity, oldest first.
func (l *Log) ForEntity(ctx context.Context, entityType string, entityID int64) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, type, entity_type, entity_id, payload, occurred_at
		FROM event_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// Since returns all events that occurred at or after t, oldest first.
func (l *Log) Since(ctx context.Context, t time.Time) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, type, entity_type, entity_id, payload, occurred_at
		FROM event_log
		WHERE occurred_at >= ?
		ORDER BY id`,
		t,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// Prune deletes events older than the given age and reports how many
// rows were removed.
func (l *Log) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := l.db.ExecContext(ctx, "DELETE FROM event_log WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return result.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Type, &r.EntityType, &r.EntityID, &r.Payload, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
