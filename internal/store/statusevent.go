package store

import (
	"database/sql"

	"github.com/google/uuid"
)

// insertStatusEvent appends one history entry inside an existing transaction.
// Status events are append-only: nothing in the store mutates or deletes them.
func insertStatusEvent(tx *sql.Tx, ev *StatusEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Payload == "" {
		ev.Payload = "{}"
	}
	_, err := tx.Exec(`
		INSERT INTO status_events (id, message_id, status, occurred_at, payload)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.MessageID, ev.Status, ev.OccurredAt, ev.Payload)
	return err
}

// ListStatusEvents returns the status history for a message in the order
// the transitions were observed.
func (db *DB) ListStatusEvents(messageID string) ([]StatusEvent, error) {
	rows, err := db.Query(`
		SELECT id, message_id, status, occurred_at, payload
		FROM status_events
		WHERE message_id = ?
		ORDER BY occurred_at ASC, rowid ASC`, messageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []StatusEvent
	for rows.Next() {
		var ev StatusEvent
		if err := rows.Scan(&ev.ID, &ev.MessageID, &ev.Status, &ev.OccurredAt, &ev.Payload); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
