package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const messageColumns = `id, COALESCE(sid, ''), conversation_id, direction, channel_type,
	from_addr, to_addr, body, media, status, error_code, error_message,
	created_at, sent_at, delivered_at, read_at`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	var media string
	err := row.Scan(&m.ID, &m.SID, &m.ConversationID, &m.Direction, &m.ChannelType,
		&m.From, &m.To, &m.Body, &media, &m.Status, &m.ErrorCode, &m.ErrorMessage,
		&m.CreatedAt, &m.SentAt, &m.DeliveredAt, &m.ReadAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(media), &m.Media); err != nil {
		return nil, fmt.Errorf("decode media for message %s: %w", m.ID, err)
	}
	return &m, nil
}

func encodeMedia(media []string) string {
	if len(media) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(media)
	return string(b)
}

// GetMessageBySID returns the message carrying a provider SID, or nil.
func (db *DB) GetMessageBySID(sid string) (*Message, error) {
	if sid == "" {
		return nil, nil
	}
	row := db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE sid = ?`, sid)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// FindAdoptableMessage looks for a local message that was created before its
// send was accepted: same conversation, same direction, same body, no SID
// yet, created within the given window around the remote timestamp. Used to
// attach a provider SID to a pre-created outbound row instead of inserting
// a duplicate.
func (db *DB) FindAdoptableMessage(conversationID string, direction Direction, body string, around, window int64) (*Message, error) {
	row := db.QueryRow(`
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ? AND direction = ? AND body = ?
		  AND (sid IS NULL OR sid = '')
		  AND created_at BETWEEN ? AND ?
		ORDER BY ABS(created_at - ?) ASC
		LIMIT 1`,
		conversationID, direction, body, around-window, around+window, around)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMessage inserts a message together with its initial status event in
// one transaction. The caller must have checked the SID is unknown; a lost
// race on the SID unique index surfaces as a unique violation the sync
// engine resolves by re-reading.
func (db *DB) CreateMessage(m *Message, ev *StatusEvent) error {
	now := time.Now().UnixMilli()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sid any
	if m.SID != "" {
		sid = m.SID
	}
	if _, err := tx.Exec(`
		INSERT INTO messages (id, sid, conversation_id, direction, channel_type,
			from_addr, to_addr, body, media, status, error_code, error_message,
			created_at, sent_at, delivered_at, read_at, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, sid, m.ConversationID, m.Direction, m.ChannelType,
		m.From, m.To, m.Body, encodeMedia(m.Media), m.Status, m.ErrorCode, m.ErrorMessage,
		m.CreatedAt, m.SentAt, m.DeliveredAt, m.ReadAt, now); err != nil {
		return err
	}

	if ev != nil {
		ev.MessageID = m.ID
		if err := insertStatusEvent(tx, ev); err != nil {
			return fmt.Errorf("insert initial status event: %w", err)
		}
	}
	return tx.Commit()
}

// UpdateMessageSync writes the sync-mutable fields of a message and, when ev
// is non-nil, appends one status event, in a single transaction. Timestamp
// monotonicity (set-once sent/delivered/read) is the caller's contract; the
// row is written as given.
func (db *DB) UpdateMessageSync(m *Message, ev *StatusEvent) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var sid any
	if m.SID != "" {
		sid = m.SID
	}
	if _, err := tx.Exec(`
		UPDATE messages SET
			sid = ?, status = ?, media = ?, error_code = ?, error_message = ?,
			sent_at = ?, delivered_at = ?, read_at = ?
		WHERE id = ?`,
		sid, m.Status, encodeMedia(m.Media), m.ErrorCode, m.ErrorMessage,
		m.SentAt, m.DeliveredAt, m.ReadAt, m.ID); err != nil {
		return err
	}

	if ev != nil {
		ev.MessageID = m.ID
		if err := insertStatusEvent(tx, ev); err != nil {
			return fmt.Errorf("append status event: %w", err)
		}
	}
	return tx.Commit()
}

// ListMessages returns messages for a conversation using keyset pagination
// by creation timestamp, newest first.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE conversation_id = ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}
