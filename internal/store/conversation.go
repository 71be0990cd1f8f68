package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetConversation returns a conversation by ID with its contact's display
// name resolved, or nil if it does not exist or has been deleted.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT cv.id, cv.contact_id, COALESCE(NULLIF(ct.name,''), cv.contact_id),
		       cv.channel_type, cv.last_message, cv.last_message_at, cv.created_at, cv.updated_at
		FROM conversations cv
		LEFT JOIN contacts ct ON ct.id = cv.contact_id
		WHERE cv.id = ? AND cv.deleted_at IS NULL`, id).
		Scan(&c.ID, &c.ContactID, &c.ContactName, &c.ChannelType,
			&c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns live conversations sorted by last message
// timestamp descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT cv.id, cv.contact_id, COALESCE(NULLIF(ct.name,''), cv.contact_id),
		       cv.channel_type, cv.last_message, cv.last_message_at, cv.created_at, cv.updated_at
		FROM conversations cv
		LEFT JOIN contacts ct ON ct.id = cv.contact_id
		WHERE cv.deleted_at IS NULL
		ORDER BY cv.last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.ContactID, &c.ContactName, &c.ChannelType,
			&c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// findOrCreateConversation returns the live conversation for a
// (contact, channel type) pair, creating it when absent. A racing insert
// is resolved by re-reading the winner's row.
func (db *DB) findOrCreateConversation(contactID string, channelType ChannelType) (*Conversation, bool, error) {
	get := func() (*Conversation, error) {
		var c Conversation
		err := db.QueryRow(`
			SELECT id, contact_id, channel_type, last_message, last_message_at, created_at, updated_at
			FROM conversations
			WHERE contact_id = ? AND channel_type = ? AND deleted_at IS NULL`,
			contactID, channelType).
			Scan(&c.ID, &c.ContactID, &c.ChannelType, &c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &c, nil
	}

	conv, err := get()
	if err != nil {
		return nil, false, fmt.Errorf("lookup conversation: %w", err)
	}
	if conv != nil {
		return conv, false, nil
	}

	now := time.Now().UnixMilli()
	id := uuid.New().String()
	_, err = db.Exec(`
		INSERT INTO conversations (id, contact_id, channel_type, last_message, last_message_at, created_at, updated_at)
		VALUES (?, ?, ?, '', 0, ?, ?)`,
		id, contactID, channelType, now, now)
	if err != nil {
		if IsUniqueViolation(err) {
			conv, rerr := get()
			if rerr != nil {
				return nil, false, fmt.Errorf("re-read conversation after conflict: %w", rerr)
			}
			if conv == nil {
				return nil, false, fmt.Errorf("conversation (%s, %s) vanished after conflict", contactID, channelType)
			}
			return conv, false, nil
		}
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}

	return &Conversation{
		ID:          id,
		ContactID:   contactID,
		ChannelType: channelType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, true, nil
}

// TouchConversation updates the denormalized last-message cache. The MAX
// guard keeps last_message_at from moving backwards when records are
// processed out of arrival order across syncs.
func (db *DB) TouchConversation(id, preview string, at int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE conversations SET
			last_message = CASE WHEN ? >= last_message_at THEN ? ELSE last_message END,
			last_message_at = MAX(last_message_at, ?),
			updated_at = ?
		WHERE id = ?`,
		at, preview, at, now, id)
	return err
}
