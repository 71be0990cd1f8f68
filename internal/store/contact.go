package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetContact returns a contact by ID, or nil if it does not exist.
func (db *DB) GetContact(id string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`SELECT id, name, email, created_at, updated_at FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChannel returns the channel owning the given (type, identifier) pair,
// or nil if no contact owns that address yet.
func (db *DB) GetChannel(channelType ChannelType, identifier string) (*Channel, error) {
	var ch Channel
	err := db.QueryRow(`
		SELECT id, contact_id, channel_type, identifier, is_primary, created_at
		FROM channels WHERE channel_type = ? AND identifier = ?`, channelType, identifier).
		Scan(&ch.ID, &ch.ContactID, &ch.ChannelType, &ch.Identifier, &ch.IsPrimary, &ch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListChannels returns all channels belonging to a contact, primary first.
func (db *DB) ListChannels(contactID string) ([]Channel, error) {
	rows, err := db.Query(`
		SELECT id, contact_id, channel_type, identifier, is_primary, created_at
		FROM channels WHERE contact_id = ?
		ORDER BY is_primary DESC, created_at ASC`, contactID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.ContactID, &ch.ChannelType, &ch.Identifier, &ch.IsPrimary, &ch.CreatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// ResolveResult reports what ResolveCounterparty found or created.
type ResolveResult struct {
	Contact             *Contact
	Conversation        *Conversation
	ContactCreated      bool
	ConversationCreated bool
}

// ResolveCounterparty finds or creates the Contact/Channel/Conversation
// triple owning a canonical address on a channel. Safe under concurrent
// invocation for the same address: a unique-constraint conflict from a
// racing sync is resolved by re-reading the winner's rows.
func (db *DB) ResolveCounterparty(channelType ChannelType, identifier string) (*ResolveResult, error) {
	res := &ResolveResult{}

	ch, err := db.GetChannel(channelType, identifier)
	if err != nil {
		return nil, fmt.Errorf("lookup channel: %w", err)
	}
	if ch == nil {
		ch, res.ContactCreated, err = db.createContactWithChannel(channelType, identifier)
		if err != nil {
			return nil, err
		}
	}

	res.Contact, err = db.GetContact(ch.ContactID)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if res.Contact == nil {
		return nil, fmt.Errorf("channel %s references missing contact %s", ch.ID, ch.ContactID)
	}

	res.Conversation, res.ConversationCreated, err = db.findOrCreateConversation(res.Contact.ID, channelType)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// createContactWithChannel inserts a contact named after the address with
// one primary channel, in a single transaction. Reports created=false when
// a concurrent insert won the race on (channel_type, identifier).
func (db *DB) createContactWithChannel(channelType ChannelType, identifier string) (*Channel, bool, error) {
	now := time.Now().UnixMilli()
	contactID := uuid.New().String()
	channelID := uuid.New().String()

	tx, err := db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		INSERT INTO contacts (id, name, email, created_at, updated_at)
		VALUES (?, ?, '', ?, ?)`,
		contactID, identifier, now, now); err != nil {
		return nil, false, fmt.Errorf("insert contact: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO channels (id, contact_id, channel_type, identifier, is_primary, created_at)
		VALUES (?, ?, ?, ?, 1, ?)`,
		channelID, contactID, channelType, identifier, now)
	if err != nil {
		if IsUniqueViolation(err) {
			// Another sync created this channel between lookup and insert.
			_ = tx.Rollback()
			ch, rerr := db.GetChannel(channelType, identifier)
			if rerr != nil {
				return nil, false, fmt.Errorf("re-read channel after conflict: %w", rerr)
			}
			if ch == nil {
				return nil, false, fmt.Errorf("channel (%s, %s) vanished after conflict", channelType, identifier)
			}
			return ch, false, nil
		}
		return nil, false, fmt.Errorf("insert channel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit contact: %w", err)
	}
	return &Channel{
		ID:          channelID,
		ContactID:   contactID,
		ChannelType: channelType,
		Identifier:  identifier,
		IsPrimary:   true,
		CreatedAt:   now,
	}, true, nil
}

// ContactCount returns the total number of contacts.
func (db *DB) ContactCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
