package store

import "encoding/json"

// SearchMessages performs a full-text search on message bodies.
func (db *DB) SearchMessages(query string, conversationID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, COALESCE(m.sid, ''), m.conversation_id, m.direction, m.channel_type,
		       m.from_addr, m.to_addr, m.body, m.media, m.status, m.error_code, m.error_message,
		       m.created_at, m.sent_at, m.delivered_at, m.read_at,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversationID != "" {
		q += " AND m.conversation_id = ?"
		args = append(args, conversationID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var media string
		if err := rows.Scan(
			&r.Message.ID, &r.Message.SID, &r.Message.ConversationID,
			&r.Message.Direction, &r.Message.ChannelType,
			&r.Message.From, &r.Message.To, &r.Message.Body, &media,
			&r.Message.Status, &r.Message.ErrorCode, &r.Message.ErrorMessage,
			&r.Message.CreatedAt, &r.Message.SentAt, &r.Message.DeliveredAt, &r.Message.ReadAt,
			&r.Snippet,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(media), &r.Message.Media); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
