package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/courier-im/courier/internal/bus"
	"github.com/courier-im/courier/internal/provider"
	"github.com/courier-im/courier/internal/status"
	"github.com/courier-im/courier/internal/store"
)

const (
	defaultConversationLimit = 200
	defaultBulkLimit         = 1000

	// adoptionWindow bounds the secondary match for outbound messages that
	// were created locally before the provider assigned them a SID.
	adoptionWindow = 5 * time.Minute

	// mediaPlaceholder stands in for the body of media-only messages in the
	// conversation preview.
	mediaPlaceholder = "[media]"
)

// Fetcher is the remote provider surface the engine consumes.
type Fetcher interface {
	ListMessages(ctx context.Context, f provider.Filter, limit int) ([]provider.Record, error)
	ListMedia(ctx context.Context, sid string) ([]string, error)
}

// Engine reconciles the remote provider's view of the account with the
// local store: fetch, classify, merge, resolve identity, upsert, append
// status history, refresh conversation summaries. Repeated runs are
// idempotent; re-syncing never duplicates rows or regresses status.
type Engine struct {
	db         *store.DB
	fetcher    Fetcher
	bus        *bus.Bus
	logger     *zap.Logger
	own        provider.AddressSet
	ownAddress string
}

// NewEngine creates a reconciliation engine. ownAddresses is the account's
// own address list from configuration; the first entry is the account
// identity used for directional queries, the whole set feeds direction
// classification.
func NewEngine(db *store.DB, fetcher Fetcher, ownAddresses []string, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		db:      db,
		fetcher: fetcher,
		bus:     b,
		logger:  logger,
		own:     provider.NewAddressSet(ownAddresses),
	}
	if len(ownAddresses) > 0 {
		e.ownAddress = provider.Canonicalize(ownAddresses[0])
	}
	return e
}

// Options controls a single-conversation sync.
type Options struct {
	Limit        int
	IncludeMedia bool
}

// Result reports what a single-conversation sync did.
type Result struct {
	Inserted int
	Updated  int
	Fetched  int
}

// BulkOptions controls a whole-account sync.
type BulkOptions struct {
	Limit        int
	IncludeMedia bool
	DateAfter    time.Time
}

// BulkResult aggregates a whole-account sync. TotalFetched counts records
// as returned by the provider, before deduplication. Errors holds one entry
// per failed counterparty; a non-empty list does not mean the run failed.
type BulkResult struct {
	ContactsCreated      int
	ConversationsCreated int
	MessagesInserted     int
	MessagesUpdated      int
	TotalFetched         int
	Errors               []string
}

// SyncConversation reconciles one conversation against the remote provider.
// Both directional queries run concurrently; upserts are strictly
// sequential in chronological order so status history lands in the order
// the provider reported transitions.
func (e *Engine) SyncConversation(ctx context.Context, conversationID string, opts Options) (*Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultConversationLimit
	}

	conv, err := e.db.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return nil, &NotFoundError{Kind: "conversation", ID: conversationID}
	}

	channel, err := e.conversationChannel(conv)
	if err != nil {
		return nil, err
	}

	contactAddr := provider.ToProviderAddress(conv.ChannelType, channel.Identifier)
	ownAddr := provider.ToProviderAddress(conv.ChannelType, e.ownAddress)

	// The two directional queries are independent; fetch them concurrently.
	type fetchResult struct {
		records []provider.Record
		err     error
	}
	outboundCh := make(chan fetchResult, 1)
	go func() {
		recs, err := e.fetcher.ListMessages(ctx, provider.Filter{From: ownAddr, To: contactAddr}, limit)
		outboundCh <- fetchResult{recs, err}
	}()
	inbound, inErr := e.fetcher.ListMessages(ctx, provider.Filter{From: contactAddr, To: ownAddr}, limit)
	outbound := <-outboundCh

	if inErr != nil {
		return nil, fmt.Errorf("fetch inbound messages: %w", inErr)
	}
	if outbound.err != nil {
		return nil, fmt.Errorf("fetch outbound messages: %w", outbound.err)
	}

	merged := Merge(limit, inbound, outbound.records)

	res := &Result{Fetched: len(inbound) + len(outbound.records)}
	for _, rec := range merged {
		inserted, updated, err := e.upsertRecord(ctx, conv, rec, opts.IncludeMedia)
		if err != nil {
			return nil, fmt.Errorf("upsert message %s: %w", rec.SID, err)
		}
		if inserted {
			res.Inserted++
		}
		if updated {
			res.Updated++
		}
	}

	if len(merged) > 0 {
		if err := e.touchSummary(conv.ID, merged[len(merged)-1]); err != nil {
			return nil, fmt.Errorf("update conversation summary: %w", err)
		}
	}

	e.publish(bus.KindSyncConversationDone, map[string]int{
		"inserted": res.Inserted,
		"updated":  res.Updated,
		"fetched":  res.Fetched,
	})
	e.logger.Info("conversation synced",
		zap.String("conversation_id", conversationID),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("fetched", res.Fetched))
	return res, nil
}

// BulkSync reconciles the whole account: one unfiltered fetch, partitioned
// by counterparty, each counterparty processed independently. One bad
// counterparty never aborts the batch; only the top-level fetch can fail
// the operation.
func (e *Engine) BulkSync(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultBulkLimit
	}

	records, err := e.fetcher.ListMessages(ctx, provider.Filter{Since: opts.DateAfter}, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch account messages: %w", err)
	}

	merged := Merge(limit, records)
	res := &BulkResult{TotalFetched: len(records)}

	type partitionKey struct {
		addr        string
		channelType store.ChannelType
	}
	partitions := make(map[partitionKey][]provider.Record)
	var order []partitionKey
	for _, rec := range merged {
		key := partitionKey{
			addr:        provider.Counterparty(rec, e.own),
			channelType: provider.InferChannel(rec),
		}
		if key.addr == "" {
			e.logger.Warn("record with no counterparty address skipped", zap.String("sid", rec.SID))
			continue
		}
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], rec)
	}

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.syncCounterparty(ctx, key.channelType, key.addr, partitions[key], opts.IncludeMedia, res); err != nil {
			msg := fmt.Sprintf("counterparty %s (%s): %v", key.addr, key.channelType, err)
			res.Errors = append(res.Errors, msg)
			e.publish(bus.KindSyncCounterpartyError, msg)
			e.logger.Error("counterparty sync failed",
				zap.String("address", key.addr),
				zap.String("channel_type", string(key.channelType)),
				zap.Error(err))
		}
	}

	e.publish(bus.KindSyncBulkDone, map[string]int{
		"contacts_created":      res.ContactsCreated,
		"conversations_created": res.ConversationsCreated,
		"messages_inserted":     res.MessagesInserted,
		"messages_updated":      res.MessagesUpdated,
		"total_fetched":         res.TotalFetched,
		"errors":                len(res.Errors),
	})
	e.logger.Info("bulk sync finished",
		zap.Int("counterparties", len(order)),
		zap.Int("inserted", res.MessagesInserted),
		zap.Int("updated", res.MessagesUpdated),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

func (e *Engine) syncCounterparty(ctx context.Context, channelType store.ChannelType, addr string, records []provider.Record, includeMedia bool, res *BulkResult) error {
	resolved, err := e.db.ResolveCounterparty(channelType, addr)
	if err != nil {
		return fmt.Errorf("resolve counterparty: %w", err)
	}
	if resolved.ContactCreated {
		res.ContactsCreated++
		e.publish(bus.KindContactCreated, map[string]string{
			"contact_id": resolved.Contact.ID,
			"address":    addr,
		})
	}
	if resolved.ConversationCreated {
		res.ConversationsCreated++
	}

	for _, rec := range records {
		inserted, updated, err := e.upsertRecord(ctx, resolved.Conversation, rec, includeMedia)
		if err != nil {
			return fmt.Errorf("upsert message %s: %w", rec.SID, err)
		}
		if inserted {
			res.MessagesInserted++
		}
		if updated {
			res.MessagesUpdated++
		}
	}

	if len(records) > 0 {
		if err := e.touchSummary(resolved.Conversation.ID, records[len(records)-1]); err != nil {
			return fmt.Errorf("update conversation summary: %w", err)
		}
	}
	return nil
}

// conversationChannel picks the contact channel matching the conversation's
// type, preferring the one flagged primary. ListChannels orders primary
// first, so the first type match is the right one.
func (e *Engine) conversationChannel(conv *store.Conversation) (*store.Channel, error) {
	channels, err := e.db.ListChannels(conv.ContactID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	for i := range channels {
		if channels[i].ChannelType == conv.ChannelType {
			return &channels[i], nil
		}
	}
	return nil, &NotFoundError{
		Kind: "channel",
		ID:   fmt.Sprintf("%s/%s", conv.ContactID, conv.ChannelType),
	}
}

// upsertRecord applies one remote record to the store. Exactly one of the
// returned flags is set when a write happened; both are false when the
// record matched local state and was skipped entirely.
func (e *Engine) upsertRecord(ctx context.Context, conv *store.Conversation, rec provider.Record, includeMedia bool) (inserted, updated bool, err error) {
	direction := provider.InferDirection(rec, e.own)
	mapped := status.FromRemote(rec.Status)
	createdAt := recordTime(rec)

	existing, err := e.db.GetMessageBySID(rec.SID)
	if err != nil {
		return false, false, fmt.Errorf("lookup by sid: %w", err)
	}

	if existing == nil && rec.SID != "" && direction == store.DirectionOutbound {
		// A message composed locally exists before the provider assigns its
		// SID. Attach the SID to that row instead of inserting a duplicate.
		existing, err = e.db.FindAdoptableMessage(conv.ID, direction, rec.Body, createdAt, adoptionWindow.Milliseconds())
		if err != nil {
			return false, false, fmt.Errorf("find adoptable message: %w", err)
		}
		if existing != nil {
			e.logger.Info("adopted locally created message",
				zap.String("message_id", existing.ID),
				zap.String("sid", rec.SID))
		}
	}

	if existing == nil {
		inserted, err = e.insertRecord(ctx, conv, rec, direction, mapped, createdAt, includeMedia)
		if err != nil || inserted {
			return inserted, false, err
		}
		// Lost an insert race; the row exists now.
		existing, err = e.db.GetMessageBySID(rec.SID)
		if err != nil {
			return false, false, fmt.Errorf("re-read after conflict: %w", err)
		}
		if existing == nil {
			return false, false, fmt.Errorf("message %s vanished after conflict", rec.SID)
		}
	}

	updated, err = e.updateRecord(ctx, existing, rec, mapped, includeMedia)
	return false, updated, err
}

func (e *Engine) insertRecord(ctx context.Context, conv *store.Conversation, rec provider.Record, direction store.Direction, mapped status.Status, createdAt int64, includeMedia bool) (bool, error) {
	m := &store.Message{
		SID:            rec.SID,
		ConversationID: conv.ID,
		Direction:      direction,
		ChannelType:    provider.InferChannel(rec),
		From:           rec.From,
		To:             rec.To,
		Body:           rec.Body,
		Media:          e.resolveMedia(ctx, rec, includeMedia),
		Status:         mapped,
		ErrorCode:      rec.ErrorCode,
		ErrorMessage:   rec.ErrorMessage,
		CreatedAt:      createdAt,
	}
	fillStatusTimestamps(m, mapped, rec)

	ev := &store.StatusEvent{
		Status:     mapped,
		OccurredAt: createdAt,
		Payload:    snapshotPayload(rec),
	}
	if err := e.db.CreateMessage(m, ev); err != nil {
		if store.IsUniqueViolation(err) {
			// Another run inserted this SID between check and write.
			return false, nil
		}
		return false, err
	}

	e.publish(bus.KindMessageUpserted, map[string]string{
		"conversation_id": conv.ID,
		"message_id":      m.ID,
		"sid":             m.SID,
	})
	return true, nil
}

func (e *Engine) updateRecord(ctx context.Context, existing *store.Message, rec provider.Record, mapped status.Status, includeMedia bool) (bool, error) {
	statusChanged := status.Advances(existing.Status, mapped)
	sidAttached := existing.SID == "" && rec.SID != ""

	var media []string
	if includeMedia && len(existing.Media) == 0 {
		media = e.resolveMedia(ctx, rec, includeMedia)
	}
	mediaChanged := len(existing.Media) == 0 && len(media) > 0

	if !statusChanged && !mediaChanged && !sidAttached {
		// Nothing new; no write, no status event.
		return false, nil
	}

	var ev *store.StatusEvent
	if statusChanged {
		existing.Status = mapped
		fillStatusTimestamps(existing, mapped, rec)
		if existing.ErrorCode == "" && rec.ErrorCode != "" {
			existing.ErrorCode = rec.ErrorCode
			existing.ErrorMessage = rec.ErrorMessage
		}
		ev = &store.StatusEvent{
			Status:     mapped,
			OccurredAt: eventTime(rec),
			Payload:    snapshotPayload(rec),
		}
	}
	if mediaChanged {
		existing.Media = media
	}
	if sidAttached {
		existing.SID = rec.SID
	}

	if err := e.db.UpdateMessageSync(existing, ev); err != nil {
		return false, err
	}

	e.publish(bus.KindMessageUpserted, map[string]string{
		"conversation_id": existing.ConversationID,
		"message_id":      existing.ID,
		"sid":             existing.SID,
	})
	return true, nil
}

// resolveMedia fetches media URIs for a record, best-effort. Declared
// count of zero means no call at all; a failed call degrades to no media
// and never aborts reconciliation of the surrounding message.
func (e *Engine) resolveMedia(ctx context.Context, rec provider.Record, include bool) []string {
	if !include || rec.NumMedia <= 0 || rec.SID == "" {
		return nil
	}
	uris, err := e.fetcher.ListMedia(ctx, rec.SID)
	if err != nil {
		e.logger.Warn("media resolution failed, continuing without media",
			zap.String("sid", rec.SID),
			zap.Error(err))
		return nil
	}
	return uris
}

func (e *Engine) touchSummary(conversationID string, last provider.Record) error {
	preview := last.Body
	if preview == "" && last.NumMedia > 0 {
		preview = mediaPlaceholder
	}
	return e.db.TouchConversation(conversationID, truncate(preview, 100), recordTime(last))
}

func (e *Engine) publish(kind string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// fillStatusTimestamps sets the lifecycle timestamps implied by a status.
// Each is only ever set once; stale records can never clear or rewind them.
func fillStatusTimestamps(m *store.Message, st status.Status, rec provider.Record) {
	sentAt := tsOr(rec.DateSent, rec.DateUpdated)
	updatedAt := tsOr(rec.DateUpdated, rec.DateSent)

	switch st {
	case status.Sent:
		if m.SentAt == 0 {
			m.SentAt = sentAt
		}
	case status.Delivered:
		if m.SentAt == 0 {
			m.SentAt = sentAt
		}
		if m.DeliveredAt == 0 {
			m.DeliveredAt = updatedAt
		}
	case status.Read:
		if m.SentAt == 0 {
			m.SentAt = sentAt
		}
		if m.DeliveredAt == 0 {
			m.DeliveredAt = updatedAt
		}
		if m.ReadAt == 0 {
			m.ReadAt = updatedAt
		}
	}
}

// recordTime is the record's creation instant in unix millis, falling back
// through sent time to "now" for records with unparseable dates.
func recordTime(rec provider.Record) int64 {
	if !rec.DateCreated.IsZero() {
		return rec.DateCreated.UnixMilli()
	}
	if !rec.DateSent.IsZero() {
		return rec.DateSent.UnixMilli()
	}
	return time.Now().UnixMilli()
}

func eventTime(rec provider.Record) int64 {
	if !rec.DateUpdated.IsZero() {
		return rec.DateUpdated.UnixMilli()
	}
	return time.Now().UnixMilli()
}

func tsOr(primary, fallback time.Time) int64 {
	if !primary.IsZero() {
		return primary.UnixMilli()
	}
	if !fallback.IsZero() {
		return fallback.UnixMilli()
	}
	return time.Now().UnixMilli()
}

func snapshotPayload(rec provider.Record) string {
	b, _ := json.Marshal(map[string]string{
		"sid":           rec.SID,
		"status":        rec.Status,
		"error_code":    rec.ErrorCode,
		"error_message": rec.ErrorMessage,
	})
	return string(b)
}

// truncate caps s at maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}
