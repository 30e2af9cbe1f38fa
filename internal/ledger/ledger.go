// Package ledger owns the in-memory entry collection and keeps the storage
// slot in step with it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cambi/internal/core"
	"cambi/internal/id"
	"cambi/internal/storage"
)

// Event types published after a successful save.
const (
	EventEntryCreated = "entry.created"
	EventEntryDeleted = "entry.deleted"
)

// EventPublisher receives a notification for every persisted mutation.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, eventType, entryID string) error
}

// Ledger serializes access to the entry collection. The collection is loaded
// once by Open; every mutation rewrites the whole slot.
type Ledger struct {
	mu        sync.RWMutex
	store     storage.EntryStore
	entries   []core.Entry
	publisher EventPublisher
	policy    storage.MalformedPolicy
	newID     func() string
}

type Option func(*Ledger)

// WithPublisher sets the publisher notified after each save.
func WithPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithMalformedPolicy sets what Open does with an undecodable slot.
// The default is storage.PolicyFail.
func WithMalformedPolicy(p storage.MalformedPolicy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithIDGenerator replaces id.New.
func WithIDGenerator(f func() string) Option {
	return func(l *Ledger) { l.newID = f }
}

// Open loads the collection from store.
func Open(ctx context.Context, store storage.EntryStore, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		policy: storage.PolicyFail,
		newID:  id.New,
	}
	for _, opt := range opts {
		opt(l)
	}

	entries, err := store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrMalformedSlot) && l.policy == storage.PolicyReset:
		slog.WarnContext(ctx, "Storage slot is malformed, starting with an empty ledger",
			"policy", string(l.policy), "error", err)
		entries = []core.Entry{}
	default:
		return nil, fmt.Errorf("load entries: %w", err)
	}

	l.entries = entries
	slog.InfoContext(ctx, "Ledger loaded", "entries", len(entries))
	return l, nil
}

// Add validates the form, assigns an id, appends the entry and saves. When
// the save fails the collection is left unchanged.
func (l *Ledger) Add(ctx context.Context, form core.EntryForm) (core.Entry, error) {
	draft, err := form.Parse()
	if err != nil {
		return core.Entry{}, err
	}

	l.mu.Lock()
	e := draft.Entry(l.newID())
	next := make([]core.Entry, len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	next = append(next, e)
	if err := l.store.Save(ctx, next); err != nil {
		l.mu.Unlock()
		return core.Entry{}, fmt.Errorf("save entries: %w", err)
	}
	l.entries = next
	l.mu.Unlock()

	slog.InfoContext(ctx, "Entry created",
		"entry_id", e.ID,
		"date", e.Date.String(),
		"amount_primary", e.AmountPrimary.Decimal.String(),
		"amount_secondary", e.AmountSecondary.Decimal.String())

	l.publish(ctx, EventEntryCreated, e.ID)
	return e, nil
}

// Delete removes the entry with the given id and saves. An unknown id is a
// no-op: it returns false and does not touch storage.
func (l *Ledger) Delete(ctx context.Context, entryID string) (bool, error) {
	l.mu.Lock()
	next := make([]core.Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.ID != entryID {
			next = append(next, e)
		}
	}
	if len(next) == len(l.entries) {
		l.mu.Unlock()
		slog.DebugContext(ctx, "Delete of unknown entry ignored", "entry_id", entryID)
		return false, nil
	}
	if err := l.store.Save(ctx, next); err != nil {
		l.mu.Unlock()
		return false, fmt.Errorf("save entries: %w", err)
	}
	l.entries = next
	l.mu.Unlock()

	slog.InfoContext(ctx, "Entry deleted", "entry_id", entryID)
	l.publish(ctx, EventEntryDeleted, entryID)
	return true, nil
}

// Entries returns a copy of the collection in insertion order.
func (l *Ledger) Entries() []core.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]core.Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Summary filters by a "YYYY-MonthName" token (empty for all) and computes
// totals and the average rate.
func (l *Ledger) Summary(yearMonth string) core.Summary {
	return core.Summarize(l.Entries(), yearMonth)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Ping reports whether the backing store is reachable, for stores that can
// tell.
func (l *Ledger) Ping(ctx context.Context) error {
	if p, ok := l.store.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (l *Ledger) publish(ctx context.Context, eventType, entryID string) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishLedgerEvent(ctx, eventType, entryID); err != nil {
		// The slot is already written; the export catches up on the next run.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", eventType, "entry_id", entryID, "error", err)
	}
}
