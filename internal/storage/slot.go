// Package storage persists the entry collection in a single named slot.
//
// Every backend stores the whole collection as one JSON array. Load reads it
// once; Save always overwrites it. There is no schema version on the payload.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cambi/internal/core"
)

// DefaultSlot is the name of the slot that holds the entry collection.
const DefaultSlot = "currencyEntries"

var (
	// ErrMalformedSlot is returned when a stored payload cannot be decoded.
	ErrMalformedSlot = errors.New("malformed storage slot")
)

// EntryStore loads and saves the full entry collection.
type EntryStore interface {
	// Load returns the stored collection, or an empty one when the slot has
	// never been written.
	Load(ctx context.Context) ([]core.Entry, error)
	// Save overwrites the slot with entries.
	Save(ctx context.Context, entries []core.Entry) error
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Encode serializes entries as a JSON array. A nil slice encodes as [].
func Encode(entries []core.Entry) ([]byte, error) {
	if entries == nil {
		entries = []core.Entry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode entries: %w", err)
	}
	return b, nil
}

// Decode parses a slot payload. An empty payload is an empty collection.
func Decode(payload []byte) ([]core.Entry, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return []core.Entry{}, nil
	}
	var entries []core.Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSlot, err)
	}
	if entries == nil {
		// literal null
		entries = []core.Entry{}
	}
	return entries, nil
}

// MalformedPolicy decides what happens when the slot cannot be decoded at
// startup.
type MalformedPolicy string

const (
	// PolicyFail aborts startup with the decode error.
	PolicyFail MalformedPolicy = "fail"
	// PolicyReset starts with an empty collection; the bad payload is
	// overwritten by the next save.
	PolicyReset MalformedPolicy = "reset"
)

func (p MalformedPolicy) Validate() error {
	switch p {
	case PolicyFail, PolicyReset:
		return nil
	default:
		return fmt.Errorf("invalid malformed slot policy %q (want %q or %q)", string(p), PolicyFail, PolicyReset)
	}
}
