package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps backend I/O failures.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrMalformedRecord is returned when a persisted value cannot be decoded.
	ErrMalformedRecord = errors.New("malformed session record")
)

// Record is the only value ever persisted for a session.
type Record struct {
	RenewalCredential string `json:"renewalCredential"`
}

// Notification reports a change of the persisted key made by another
// instance. NewValue is nil when the key was removed. Err is set when the
// transport delivered something that could not be unwrapped; receivers should
// log and skip it.
type Notification struct {
	Key      string
	Origin   string
	NewValue []byte
	Err      error
}

// Removed reports whether the notification signals a deleted key.
func (n Notification) Removed() bool {
	return n.Err == nil && n.NewValue == nil
}

// Backend is implemented by every persisted storage flavour.
type Backend interface {
	// Load returns the persisted record. ok is false when the key is absent.
	Load(ctx context.Context) (rec Record, ok bool, err error)
	// Save replaces the persisted record wholesale.
	Save(ctx context.Context, rec Record) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context) error
	// Watch streams changes made by other instances until ctx ends.
	Watch(ctx context.Context) (<-chan Notification, error)
	// Close releases backend resources.
	Close() error
}

// EncodeRecord renders rec in its persisted JSON form.
func EncodeRecord(rec Record) ([]byte, error) {
	if rec.RenewalCredential == "" {
		return nil, fmt.Errorf("%w: empty renewal credential", ErrMalformedRecord)
	}
	return json.Marshal(rec)
}

// DecodeRecord parses a persisted JSON value.
func DecodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if rec.RenewalCredential == "" {
		return Record{}, fmt.Errorf("%w: missing renewalCredential", ErrMalformedRecord)
	}
	return rec, nil
}
