// Package kv provides the key-value substrate for durable agent state:
// taste vectors, the embedding cache, the vote ledger, and play history.
//
// Keys are hierarchical paths represented as string slices (e.g.
// ["taste", "listener-1"]) joined with ':' for storage. The package
// includes a BadgerDB-backed implementation for production use and an
// in-memory implementation for testing.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// separator joins key segments in the encoded form. Segments must not
// contain it.
const separator = ':'

// Key is a hierarchical path represented as a slice of string segments.
type Key []string

// String returns the encoded form of the key.
func (k Key) String() string {
	return strings.Join(k, string(separator))
}

// encode converts the key to its stored byte representation.
func (k Key) encode() []byte {
	return []byte(k.String())
}

// decodeKey converts a stored byte representation back to a Key.
func decodeKey(b []byte) Key {
	return Key(strings.Split(string(b), string(separator)))
}

// Entry is a key-value pair yielded by List and consumed by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for a key-value store with path-based keys.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries whose key starts with prefix, in
	// lexicographic order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple key-value pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	// Close releases any resources held by the store.
	Close() error
}
