// Package kv offers a small string key-value contract used by the local
// analytics engine and the saved-filter store. Values are opaque JSON
// blobs; callers own the encoding.
package kv

import "errors"

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = errors.New("kv: key not found")

// Store is a flat namespace of string keys to raw JSON values.
type Store interface {
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
}
