// Package storage provides the key/value persistence the local chat cache
// and client preferences are written to.
package storage

import "errors"

// Storage maps string keys to opaque values. Implementations must be safe
// for concurrent use.
type Storage interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value
	Set(key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// ErrInvalidKey is returned for keys that cannot be stored
var ErrInvalidKey = errors.New("invalid storage key")
