// Package cache provides the small response caches the HTTP API uses to
// serve repeated reads without re-running queries.
package cache

import "time"

// BytesCache stores serialized API responses with a TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
