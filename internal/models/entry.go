// Package models holds the shared data types of the cache tiers.
package models

import (
	"time"

	"go.uber.org/atomic"
)

// Entry is a cache entry held by the local tier. Data is the encoded wire
// payload; the compression flag lives inside the payload itself.
type Entry struct {
	Data           []byte
	InsertedAt     time.Time
	Expiration     time.Time
	AccessCount    *atomic.Int64
	LastAccessTime *atomic.Time
}

// NewEntry creates an Entry expiring at the given time.
func NewEntry(data []byte, expiration time.Time) *Entry {
	now := time.Now()
	return &Entry{
		Data:           data,
		InsertedAt:     now,
		Expiration:     expiration,
		AccessCount:    atomic.NewInt64(1),
		LastAccessTime: atomic.NewTime(now),
	}
}

// IsExpired checks if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// Touch increments the access count and updates the last access time.
func (e *Entry) Touch() {
	e.AccessCount.Inc()
	e.LastAccessTime.Store(time.Now())
}
