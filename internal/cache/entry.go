// Package cache provides the tiered key/value cache shared by extraction and search.
package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Priority protects valuable entries from eviction. Lower priorities are evicted first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// MarshalText writes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText reads a priority name.
func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePriority parses low, normal, or high.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// Entry is the serialized form of one cached value. Backends store it as a JSON blob.
type Entry struct {
	Value          json.RawMessage `json:"value"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	AccessCount    int             `json:"access_count"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	Priority       Priority        `json:"priority"`
	// SizeBytes is the serialized length of Value. It is an estimate for reporting only.
	SizeBytes int `json:"size_bytes"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// EntryInfo is an entry's bookkeeping without its value.
type EntryInfo struct {
	Key            string    `json:"key"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	AccessCount    int       `json:"access_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Priority       Priority  `json:"priority"`
	SizeBytes      int       `json:"size_bytes"`
}

func infoOf(key string, e *Entry) EntryInfo {
	return EntryInfo{
		Key:            key,
		CreatedAt:      e.CreatedAt,
		ExpiresAt:      e.ExpiresAt,
		AccessCount:    e.AccessCount,
		LastAccessedAt: e.LastAccessedAt,
		Priority:       e.Priority,
		SizeBytes:      e.SizeBytes,
	}
}

func decodeEntry(blob []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(blob, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// evictsBefore orders eviction candidates: lowest priority first, then least recently accessed.
func evictsBefore(a, b EntryInfo) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	}
	return a.Key < b.Key
}
