// Package memory implements the per-channel recency buffer: a bounded,
// ordered cache of recent message records that augments vector-search
// recall with plain conversational order.
package memory

import (
	"sync"

	"github.com/chatmind-dev/chatmind/pkg/store"
)

// DefaultCapacity is the bound applied when none is configured.
const DefaultCapacity = 20

// channelBuffer is a single channel's ordered, bounded record list,
// guarded independently so that concurrent channels never contend.
type channelBuffer struct {
	mu      sync.Mutex
	records []store.Record
}

// Memory holds one bounded recency buffer per channel.
type Memory struct {
	capacity int

	mu       sync.RWMutex
	channels map[string]*channelBuffer
}

// New returns an empty Memory with the given per-channel capacity. A
// non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		channels: make(map[string]*channelBuffer),
	}
}

func (m *Memory) bufferFor(channel string) *channelBuffer {
	m.mu.RLock()
	b, ok := m.channels[channel]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.channels[channel]; ok {
		return b
	}
	b = &channelBuffer{}
	m.channels[channel] = b
	return b
}

// Record appends rec to channel's buffer, evicting the oldest record if the
// buffer is at capacity.
func (m *Memory) Record(channel string, rec store.Record) {
	b := m.bufferFor(channel)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records = append(b.records, rec)
	if len(b.records) > m.capacity {
		b.records = b.records[len(b.records)-m.capacity:]
	}
}

// Recent returns a snapshot of channel's buffer, oldest first.
func (m *Memory) Recent(channel string) []store.Record {
	b := m.bufferFor(channel)
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]store.Record, len(b.records))
	copy(out, b.records)
	return out
}
