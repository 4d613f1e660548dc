package journal

import (
	"context"
	"sync"
)

// DefaultCapacity 是内存记录的默认容量。
const DefaultCapacity = 1000

// MemorySink 在内存中保留最近的调用记录，超出容量后覆盖最旧的一条。
type MemorySink struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewMemorySink 创建内存落地端。
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemorySink{entries: make([]Entry, capacity)}
}

// Record 保存一条记录。
func (m *MemorySink) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = entry
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Entries 按时间从新到旧返回记录，limit <= 0 表示全部。
func (m *MemorySink) Entries(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out
}

// Close 实现 Sink。
func (m *MemorySink) Close() error { return nil }
