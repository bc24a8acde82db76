package memory

import (
	"context"
	"sync"
)

// memoryBackend is the in-process fallback ordered log. It has no TTL; the
// process lifetime bounds it.
type memoryBackend struct {
	mu    sync.Mutex
	lists map[string][]Message
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{lists: make(map[string][]Message)}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Append(_ context.Context, userID string, m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists[userID] = append(b.lists[userID], m)
	return nil
}

func (b *memoryBackend) Read(_ context.Context, userID string, limit int64) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	history := b.lists[userID]
	if int64(len(history)) > limit {
		history = history[int64(len(history))-limit:]
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

func (b *memoryBackend) Count(_ context.Context, userID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.lists[userID])), nil
}

func (b *memoryBackend) Replace(_ context.Context, userID string, m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists[userID] = []Message{m}
	return nil
}

func (b *memoryBackend) Clear(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lists, userID)
	return nil
}

func (b *memoryBackend) Ping(context.Context) error { return nil }
