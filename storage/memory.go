package storage

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
)

const memoryWatchBuffer = 64

// MemoryHub holds the values of every in-process key. Backends opened from the
// same hub observe each other's writes like tabs sharing one browser profile.
type MemoryHub struct {
	mu      sync.Mutex
	values  map[string][]byte
	subs    map[string]map[*memorySub]struct{}
	dropped atomic.Uint64
}

// NewMemoryHub returns an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		values: make(map[string][]byte),
		subs:   make(map[string]map[*memorySub]struct{}),
	}
}

// Open returns a backend bound to key that identifies its writes as origin.
func (h *MemoryHub) Open(key, origin string) *Memory {
	return &Memory{hub: h, key: key, origin: origin}
}

// Raw returns a copy of the stored bytes for key.
func (h *MemoryHub) Raw(key string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// Dropped counts notifications discarded because a watcher fell behind.
func (h *MemoryHub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *MemoryHub) set(key, origin string, value []byte) {
	h.mu.Lock()
	old, existed := h.values[key]
	if value == nil {
		if !existed {
			h.mu.Unlock()
			return
		}
		delete(h.values, key)
	} else {
		if existed && bytes.Equal(old, value) {
			h.mu.Unlock()
			return
		}
		h.values[key] = bytes.Clone(value)
	}
	targets := make([]*memorySub, 0, len(h.subs[key]))
	for sub := range h.subs[key] {
		if sub.origin != origin {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	n := Notification{Key: key, Origin: origin, NewValue: bytes.Clone(value)}
	for _, sub := range targets {
		if !sub.deliver(n) {
			h.dropped.Add(1)
		}
	}
}

func (h *MemoryHub) subscribe(key, origin string) *memorySub {
	sub := &memorySub{origin: origin, ch: make(chan Notification, memoryWatchBuffer)}
	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*memorySub]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *MemoryHub) unsubscribe(key string, sub *memorySub) {
	h.mu.Lock()
	delete(h.subs[key], sub)
	h.mu.Unlock()
	sub.close()
}

type memorySub struct {
	origin string
	ch     chan Notification
	mu     sync.Mutex
	closed bool
}

func (s *memorySub) deliver(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}

func (s *memorySub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Memory is an in-process [Backend].
type Memory struct {
	hub    *MemoryHub
	key    string
	origin string
}

var _ Backend = (*Memory)(nil)

func (m *Memory) Load(context.Context) (Record, bool, error) {
	raw, ok := m.hub.Raw(m.key)
	if !ok {
		return Record{}, false, nil
	}
	rec, err := DecodeRecord(raw)
	if err != nil {
		return Record{}, true, err
	}
	return rec, true, nil
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return err
	}
	m.hub.set(m.key, m.origin, data)
	return nil
}

func (m *Memory) Remove(context.Context) error {
	m.hub.set(m.key, m.origin, nil)
	return nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan Notification, error) {
	sub := m.hub.subscribe(m.key, m.origin)
	go func() {
		<-ctx.Done()
		m.hub.unsubscribe(m.key, sub)
	}()
	return sub.ch, nil
}

func (m *Memory) Close() error { return nil }
