// Package backend provides persistent key-value backends for preference
// stores. Every backend is scoped to one profile so a process can host many
// users' stores side by side.
package backend

import (
	"context"
	"sync"
)

// Memory is an in-process storage area shared by any number of sessions,
// the way one browser origin's storage is shared by its tabs. A write
// through one session is reported to every other session's listeners.
// Reports are delivered asynchronously, in write order per listener, so a
// writer never runs another session's callback on its own goroutine.
type Memory struct {
	mu        sync.RWMutex
	data      map[string]string
	listeners map[uint64]*listener
	next      uint64
}

// listener queues changes for one callback and runs it on its own goroutine.
type listener struct {
	session *MemorySession
	fn      func(key, value string)

	mu    sync.Mutex
	queue []change
	wake  chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

func newListener(session *MemorySession, fn func(key, value string)) *listener {
	l := &listener{
		session: session,
		fn:      fn,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *listener) push(c change) {
	l.mu.Lock()
	l.queue = append(l.queue, c)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) next() (change, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return change{}, false
	}
	c := l.queue[0]
	l.queue = l.queue[1:]
	return c, true
}

func (l *listener) run() {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			return
		case <-l.wake:
		}
		for c, ok := l.next(); ok; c, ok = l.next() {
			select {
			case <-l.stop:
				return
			default:
			}
			l.fn(c.key, c.value)
		}
	}
}

// close stops delivery and waits for a callback in progress. Queued changes
// are dropped.
func (l *listener) close() {
	close(l.stop)
	<-l.done
}

// NewMemory returns an empty storage area.
func NewMemory() *Memory {
	return &Memory{
		data:      make(map[string]string),
		listeners: make(map[uint64]*listener),
	}
}

// Session returns a new view onto the area. Each preference store should
// use its own session.
func (m *Memory) Session() *MemorySession {
	return &MemorySession{area: m}
}

// Put writes key as an outside writer would: every session is notified.
func (m *Memory) Put(key, value string) {
	m.write(nil, key, value)
}

// Snapshot returns a copy of the area's contents.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// write stores the value and queues it for every listener but the writer's.
// Queuing under the lock keeps each listener's order equal to write order.
func (m *Memory) write(from *MemorySession, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	for _, l := range m.listeners {
		if l.session != from {
			l.push(change{key: key, value: value})
		}
	}
}

// MemorySession is one participant's view of a Memory area.
type MemorySession struct {
	area *Memory
}

func (s *MemorySession) Read(_ context.Context, key string) (string, bool, error) {
	s.area.mu.RLock()
	defer s.area.mu.RUnlock()
	v, ok := s.area.data[key]
	return v, ok, nil
}

func (s *MemorySession) Write(_ context.Context, key, value string) error {
	s.area.write(s, key, value)
	return nil
}

// OnExternalChange registers fn for writes made through other sessions or Put.
// fn runs on a goroutine owned by the registration until it is cancelled.
func (s *MemorySession) OnExternalChange(fn func(key, value string)) (func(), error) {
	m := s.area
	m.mu.Lock()
	id := m.next
	m.next++
	l := newListener(s, fn)
	m.listeners[id] = l
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
			l.close()
		})
	}, nil
}

// MemoryAreas hands out one Memory area per profile.
type MemoryAreas struct {
	mu    sync.Mutex
	areas map[string]*Memory
}

// NewMemoryAreas returns an empty set of areas.
func NewMemoryAreas() *MemoryAreas {
	return &MemoryAreas{areas: make(map[string]*Memory)}
}

// Area returns the profile's area, creating it on first use.
func (a *MemoryAreas) Area(profile string) *Memory {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.areas[profile]
	if !ok {
		m = NewMemory()
		a.areas[profile] = m
	}
	return m
}
