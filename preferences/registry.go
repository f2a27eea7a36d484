package preferences

import "sync"

// subscription is one registered handler. Removal is by pointer identity, so
// the same func registered twice yields two independent subscriptions.
type subscription struct {
	handler Handler
}

// registry maps topics to handlers in registration order.
type registry struct {
	mu     sync.RWMutex
	topics map[Topic][]*subscription
}

func newRegistry() *registry {
	return &registry{topics: make(map[Topic][]*subscription)}
}

func (r *registry) add(topic Topic, h Handler) func() {
	sub := &subscription{handler: h}

	r.mu.Lock()
	r.topics[topic] = append(r.topics[topic], sub)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(topic, sub) })
	}
}

func (r *registry) remove(topic Topic, sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.topics[topic]
	for i, s := range subs {
		if s == sub {
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			r.topics[topic] = next
			return
		}
	}
}

// snapshot returns the handlers registered for topic at call time. Callers
// iterate it without holding the lock, so handlers may subscribe or
// unsubscribe while being notified.
func (r *registry) snapshot(topic Topic) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.topics[topic]
	out := make([]Handler, len(subs))
	for i, s := range subs {
		out[i] = s.handler
	}
	return out
}

func (r *registry) count(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

func (r *registry) clear() {
	r.mu.Lock()
	r.topics = make(map[Topic][]*subscription)
	r.mu.Unlock()
}
