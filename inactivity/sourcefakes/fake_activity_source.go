package sourcefakes

import (
	"sync"

	"github.com/LucianaVC752/CajasDelCampo-sub000/inactivity"
)

var _ inactivity.ActivitySource = (*FakeActivitySource)(nil)

// FakeActivitySource fires synthetic interaction events into subscribers.
type FakeActivitySource struct {
	mu        sync.Mutex
	callbacks map[int]func(inactivity.Event)
	next      int
}

func NewFakeActivitySource() *FakeActivitySource {
	return &FakeActivitySource{
		callbacks: make(map[int]func(inactivity.Event)),
	}
}

func (s *FakeActivitySource) Subscribe(callback func(inactivity.Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.callbacks[id] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.callbacks, id)
		})
	}
}

// Fire delivers an event to every subscriber.
func (s *FakeActivitySource) Fire(ev inactivity.Event) {
	s.mu.Lock()
	callbacks := make([]func(inactivity.Event), 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(ev)
	}
}

// SubscriberCount returns the number of attached callbacks.
func (s *FakeActivitySource) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.callbacks)
}
