package main

import (
	"bufio"
	"os"
	"sync"

	"github.com/LucianaVC752/CajasDelCampo-sub000/inactivity"
)

var _ inactivity.ActivitySource = (*stdinActivitySource)(nil)

// stdinActivitySource treats every line typed on stdin as a keypress event,
// standing in for the DOM interaction listeners of the original product.
type stdinActivitySource struct {
	mu        sync.Mutex
	callbacks map[int]func(inactivity.Event)
	nextID    int
	started   bool
	done      chan struct{}
}

func newStdinActivitySource() *stdinActivitySource {
	return &stdinActivitySource{
		callbacks: make(map[int]func(inactivity.Event)),
		done:      make(chan struct{}),
	}
}

func (s *stdinActivitySource) Subscribe(callback func(inactivity.Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.callbacks[id] = callback
	if !s.started {
		s.started = true
		go s.readLoop()
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.callbacks, id)
		})
	}
}

// Close stops the read loop on shutdown.
func (s *stdinActivitySource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *stdinActivitySource) readLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
		}
		s.mu.Lock()
		callbacks := make([]func(inactivity.Event), 0, len(s.callbacks))
		for _, callback := range s.callbacks {
			callbacks = append(callbacks, callback)
		}
		s.mu.Unlock()
		for _, callback := range callbacks {
			callback(inactivity.Event{Type: inactivity.EventKeyPress})
		}
	}
}
