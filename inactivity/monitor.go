// Package inactivity watches a stream of user-interaction events and invokes
// a callback once no qualifying activity has happened for the session
// timeout. The event source is a capability interface so the monitor is
// testable without a real UI surface.
package inactivity

import (
	"sync"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventType identifies a user interaction kind.
type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerMove EventType = "pointermove"
	EventKeyPress    EventType = "keypress"
	EventScroll      EventType = "scroll"
	EventTouchStart  EventType = "touchstart"
	EventClick       EventType = "click"
)

// qualifyingEvents is the fixed set of interaction kinds that reset the
// countdown. Anything else is ignored.
var qualifyingEvents = map[EventType]struct{}{
	EventPointerDown: {},
	EventPointerMove: {},
	EventKeyPress:    {},
	EventScroll:      {},
	EventTouchStart:  {},
	EventClick:       {},
}

// Event is a single user interaction.
type Event struct {
	Type EventType
}

// ActivitySource delivers interaction events. Subscribe returns a function
// that detaches the callback; it must be safe to call more than once.
type ActivitySource interface {
	Subscribe(callback func(Event)) (unsubscribe func())
}

// Monitor schedules a timeout callback after a period of no qualifying user
// interaction. Each qualifying event stamps last-activity in the credential
// store and resets the countdown.
type Monitor struct {
	source  ActivitySource
	store   *credentials.Store
	timeout time.Duration
	nowTime func() time.Time

	mu        sync.Mutex
	timer     *time.Timer
	onTimeout func()
	active    bool
}

// Option defines a function type to modify a Monitor instance.
type Option func(*Monitor)

// WithTimeout overrides the inactivity window (default 30 minutes).
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.timeout = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Monitor) {
		m.nowTime = nowFunc
	}
}

// NewMonitor initializes a Monitor over the given activity source and store.
func NewMonitor(source ActivitySource, store *credentials.Store, options ...Option) (*Monitor, error) {
	if source == nil {
		return nil, errors.New("[NewMonitor] activity source is required")
	}
	if store == nil {
		return nil, errors.New("[NewMonitor] credential store is required")
	}
	m := &Monitor{
		source:  source,
		store:   store,
		timeout: 30 * time.Minute,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Start begins watching for inactivity and returns a disposer that cancels
// the pending countdown and detaches from the activity source. The disposer
// is idempotent. Starting again while a previous run is active is a caller
// error; the session controller disposes the old run first.
func (m *Monitor) Start(onTimeout func()) (stop func()) {
	m.mu.Lock()
	m.onTimeout = onTimeout
	m.active = true
	m.store.TouchActivity()
	m.timer = time.AfterFunc(m.timeout, m.expire)
	m.mu.Unlock()

	unsubscribe := m.source.Subscribe(m.handleEvent)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.active = false
			if m.timer != nil {
				m.timer.Stop()
				m.timer = nil
			}
			m.mu.Unlock()
			unsubscribe()
		})
	}
}

func (m *Monitor) handleEvent(ev Event) {
	if _, ok := qualifyingEvents[ev.Type]; !ok {
		return
	}
	m.store.TouchActivity()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.timer == nil {
		return
	}
	m.timer.Reset(m.timeout)
}

// expire fires when the countdown elapses. Timers drift, so the elapsed time
// since the last stamped activity is re-checked; if activity beat the timer
// the countdown is rescheduled for the remainder.
func (m *Monitor) expire() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}

	last := m.store.LastActivity()
	elapsed := m.nowTime().Sub(last)
	if !last.IsZero() && elapsed < m.timeout {
		if m.timer != nil {
			m.timer.Reset(m.timeout - elapsed)
		}
		m.mu.Unlock()
		return
	}

	m.active = false
	onTimeout := m.onTimeout
	m.mu.Unlock()

	log.Info().Dur("timeout", m.timeout).Msg("inactivity: session timed out")
	if onTimeout != nil {
		onTimeout()
	}
}
