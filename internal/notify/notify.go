// Package notify carries compilation lifecycle events from the scheduler,
// the execution context and dependency-signaling views to listeners such as
// the dependency tracker, the CLI progress log and the test harness.
//
// There is no global notification center: a Center is created per run and
// handed explicitly to everything that posts or listens.
package notify

import (
	"fmt"
	"sync"
)

// Kind identifies an event.
type Kind int

const (
	// CompilationStarted opens one compilation attempt of a representation.
	CompilationStarted Kind = iota + 1
	// CompilationEnded closes a successful attempt.
	CompilationEnded
	// CompilationFailed closes an abandoned attempt. Err carries the reason.
	CompilationFailed
	// VisitStarted marks the start of reading an item or layout.
	VisitStarted
	// VisitEnded pairs with VisitStarted.
	VisitEnded
	// ProcessingStarted marks a representation or layout being processed.
	ProcessingStarted
	// ProcessingEnded pairs with ProcessingStarted.
	ProcessingEnded
	// CachedContentUsed reports that a representation was restored from cache.
	CachedContentUsed
)

var kindNames = map[Kind]string{
	CompilationStarted: "compilation_started",
	CompilationEnded:   "compilation_ended",
	CompilationFailed:  "compilation_failed",
	VisitStarted:       "visit_started",
	VisitEnded:         "visit_ended",
	ProcessingStarted:  "processing_started",
	ProcessingEnded:    "processing_ended",
	CachedContentUsed:  "cached_content_used",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Subject is anything an event can be about. References are unique across
// items, layouts and representations.
type Subject interface {
	Reference() string
}

// Event is one posted notification.
type Event struct {
	Seq     int64
	Kind    Kind
	Subject Subject
	Err     error
}

// Reference returns the subject's reference, or "" when there is none.
func (e Event) Reference() string {
	if e.Subject == nil {
		return ""
	}
	return e.Subject.Reference()
}

// Listener receives events synchronously, in posting order.
type Listener func(Event)

// Poster is the posting side of a Center.
type Poster interface {
	Post(kind Kind, subject Subject, err error)
}

// Center dispatches events to subscribed listeners.
//
// Thread-safety: Center is safe for concurrent use, though a run posts from
// a single goroutine. Listeners run on the posting goroutine.
type Center struct {
	mu        sync.Mutex
	clock     *Clock
	nextID    int
	listeners []subscription
}

type subscription struct {
	id int
	fn Listener
}

// NewCenter creates a center with a fresh logical clock.
func NewCenter() *Center {
	return NewCenterWithClock(NewClock())
}

// NewCenterWithClock creates a center stamping events from clock.
func NewCenterWithClock(clock *Clock) *Center {
	return &Center{clock: clock}
}

// Subscribe registers a listener and returns a function that removes it.
// Removing twice is harmless.
func (c *Center) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.listeners {
			if s.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Post stamps an event and delivers it to every listener in subscription
// order.
func (c *Center) Post(kind Kind, subject Subject, err error) {
	c.mu.Lock()
	ev := Event{Seq: c.clock.Next(), Kind: kind, Subject: subject, Err: err}
	listeners := append([]subscription(nil), c.listeners...)
	c.mu.Unlock()

	for _, s := range listeners {
		s.fn(ev)
	}
}

// Discard is a Poster that drops every event.
var Discard Poster = discard{}

type discard struct{}

func (discard) Post(Kind, Subject, error) {}
