package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/modbusreader/internal/logging"
)

// Kind classifies a notification.
type Kind string

const (
	KindError Kind = "error"
	KindInfo  Kind = "info"
)

// Notification is a single operator-facing message. Origin identifies the
// client whose request caused it, when there is one.
type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"messageType"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
	Origin  string    `json:"origin,omitempty"`
}

// Notifier receives operator notifications.
type Notifier interface {
	Notify(kind Kind, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(kind Kind, message string)

// Notify calls f.
func (f NotifierFunc) Notify(kind Kind, message string) { f(kind, message) }

// New builds a notification with a fresh ID stamped with the current time.
func New(kind Kind, message string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: message,
		Time:    time.Now(),
	}
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 32

// Broadcaster fans notifications out to any number of subscribers.
// A subscriber whose buffer is full is dropped and its channel closed.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Notification]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with DefaultBuffer per subscriber.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:   make(map[chan Notification]struct{}),
		buffer: DefaultBuffer,
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// unsubscribes and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, b.buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.remove(ch) })
	}
}

func (b *Broadcaster) remove(ch chan Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Notify implements Notifier.
func (b *Broadcaster) Notify(kind Kind, message string) {
	b.Publish(New(kind, message))
}

// Publish delivers n to every subscriber without blocking.
func (b *Broadcaster) Publish(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- n:
		default:
			delete(b.subs, ch)
			close(ch)
			logging.Warn("Notification subscriber too slow, dropping")
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unsubscribes everyone.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// LogNotifier writes notifications to the process logger.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(kind Kind, message string) {
	logging.LogNotification(string(kind), message)
}

type multi []Notifier

func (m multi) Notify(kind Kind, message string) {
	for _, n := range m {
		n.Notify(kind, message)
	}
}

// Multi returns a Notifier that forwards to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	var m multi
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

// Recorder keeps every notification it receives. It is meant for tests and
// for UI status lines that show the latest message.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, New(kind, message))
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.all))
	copy(out, r.all)
	return out
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}

// Count returns how many notifications of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.all {
		if x.Kind == kind {
			n++
		}
	}
	return n
}
