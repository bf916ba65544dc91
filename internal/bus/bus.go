// Package bus carries opaque change messages between execution contexts.
//
// Delivery is asynchronous: Publish enqueues and returns, each subscription
// drains its own mailbox on a dedicated goroutine, so a handler may publish
// or unsubscribe without deadlocking and messages to one subscriber keep
// their publish order.
package bus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"storefront/internal/logging"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Handler receives the payload published on a topic.
type Handler func(topic string, payload []byte)

// Token identifies one subscription.
type Token uint64

// Bus is the publish/subscribe surface the notifier depends on.
type Bus interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, h Handler) (Token, error)
	Unsubscribe(tok Token) error
	Close() error
}

// Local is an in-process Bus. Every context hosted by the process shares one.
type Local struct {
	eb evbus.Bus

	topicMu sync.Mutex // serializes topic registration with the event bus
	topics  map[string]bool

	mu     sync.Mutex
	subs   map[string]map[Token]*subscription
	byTok  map[Token]*subscription
	closed bool

	next atomic.Uint64
	wg   sync.WaitGroup
}

// NewLocal creates an in-process bus.
func NewLocal() *Local {
	return &Local{
		eb:     evbus.New(),
		topics: make(map[string]bool),
		subs:   make(map[string]map[Token]*subscription),
		byTok:  make(map[Token]*subscription),
	}
}

// Publish hands payload to every current subscriber of topic.
func (l *Local) Publish(topic string, payload []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !l.eb.HasCallback(topic) {
		return nil
	}
	// Subscribers may retain the slice; give them their own copy.
	msg := append([]byte(nil), payload...)
	l.eb.Publish(topic, topic, msg)
	return nil
}

// Subscribe registers h for topic. h runs on the subscription's own goroutine.
func (l *Local) Subscribe(topic string, h Handler) (Token, error) {
	if h == nil {
		return 0, fmt.Errorf("bus: nil handler for %q", topic)
	}
	if err := l.ensureTopic(topic); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}

	tok := Token(l.next.Add(1))
	s := newSubscription(tok, topic, h)
	if l.subs[topic] == nil {
		l.subs[topic] = make(map[Token]*subscription)
	}
	l.subs[topic][tok] = s
	l.byTok[tok] = s

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		s.run()
	}()

	logging.Get(logging.CategorySync).Debugw("bus subscribe", "topic", topic, "token", tok)
	return tok, nil
}

// Unsubscribe stops delivery to the subscription. Messages already queued are
// dropped. It does not wait for an in-flight handler, so it is safe to call
// from inside one.
func (l *Local) Unsubscribe(tok Token) error {
	l.mu.Lock()
	s, ok := l.byTok[tok]
	if ok {
		delete(l.byTok, tok)
		delete(l.subs[s.topic], tok)
	}
	l.mu.Unlock()

	if !ok {
		return nil
	}
	s.stop()
	return nil
}

// Close stops every subscription and waits for their goroutines to exit.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	all := make([]*subscription, 0, len(l.byTok))
	for _, s := range l.byTok {
		all = append(all, s)
	}
	l.byTok = make(map[Token]*subscription)
	l.subs = make(map[string]map[Token]*subscription)
	l.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
	l.wg.Wait()
	return nil
}

// ensureTopic wires a single dispatcher per topic into the event bus.
// The event bus invokes it with its own lock held, so dispatch must never
// call back into the event bus.
func (l *Local) ensureTopic(topic string) error {
	l.topicMu.Lock()
	defer l.topicMu.Unlock()
	if l.topics[topic] {
		return nil
	}
	if err := l.eb.Subscribe(topic, l.dispatch); err != nil {
		return fmt.Errorf("bus: subscribe %q: %w", topic, err)
	}
	l.topics[topic] = true
	return nil
}

func (l *Local) dispatch(topic string, payload []byte) {
	l.mu.Lock()
	targets := make([]*subscription, 0, len(l.subs[topic]))
	for _, s := range l.subs[topic] {
		targets = append(targets, s)
	}
	l.mu.Unlock()

	for _, s := range targets {
		s.enqueue(payload)
	}
}

// subscription is an unbounded mailbox drained by one goroutine.
type subscription struct {
	tok   Token
	topic string
	h     Handler

	mu      sync.Mutex
	queue   [][]byte
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newSubscription(tok Token, topic string, h Handler) *subscription {
	return &subscription{
		tok:   tok,
		topic: topic,
		h:     h,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (s *subscription) enqueue(payload []byte) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, payload)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.queue = nil
	s.mu.Unlock()
	close(s.done)
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if s.stopped || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			msg := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.deliver(msg)
		}
	}
}

func (s *subscription) deliver(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategorySync).Errorw("bus handler panic", "topic", s.topic, "token", s.tok, "panic", r)
		}
	}()
	s.h(s.topic, msg)
}
