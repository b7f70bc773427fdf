// Package bus implements the runtime's message bus: topic pub/sub,
// correlation-id based request/response, and point-to-point delivery over
// a single bounded ingress queue (spec §3.E). Grounded on
// alphaforge.core.message.MessageBus, restructured around goroutines and
// channels instead of an asyncio event loop, with lifecycle management
// and errgroup-coordinated shutdown in the style of the teacher's
// internal/engine/engine.go.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tradecore/internal/clock"
	"tradecore/internal/lifecycle"
	"tradecore/pkg/tcerr"
	"tradecore/pkg/types"
)

// Handler processes one event delivered to a subscription.
type Handler func(types.Event)

// RequestHandler answers a request published on a topic, returning the
// response event or an error.
type RequestHandler func(types.Event) (types.Event, error)

// Config controls ingress queue capacity and default request timeout.
type Config struct {
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type envelope struct {
	topic   string
	event   types.Event
	kind    envelopeKind
	corrID  string
	replyCh chan requestResult
}

// requestResult is what a request handler (or the bus itself, on
// no-handler/shutdown) delivers back to a blocked Request call. err is the
// handler's own error, a routing error, or ErrShutdown — never a closed
// channel, so Request always sees exactly one outcome.
type requestResult struct {
	event types.Event
	err   error
}

// trySend delivers res to ch without blocking. A request that already
// timed out, was canceled, or was shut down has stopped listening; the
// late arrival is discarded rather than leaking the dispatch goroutine.
func trySend(ch chan requestResult, res requestResult) {
	select {
	case ch <- res:
	default:
	}
}

type envelopeKind uint8

const (
	kindPublish envelopeKind = iota
	kindRequest
	kindDirect
)

type subscription struct {
	id      string
	topic   string
	handler Handler
	queue   chan types.Event
	done    chan struct{}
}

// Bus is the runtime message bus. Safe for concurrent use once started.
type Bus struct {
	*lifecycle.Base

	cfg   Config
	clock clock.Clock
	log   *slog.Logger

	ingress chan envelope

	mu            sync.RWMutex
	subsByTopic   map[string][]*subscription
	subsByID      map[string]*subscription
	directTargets map[string]Handler
	reqHandlers   map[string]RequestHandler
	pending       map[string]chan requestResult

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs a Bus in the INITIALIZING lifecycle state.
func New(cfg Config, clk clock.Clock, log *slog.Logger) *Bus {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100000
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	b := &Bus{
		cfg:           cfg,
		clock:         clk,
		log:           log.With("component", "bus"),
		ingress:       make(chan envelope, cfg.QueueCapacity),
		subsByTopic:   make(map[string][]*subscription),
		subsByID:      make(map[string]*subscription),
		directTargets: make(map[string]Handler),
		reqHandlers:   make(map[string]RequestHandler),
		pending:       make(map[string]chan requestResult),
	}
	b.Base = lifecycle.NewBase("bus", log, lifecycle.Hooks{
		OnStart: b.onStart,
		OnStop:  b.onStop,
	})
	return b
}

func (b *Bus) onStart() error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	b.group = g
	g.Go(func() error {
		b.dispatchLoop(gctx)
		return nil
	})
	return nil
}

func (b *Bus) onStop() error {
	if b.cancel != nil {
		b.cancel()
	}

	// Release pending requests before waiting for the dispatch goroutine:
	// a request handler still in flight can block the dispatch loop for
	// longer than any caller should wait on shutdown.
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]chan requestResult)
	b.mu.Unlock()
	for _, ch := range pending {
		trySend(ch, requestResult{err: fmt.Errorf("%w: bus stopping", tcerr.ErrShutdown)})
	}

	if b.group != nil {
		_ = b.group.Wait()
	}
	return nil
}

// dispatchLoop is the single reader of the ingress queue; it fans each
// envelope out to subscriber queues (preserving per-topic FIFO since a
// single goroutine drains ingress in order) and resolves request/response
// correlation. On cancellation it keeps routing whatever is already queued
// until the queue is empty or one second has passed, then returns.
func (b *Bus) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			deadline := time.After(time.Second)
			for {
				select {
				case env := <-b.ingress:
					b.route(env)
				case <-deadline:
					return
				default:
					return
				}
			}
		case env := <-b.ingress:
			b.route(env)
		}
	}
}

func (b *Bus) route(env envelope) {
	switch env.kind {
	case kindDirect:
		b.mu.RLock()
		h, ok := b.directTargets[env.topic]
		b.mu.RUnlock()
		if !ok {
			b.log.Warn("no direct target registered", "target", env.topic)
			return
		}
		h(env.event)
	case kindRequest:
		b.mu.RLock()
		h, ok := b.reqHandlers[env.topic]
		b.mu.RUnlock()
		if !ok {
			b.log.Warn("no request handler registered", "topic", env.topic)
			if env.replyCh != nil {
				trySend(env.replyCh, requestResult{err: fmt.Errorf("%w: topic %q", tcerr.ErrNoHandler, env.topic)})
			}
			return
		}
		resp, err := h(env.event)
		if err != nil {
			b.log.Error("request handler failed", "topic", env.topic, "error", err)
		}
		if env.replyCh != nil {
			trySend(env.replyCh, requestResult{event: resp, err: err})
		}
	default: // kindPublish
		b.mu.RLock()
		subs := append([]*subscription(nil), b.subsByTopic[env.topic]...)
		b.mu.RUnlock()
		for _, s := range subs {
			select {
			case s.queue <- env.event:
			default:
				b.log.Warn("subscriber queue full, dropping event", "topic", env.topic, "subscription", s.id)
			}
		}
	}
}

func (b *Bus) enqueue(env envelope) error {
	if err := b.RequireRunning(); err != nil {
		return err
	}
	select {
	case b.ingress <- env:
		return nil
	default:
		return fmt.Errorf("%w: ingress queue at capacity %d", tcerr.ErrBacklogFull, b.cfg.QueueCapacity)
	}
}

// Subscribe registers handler to receive every event published on topic.
// Each subscription gets its own buffered queue and worker goroutine, so
// one slow handler cannot stall delivery to other subscribers, while
// still processing its own topic's events strictly in arrival order.
func (b *Bus) Subscribe(topic string, handler Handler) (string, error) {
	id := uuid.NewString()
	s := &subscription{
		id:      id,
		topic:   topic,
		handler: handler,
		queue:   make(chan types.Event, 1024),
		done:    make(chan struct{}),
	}
	b.mu.Lock()
	b.subsByTopic[topic] = append(b.subsByTopic[topic], s)
	b.subsByID[id] = s
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-s.done:
				return
			case ev := <-s.queue:
				s.handler(ev)
			}
		}
	}()
	return id, nil
}

// Unsubscribe removes a subscription by id.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	s, ok := b.subsByID[id]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: subscription %q", tcerr.ErrNotFound, id)
	}
	delete(b.subsByID, id)
	subs := b.subsByTopic[s.topic]
	for i, cand := range subs {
		if cand.id == id {
			b.subsByTopic[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	close(s.done)
	return nil
}

// Publish enqueues an event for delivery to topic's subscribers. Returns
// ErrBacklogFull if the ingress queue is saturated.
func (b *Bus) Publish(topic string, event types.Event) error {
	return b.enqueue(envelope{topic: topic, event: event, kind: kindPublish})
}

// RegisterDirectTarget registers handler as the receiver for send_direct
// messages addressed to target.
func (b *Bus) RegisterDirectTarget(target string, handler Handler) {
	b.mu.Lock()
	b.directTargets[target] = handler
	b.mu.Unlock()
}

// SendDirect enqueues a point-to-point delivery to target.
func (b *Bus) SendDirect(target string, event types.Event) error {
	return b.enqueue(envelope{topic: target, event: event, kind: kindDirect})
}

// RegisterRequestHandler installs the handler that answers requests sent
// to topic via Request.
func (b *Bus) RegisterRequestHandler(topic string, handler RequestHandler) {
	b.mu.Lock()
	b.reqHandlers[topic] = handler
	b.mu.Unlock()
}

// Request publishes event to topic and blocks for a response, failing
// with ErrNoHandler if no handler is registered and ErrTimedOut if the
// handler does not respond within the bus's configured timeout or ctx is
// canceled first. A handler error is routed back as the request's own
// error rather than a generic failure. If the bus is stopped while a
// request is outstanding, it fails with ErrShutdown.
func (b *Bus) Request(ctx context.Context, topic string, event types.Event) (types.Event, error) {
	b.mu.RLock()
	_, ok := b.reqHandlers[topic]
	b.mu.RUnlock()
	if !ok {
		return types.Event{}, fmt.Errorf("%w: topic %q", tcerr.ErrNoHandler, topic)
	}

	corrID := uuid.NewString()
	reply := make(chan requestResult, 1)
	b.mu.Lock()
	b.pending[corrID] = reply
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, corrID)
		b.mu.Unlock()
	}()

	if err := b.enqueue(envelope{topic: topic, event: event, kind: kindRequest, corrID: corrID, replyCh: reply}); err != nil {
		return types.Event{}, err
	}

	timeout := time.NewTimer(b.cfg.RequestTimeout)
	defer timeout.Stop()
	select {
	case res := <-reply:
		return res.event, res.err
	case <-timeout.C:
		return types.Event{}, fmt.Errorf("%w: request to %q after %s", tcerr.ErrTimedOut, topic, b.cfg.RequestTimeout)
	case <-ctx.Done():
		return types.Event{}, fmt.Errorf("%w: %v", tcerr.ErrTimedOut, ctx.Err())
	}
}

// Stats reports queue depth and subscriber counts for introspection.
type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	SubscriptionCount int
	TopicCount       int
}

// Stats returns a point-in-time snapshot of bus load.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		QueueDepth:        len(b.ingress),
		QueueCapacity:     cap(b.ingress),
		SubscriptionCount: len(b.subsByID),
		TopicCount:        len(b.subsByTopic),
	}
}
