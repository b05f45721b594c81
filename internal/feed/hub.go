// Package feed pushes full gallery snapshots to live subscribers whenever the photo table
// changes.
package feed

import (
	"context"
	"sync"

	"github.com/photofolio/internal/db"
	"github.com/photofolio/internal/metrics"
	"go.uber.org/zap"
)

// Source loads the current gallery snapshot, newest first. limit <= 0 means no limit.
type Source interface {
	List(ctx context.Context, limit int) ([]db.Photo, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, limit int) ([]db.Photo, error)

// List calls f.
func (f SourceFunc) List(ctx context.Context, limit int) ([]db.Photo, error) {
	return f(ctx, limit)
}

// Query selects what a subscription receives.
type Query struct {
	Limit int
}

// Handler receives subscription events. Calls for one subscription never overlap.
type Handler struct {
	OnSnapshot func([]db.Photo)
	OnError    func(error)
}

// Hub fans change notifications out to subscriptions.
type Hub struct {
	source Source
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub creates a hub reading snapshots from source.
func NewHub(source Source, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		source: source,
		logger: logger.Named("feed"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscription is one live listener. Cancel it to stop delivery.
type Subscription struct {
	hub     *Hub
	query   Query
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Subscribe registers handler and schedules the initial snapshot. On a closed hub the
// returned subscription is already cancelled.
func (h *Hub) Subscribe(query Query, handler Handler) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		hub:     h,
		query:   query,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	sub.wake <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.once.Do(func() {
			cancel()
			close(sub.done)
		})
		return sub
	}
	h.subs[sub] = struct{}{}
	metrics.FeedSubscribers.Inc()
	h.mu.Unlock()

	go sub.run()
	return sub
}

// Notify marks every subscription stale. Pending refreshes coalesce, so a slow consumer only
// ever loads the newest state.
func (h *Hub) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription. Later Subscribe calls return cancelled subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		metrics.FeedSubscribers.Dec()
	}
	h.mu.Unlock()
}

// Cancel stops delivery. It is safe to call more than once and from inside a handler.
// A callback that is already running finishes; none start afterwards.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
		s.hub.remove(s)
	})
}

// Done is closed once the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		photos, err := s.hub.source.List(s.ctx, s.query.Limit)

		select {
		case <-s.done:
			return
		default:
		}

		if err != nil {
			s.hub.logger.Warn("snapshot failed", zap.Error(err))
			if s.handler.OnError != nil {
				s.handler.OnError(err)
			}
			continue
		}
		if s.handler.OnSnapshot != nil {
			s.handler.OnSnapshot(photos)
		}
	}
}
