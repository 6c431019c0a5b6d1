package eventbridge

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	defaultSubscriberCapacity = 100
	defaultBacklogLimit       = 50
	defaultDedupeWindow       = 1024
)

// RouterOption customizes Router construction.
type RouterOption func(*Router)

// Router delivers session events to subscribers keyed by session ID with
// buffering, deduplication, and bounded channel semantics.
type Router struct {
	mu           sync.RWMutex
	subscribers  map[string]map[*subscriber]struct{}
	backlog      map[string][]Event
	recentIDs    map[string]struct{}
	recentOrder  []string
	channelSize  int
	backlogLimit int
	dedupeWindow int
	logger       *zap.Logger
}

// Subscription represents an active session subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRouter constructs a router with sane defaults.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		subscribers:  map[string]map[*subscriber]struct{}{},
		backlog:      map[string][]Event{},
		recentIDs:    map[string]struct{}{},
		recentOrder:  make([]string, 0, defaultDedupeWindow),
		channelSize:  defaultSubscriberCapacity,
		backlogLimit: defaultBacklogLimit,
		dedupeWindow: defaultDedupeWindow,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RouterWithLogger injects a logger for drop/diagnostic messages.
func RouterWithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RouterWithSubscriberCapacity overrides the buffered channel size per subscriber.
func RouterWithSubscriberCapacity(cap int) RouterOption {
	return func(r *Router) {
		if cap > 0 {
			r.channelSize = cap
		}
	}
}

// RouterWithBacklogLimit overrides the backlog size for pre-subscription buffering.
func RouterWithBacklogLimit(limit int) RouterOption {
	return func(r *Router) {
		if limit > 0 {
			r.backlogLimit = limit
		}
	}
}

// RouterWithDedupeWindow controls how many recent event IDs are retained.
func RouterWithDedupeWindow(size int) RouterOption {
	return func(r *Router) {
		if size > 0 {
			r.dedupeWindow = size
		}
	}
}

// Subscribe registers for events of one session.
func (r *Router) Subscribe(sessionID string) Subscription {
	key := normalizeKey(sessionID)
	sub := newSubscriber(r.channelSize, r.logger)
	var backlog []Event
	r.mu.Lock()
	if r.subscribers[key] == nil {
		r.subscribers[key] = map[*subscriber]struct{}{}
	}
	r.subscribers[key][sub] = struct{}{}
	if existing := r.backlog[key]; len(existing) > 0 {
		backlog = append(backlog, existing...)
		delete(r.backlog, key)
	}
	r.mu.Unlock()
	for _, event := range backlog {
		sub.deliver(event)
	}
	return Subscription{
		Events: sub.channel(),
		cancel: func() {
			r.removeSubscriber(key, sub)
		},
	}
}

// Publish satisfies the Publisher interface.
func (r *Router) Publish(event Event) {
	r.Route(event)
}

// Route delivers the event to subscribers or buffers it when no subscriber exists.
func (r *Router) Route(event Event) {
	event.Normalize()
	if err := event.Validate(); err != nil {
		r.logger.Debug("eventbridge: rejected event", zap.Error(err), zap.String("type", string(event.Type)))
		return
	}
	if r.isDuplicate(event.EventID) {
		return
	}
	key := normalizeKey(event.SessionID)
	r.mu.RLock()
	subs := r.snapshotSubscribers(key)
	r.mu.RUnlock()
	if len(subs) == 0 {
		r.bufferEvent(key, event)
		return
	}
	for _, sub := range subs {
		sub.deliver(event)
	}
}

// Forget discards the backlog kept for a session that nobody subscribed to.
func (r *Router) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.backlog, normalizeKey(sessionID))
	r.mu.Unlock()
}

func (r *Router) snapshotSubscribers(key string) []*subscriber {
	live := r.subscribers[key]
	if len(live) == 0 {
		return nil
	}
	items := make([]*subscriber, 0, len(live))
	for sub := range live {
		items = append(items, sub)
	}
	return items
}

func (r *Router) removeSubscriber(key string, sub *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs := r.subscribers[key]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(r.subscribers, key)
		}
	}
	sub.close()
}

func (r *Router) bufferEvent(key string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.backlog[key]
	if len(queue) >= r.backlogLimit {
		queue = queue[1:]
		r.logger.Debug("eventbridge: backlog drop",
			zap.String("session_id", key),
			zap.Int("limit", r.backlogLimit),
		)
	}
	queue = append(queue, event)
	r.backlog[key] = queue
}

func (r *Router) isDuplicate(eventID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recentIDs[eventID]; ok {
		return true
	}
	r.recentIDs[eventID] = struct{}{}
	r.recentOrder = append(r.recentOrder, eventID)
	if len(r.recentOrder) > r.dedupeWindow {
		oldest := r.recentOrder[0]
		r.recentOrder = r.recentOrder[1:]
		delete(r.recentIDs, oldest)
	}
	return false
}

func normalizeKey(sessionID string) string {
	return strings.TrimSpace(strings.ToLower(sessionID))
}

type subscriber struct {
	ch     chan Event
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

func newSubscriber(capacity int, logger *zap.Logger) *subscriber {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &subscriber{
		ch:     make(chan Event, capacity),
		logger: logger,
	}
}

func (s *subscriber) channel() <-chan Event {
	return s.ch
}

// deliver holds mu for the whole send. Senders serialize on it, so the
// overflow swap never blocks and close cannot race a send.
func (s *subscriber) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
		return
	default:
	}
	var oldest Event
	select {
	case oldest = <-s.ch:
	default:
		// consumer drained it in between
		s.ch <- event
		return
	}
	if shouldDropOldest(oldest, event) {
		s.logDrop(oldest, "queue overflow")
		s.ch <- event
	} else {
		s.ch <- oldest
		s.logDrop(event, "queue overflow:incoming")
	}
}

func (s *subscriber) logDrop(event Event, reason string) {
	s.logger.Debug("eventbridge: dropped event",
		zap.String("type", string(event.Type)),
		zap.String("reason", reason),
	)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func shouldDropOldest(oldest, incoming Event) bool {
	oldestCritical := isCriticalEvent(oldest.Type)
	incomingCritical := isCriticalEvent(incoming.Type)
	switch {
	case oldestCritical && !incomingCritical:
		return false
	case !oldestCritical && incomingCritical:
		return true
	}
	oldestPreferred := isPreferredDrop(oldest.Type)
	incomingPreferred := isPreferredDrop(incoming.Type)
	if oldestPreferred && !incomingPreferred {
		return true
	}
	if !oldestPreferred && incomingPreferred {
		return false
	}
	return true
}

func isCriticalEvent(kind EventType) bool {
	return kind == EventSessionClosed || kind == EventPhaseChanged
}

func isPreferredDrop(kind EventType) bool {
	return kind == EventComposing
}
