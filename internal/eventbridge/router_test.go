package eventbridge

import (
	"testing"
)

func TestRouterBuffersAndFlushes(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(4))
	first := Event{EventID: "evt-1", SessionID: "alpha", Type: EventComposing}
	second := Event{EventID: "evt-2", SessionID: "alpha", Type: EventMessageAppended}
	router.Route(first)
	router.Route(second)
	sub := router.Subscribe("alpha")
	defer sub.Close()
	got1 := <-sub.Events
	if got1.EventID != first.EventID {
		t.Fatalf("expected first buffered event, got %s", got1.EventID)
	}
	got2 := <-sub.Events
	if got2.EventID != second.EventID {
		t.Fatalf("expected second buffered event, got %s", got2.EventID)
	}
	if got1.Version != EventSchemaVersion {
		t.Fatalf("expected version to be defaulted, got %d", got1.Version)
	}
}

func TestRouterDedupeByEventID(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe("alpha")
	defer sub.Close()
	event := Event{EventID: "evt-1", SessionID: "alpha", Type: EventComposing}
	router.Route(event)
	router.Route(event)
	select {
	case got := <-sub.Events:
		if got.EventID != event.EventID {
			t.Fatalf("unexpected event: %s", got.EventID)
		}
	default:
		t.Fatalf("expected first delivery")
	}
	select {
	case <-sub.Events:
		t.Fatalf("duplicate event delivered")
	default:
	}
}

func TestRouterIsolatesSessions(t *testing.T) {
	router := NewRouter()
	alpha := router.Subscribe("alpha")
	defer alpha.Close()
	beta := router.Subscribe("BETA")
	defer beta.Close()
	router.Publish(Event{EventID: "evt-1", SessionID: "beta", Type: EventGateChanged})
	select {
	case <-alpha.Events:
		t.Fatalf("alpha received beta's event")
	default:
	}
	if got := <-beta.Events; got.EventID != "evt-1" {
		t.Fatalf("expected beta event, got %s", got.EventID)
	}
}

func TestRouterRejectsIncompleteEvents(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe("alpha")
	defer sub.Close()
	router.Route(Event{SessionID: "alpha", Type: EventComposing})
	router.Route(Event{EventID: "evt-2", SessionID: "alpha"})
	select {
	case got := <-sub.Events:
		t.Fatalf("unexpected delivery %+v", got)
	default:
	}
}

func TestRouterDropsOldestPreferredEventOnOverflow(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1))
	sub := router.Subscribe("alpha")
	defer sub.Close()
	oldest := Event{EventID: "evt-1", SessionID: "alpha", Type: EventComposing}
	critical := Event{EventID: "evt-2", SessionID: "alpha", Type: EventSessionClosed}
	router.Route(oldest)
	router.Route(critical)
	if got := <-sub.Events; got.EventID != critical.EventID {
		t.Fatalf("expected critical event to replace oldest, got %s", got.EventID)
	}
}

func TestRouterDropsIncomingWhenOldestCritical(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1))
	sub := router.Subscribe("alpha")
	defer sub.Close()
	oldest := Event{EventID: "evt-1", SessionID: "alpha", Type: EventPhaseChanged}
	droppable := Event{EventID: "evt-2", SessionID: "alpha", Type: EventComposing}
	router.Route(oldest)
	router.Route(droppable)
	if got := <-sub.Events; got.EventID != oldest.EventID {
		t.Fatalf("expected oldest critical event to remain, got %s", got.EventID)
	}
	select {
	case <-sub.Events:
		t.Fatalf("unexpected extra event")
	default:
	}
}

func TestRouterBacklogLimitAndForget(t *testing.T) {
	router := NewRouter(RouterWithBacklogLimit(2))
	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		router.Route(Event{EventID: id, SessionID: "alpha", Type: EventMessageAppended})
	}
	sub := router.Subscribe("alpha")
	if got := <-sub.Events; got.EventID != "evt-2" {
		t.Fatalf("expected oldest backlog entry dropped, got %s", got.EventID)
	}
	if got := <-sub.Events; got.EventID != "evt-3" {
		t.Fatalf("expected evt-3, got %s", got.EventID)
	}
	sub.Close()
	if _, ok := <-sub.Events; ok {
		t.Fatalf("expected closed channel after Close")
	}

	router.Route(Event{EventID: "evt-4", SessionID: "gamma", Type: EventComposing})
	router.Forget("gamma")
	late := router.Subscribe("gamma")
	defer late.Close()
	select {
	case got := <-late.Events:
		t.Fatalf("expected backlog to be forgotten, got %s", got.EventID)
	default:
	}
}

func TestDiscardPublisher(t *testing.T) {
	Discard.Publish(Event{EventID: "evt-1"})
	var calls int
	PublisherFunc(func(Event) { calls++ }).Publish(Event{})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}
