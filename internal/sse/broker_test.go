package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: PositionSaved, PlanID: 7, Data: map[string]any{"position_id": 3}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: position.saved") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"position_id":3`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishPlanEvent_LibraryThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger library.updated.
	b.PublishPlanEvent("created", 1, "ground.png")
	// Second event immediately should NOT trigger another library.updated.
	b.PublishPlanEvent("missing", 2, "old.svg")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	libraryCount := 0
	planCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, LibraryUpdated) {
				libraryCount++
			} else {
				planCount++
			}
		default:
			break loop
		}
	}

	if planCount != 2 {
		t.Errorf("plan events = %d, want 2", planCount)
	}
	if libraryCount != 1 {
		t.Errorf("library events = %d, want 1 (throttled)", libraryCount)
	}
}

func TestSubscribePlanFilters(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.SubscribePlan(7)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: PositionSaved, PlanID: 8, Data: map[string]int{"plan_id": 8}})
	b.Publish(Event{Type: PositionSaved, PlanID: 7, Data: map[string]int{"plan_id": 7}})

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), `"plan_id":7`) {
			t.Errorf("got event for another plan: %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for plan 7 event")
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra event %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: PositionRemoved, Data: map[string]int64{"position_id": 4}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: position.removed") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: PositionSaved, Data: map[string]string{}})
	b.PublishPlanEvent("updated", 1, "x.png")
}

func TestSSEHandlerRejectsBadPlanID(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/events?plan_id=abc", nil)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
