// Package sse implements a Server-Sent Events broker that pushes position
// and plan-library changes to open editors.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types.
const (
	PositionSaved    = "position.saved"
	PositionRemoved  = "position.removed"
	PositionsCleared = "positions.cleared"
	PlanCreated      = "plan.created"
	PlanUpdated      = "plan.updated"
	PlanMissing      = "plan.missing"
	LibraryUpdated   = "library.updated"
)

// Event represents an SSE event to broadcast. A non-zero PlanID limits
// delivery to clients watching that plan (and to unfiltered clients).
type Event struct {
	Type   string      `json:"type"`
	PlanID int64       `json:"-"`
	Data   interface{} `json:"data"`
}

type planEventReq struct {
	kind   string
	planID int64
	file   string
}

type subscription struct {
	ch     chan []byte
	planID int64
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + library throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	libraryMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	planEventCh   chan planEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. libraryThrottle bounds how often the
// aggregate library.updated event is sent.
func NewBroker(libraryThrottle time.Duration) *Broker {
	if libraryThrottle <= 0 {
		libraryThrottle = 2 * time.Second
	}

	b := &Broker{
		libraryMin:    libraryThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		planEventCh:   make(chan planEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]int64)
	var lastLibrary time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, planID := range clients {
			if planID != 0 && event.PlanID != 0 && planID != event.PlanID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.planID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.planEventCh:
			data := map[string]any{"plan_id": req.planID, "file": req.file}
			switch req.kind {
			case "created":
				broadcast(Event{Type: PlanCreated, PlanID: req.planID, Data: data})
			case "updated":
				broadcast(Event{Type: PlanUpdated, PlanID: req.planID, Data: data})
			case "missing":
				broadcast(Event{Type: PlanMissing, PlanID: req.planID, Data: data})
			}

			now := time.Now()
			if now.Sub(lastLibrary) >= b.libraryMin {
				lastLibrary = now
				broadcast(Event{Type: LibraryUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives every event.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribePlan(0)
}

// SubscribePlan adds a client that only receives events for planID plus
// events not tied to a plan. Zero means all plans.
func (b *Broker) SubscribePlan(planID int64) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, planID: planID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishPlanEvent publishes a plan library change and a throttled
// library.updated event. kind is one of "created", "updated", "missing".
func (b *Broker) PublishPlanEvent(kind string, planID int64, file string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.planEventCh <- planEventReq{kind: kind, planID: planID, file: file}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// plan_id query parameter narrows the stream to one plan.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var planID int64
	if raw := r.URL.Query().Get("plan_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			http.Error(w, "invalid plan_id", http.StatusBadRequest)
			return
		}
		planID = id
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribePlan(planID)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
