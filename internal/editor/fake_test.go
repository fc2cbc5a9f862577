package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

// fakeClient is an in-memory PositionClient that records every call.
type fakeClient struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]models.SaveRequest
	saves   []models.SaveRequest
	removes []int64
	bulk    [][2]int64
	list    []models.Position

	hold       chan struct{} // when set, each save waits for one receive
	holdRemove chan struct{} // same for single removes
	failures   []error       // consumed by successive saves; nil succeeds
	active     map[int64]int // in-flight saves per geo code
	overlap    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{rows: make(map[int64]models.SaveRequest), active: make(map[int64]int)}
}

func (f *fakeClient) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *fakeClient) SavePosition(ctx context.Context, req models.SaveRequest) (*models.Position, error) {
	f.mu.Lock()
	f.saves = append(f.saves, req)
	f.active[req.GeoCodeID]++
	if f.active[req.GeoCodeID] > 1 {
		f.overlap = true
	}
	hold := f.hold
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[req.GeoCodeID]--

	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if err != nil {
			return nil, err
		}
	}

	var id int64
	if req.PositionID != nil {
		id = *req.PositionID
		if _, ok := f.rows[id]; !ok {
			return nil, apperr.ErrNotFound
		}
	} else {
		f.nextID++
		id = f.nextID
	}
	f.rows[id] = req
	return &models.Position{ID: id, GeoCodeID: req.GeoCodeID, PlanID: req.PlanID, PosX: req.PosX, PosY: req.PosY,
		Width: req.Width, Height: req.Height, AnchorX: req.AnchorX, AnchorY: req.AnchorY}, nil
}

func (f *fakeClient) RemovePosition(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	f.removes = append(f.removes, id)
	hold := f.holdRemove
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

func (f *fakeClient) RemoveAllPositions(_ context.Context, geoCodeID, planID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, [2]int64{geoCodeID, planID})
	removed := false
	for id, r := range f.rows {
		if r.GeoCodeID == geoCodeID && r.PlanID == planID {
			delete(f.rows, id)
			removed = true
		}
	}
	return removed, nil
}

func (f *fakeClient) ListPositions(context.Context, int64, bool) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Position(nil), f.list...), nil
}

func (f *fakeClient) savesCopy() []models.SaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SaveRequest(nil), f.saves...)
}

func (f *fakeClient) removesCopy() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.removes...)
}

func (f *fakeClient) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// release lets one held save proceed.
func (f *fakeClient) release(t *testing.T) {
	t.Helper()
	select {
	case f.hold <- struct{}{}:
	case <-time.After(5 * time.Second):
		t.Fatal("no save waiting to be released")
	}
}

// releaseRemove lets one held remove proceed.
func (f *fakeClient) releaseRemove(t *testing.T) {
	t.Helper()
	select {
	case f.holdRemove <- struct{}{}:
	case <-time.After(5 * time.Second):
		t.Fatal("no remove waiting to be released")
	}
}

var (
	plan7  = models.Plan{ID: 7, Name: "Ground floor", Kind: models.PlanRaster, Width: 800, Height: 600}
	codeA1 = models.GeoCode{ID: 1, Code: "A1", Label: "Aisle 1", Category: "aisles"}
	codeB2 = models.GeoCode{ID: 2, Code: "B2", Label: "Bay 2", Category: "bays"}
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestSession(t *testing.T, fc *fakeClient, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(plan7, fc, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Settle(testCtx(t)); err != nil {
		t.Fatalf("settle: %v", err)
	}
}

func markerView(t *testing.T, s *Session, id string) MarkerView {
	t.Helper()
	mv, ok, err := s.Marker(testCtx(t), id)
	if err != nil || !ok {
		t.Fatalf("marker %s: ok=%v err=%v", id, ok, err)
	}
	return mv
}

func eqPtr(p *int64, v int64) bool { return p != nil && *p == v }
