package editor

import (
	"context"

	"github.com/starford/geoplan/internal/coords"
	"github.com/starford/geoplan/internal/scene"
)

// MarkerView is a marker as the surface and its store binding see it.
type MarkerView struct {
	ObjectID    string       `json:"object_id"`
	GeoCodeID   int64        `json:"geo_code_id"`
	Code        string       `json:"code,omitempty"`
	Label       string       `json:"label,omitempty"`
	Category    string       `json:"category,omitempty"`
	PositionID  *int64       `json:"position_id"`
	State       string       `json:"state"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	W           float64      `json:"w"`
	H           float64      `json:"h"`
	PosX        float64      `json:"pos_x"`
	PosY        float64      `json:"pos_y"`
	Anchor      *scene.Point `json:"anchor,omitempty"`
	Highlighted bool         `json:"highlighted,omitempty"`
}

// View is a read-only copy of the session state.
type View struct {
	SessionID string         `json:"session_id"`
	PlanID    int64          `json:"plan_id"`
	Tool      string         `json:"tool"`
	Mode      string         `json:"mode"`
	Selected  string         `json:"selected,omitempty"`
	Zoom      float64        `json:"zoom"`
	Markers   []MarkerView   `json:"markers"`
	Shapes    []scene.Object `json:"shapes"`
	CanUndo   bool           `json:"can_undo"`
	CanRedo   bool           `json:"can_redo"`
	Busy      int            `json:"busy"`
	Notices   []Notice       `json:"notices"`
}

// View returns the current state.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.call(ctx, func() error {
		v = s.view()
		return nil
	})
	return v, err
}

// Marker returns one marker's view.
func (s *Session) Marker(ctx context.Context, id string) (MarkerView, bool, error) {
	var (
		mv MarkerView
		ok bool
	)
	err := s.call(ctx, func() error {
		o, found := s.scene.Get(id)
		if !found || o.Kind != scene.KindMarker {
			return nil
		}
		mv, ok = s.markerView(o), true
		return nil
	})
	return mv, ok, err
}

func (s *Session) view() View {
	v := View{
		SessionID: s.id,
		PlanID:    s.plan.ID,
		Tool:      string(s.tools.Tool()),
		Mode:      string(s.tools.State()),
		Selected:  s.scene.Selected(),
		Zoom:      s.zoom,
		Markers:   []MarkerView{},
		Shapes:    []scene.Object{},
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
		Busy:      s.engine.busy,
		Notices:   append([]Notice{}, s.notices...),
	}
	for _, o := range s.scene.Objects() {
		switch {
		case o.Kind == scene.KindMarker:
			v.Markers = append(v.Markers, s.markerView(o))
		case o.Kind.Shape():
			v.Shapes = append(v.Shapes, o)
		}
	}
	return v
}

func (s *Session) markerView(o scene.Object) MarkerView {
	px, py := coords.ToPercent(o.X, o.Y, s.frame)
	mv := MarkerView{
		ObjectID: o.ID, GeoCodeID: o.GeoCodeID, Code: o.Code, Label: o.Label, Category: o.Category,
		State: Unsaved.String(),
		X:     o.X, Y: o.Y, W: o.W, H: o.H, PosX: px, PosY: py,
		Anchor: o.Anchor, Highlighted: o.Highlighted,
	}
	if b := s.engine.bindings[o.ID]; b != nil {
		mv.State = b.state.String()
		if b.positionID != 0 {
			id := b.positionID
			mv.PositionID = &id
		}
	}
	return mv
}
