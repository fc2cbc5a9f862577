package scene

import (
	"encoding/json"
	"fmt"

	"github.com/starford/geoplan/internal/apperr"
)

type snapshot struct {
	Objects []Object `json:"objects"`
}

// Snapshot serializes every persistent object in paint order. Guides and
// view state are left out, so two scenes that differ only in those produce
// identical bytes.
func (s *Scene) Snapshot() ([]byte, error) {
	return s.SnapshotWith()
}

// SnapshotWith serializes the scene with each of committed standing in for
// the live object of the same id. A drag previews positions with Nudge; its
// starting state is what history must see.
func (s *Scene) SnapshotWith(committed ...Object) ([]byte, error) {
	snap := snapshot{Objects: make([]Object, 0, len(s.order))}
	for _, id := range s.order {
		o := s.objects[id]
		if !o.Persistent() {
			continue
		}
		cur := o.Clone()
		for _, c := range committed {
			if c.ID == id {
				cur = c.Clone()
			}
		}
		snap.Objects = append(snap.Objects, cur)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("scene: snapshot: %w", err)
	}
	return data, nil
}

// Restore makes the scene match a snapshot. Objects are removed, added or
// modified individually so that subscribers see ordinary events tagged with
// origin; unchanged objects produce no event.
func (s *Scene) Restore(data []byte, origin Origin) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("scene: restore: %w: %v", apperr.ErrValidation, err)
	}

	want := make(map[string]Object, len(snap.Objects))
	for _, o := range snap.Objects {
		want[o.ID] = o
	}

	s.ClearGuides()
	for _, id := range append([]string(nil), s.order...) {
		if _, ok := want[id]; !ok {
			if _, err := s.Remove(id, origin); err != nil {
				return err
			}
		}
	}

	for _, o := range snap.Objects {
		if _, ok := s.objects[o.ID]; ok {
			if _, err := s.Replace(o, origin); err != nil {
				return err
			}
			continue
		}
		if _, err := s.Add(o, origin); err != nil {
			return err
		}
	}

	order := make([]string, 0, len(snap.Objects))
	for _, o := range snap.Objects {
		order = append(order, o.ID)
	}
	s.order = order
	return nil
}
