// Package replay runs scripted edits through a headless editor session. It
// is used to reproduce placement bugs against a live server and to seed
// plans from a file.
package replay

import (
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpPlace     = "place"
	OpMove      = "move"
	OpResize    = "resize"
	OpAnchor    = "anchor"
	OpRemove    = "remove"
	OpRemoveAll = "remove_all"
	OpUndo      = "undo"
	OpRedo      = "redo"
)

// Script is a list of edits applied to one plan.
type Script struct {
	PlanID int64  `yaml:"plan_id"`
	Steps  []Step `yaml:"steps"`
}

// Step is one edit. Markers placed with As can be referred to by later
// steps through Ref.
type Step struct {
	Op    string  `yaml:"op"`
	Code  string  `yaml:"code,omitempty"`
	As    string  `yaml:"as,omitempty"`
	Ref   string  `yaml:"ref,omitempty"`
	X     float64 `yaml:"x,omitempty"`
	Y     float64 `yaml:"y,omitempty"`
	W     float64 `yaml:"w,omitempty"`
	H     float64 `yaml:"h,omitempty"`
	Clear bool    `yaml:"clear,omitempty"`
}

// Validate checks the fields each operation needs.
func (s Step) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Op, validation.Required,
			validation.In(OpPlace, OpMove, OpResize, OpAnchor, OpRemove, OpRemoveAll, OpUndo, OpRedo)),
		validation.Field(&s.Code, validation.When(s.Op == OpPlace || s.Op == OpRemoveAll, validation.Required)),
		validation.Field(&s.Ref, validation.When(s.Op == OpMove || s.Op == OpResize || s.Op == OpAnchor || s.Op == OpRemove,
			validation.Required)),
		validation.Field(&s.W, validation.When(s.Op == OpResize, validation.Required, validation.Min(1.0))),
		validation.Field(&s.H, validation.When(s.Op == OpResize, validation.Required, validation.Min(1.0))),
	)
}

// Validate checks every step and that references point at earlier placements.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("replay: script has no steps")
	}
	names := make(map[string]bool)
	for i, st := range s.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("replay: step %d (%s): %w", i+1, st.Op, err)
		}
		if st.Ref != "" && !names[st.Ref] {
			return fmt.Errorf("replay: step %d: unknown ref %q", i+1, st.Ref)
		}
		if st.As != "" {
			names[st.As] = true
		}
	}
	return nil
}

// Parse decodes and validates a YAML script.
func Parse(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("replay: decode script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
