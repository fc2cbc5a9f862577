// Package toolbar tracks what the user is doing on the surface and decides
// which engine handles the next click.
package toolbar

import (
	"fmt"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

// State is the active interaction mode.
type State string

// Interaction modes.
const (
	Idle          State = "idle"
	PlacingMarker State = "placing-marker"
	PlacingArrow  State = "placing-arrow"
	DrawingShape  State = "drawing-shape"
)

// Tool is a toolbar button.
type Tool string

// Toolbar buttons.
const (
	ToolSelect Tool = "select"
	ToolMarker Tool = "marker"
	ToolArrow  Tool = "arrow"
	ToolRect   Tool = "rect"
	ToolLine   Tool = "line"
	ToolCircle Tool = "circle"
	ToolText   Tool = "text"
)

// Shape reports whether t draws a shape.
func (t Tool) Shape() bool {
	switch t {
	case ToolRect, ToolLine, ToolCircle, ToolText:
		return true
	}
	return false
}

// Errors returned by Pick. All of them wrap apperr.ErrValidation.
var (
	ErrUnknownTool = fmt.Errorf("unknown tool: %w", apperr.ErrValidation)
	ErrNoGeoCode   = fmt.Errorf("marker tool needs a geo code: %w", apperr.ErrValidation)
	ErrNoTarget    = fmt.Errorf("arrow tool needs a selected marker: %w", apperr.ErrValidation)
)

// Selection is the part of the scene the machine needs to touch.
type Selection interface {
	Selected() string
	ClearSelection()
}

// Pick describes a toolbar click.
type Pick struct {
	Tool    Tool
	GeoCode *models.GeoCode // marker tool
	Sticky  bool            // shape tools stay active after a shape is drawn
}

// Machine is the toolbar state machine. Exactly one state is active.
type Machine struct {
	sel    Selection
	state  State
	tool   Tool
	sticky bool

	geoCode models.GeoCode
	target  string
}

// New returns a machine in the idle state.
func New(sel Selection) *Machine {
	return &Machine{sel: sel, state: Idle, tool: ToolSelect}
}

// State returns the active mode.
func (m *Machine) State() State { return m.state }

// Tool returns the active tool.
func (m *Machine) Tool() Tool { return m.tool }

// Sticky reports whether the shape tool survives completion.
func (m *Machine) Sticky() bool { return m.sticky }

// GeoCode returns the code the next marker click will place.
func (m *Machine) GeoCode() models.GeoCode { return m.geoCode }

// ArrowTarget returns the marker the next arrow click will anchor.
func (m *Machine) ArrowTarget() string { return m.target }

// Pick switches tool. Entering a placing mode clears the selection; the
// arrow tool captures the selected marker first.
func (m *Machine) Pick(p Pick) error {
	switch {
	case p.Tool == ToolSelect:
		m.reset()
		return nil

	case p.Tool == ToolMarker:
		if p.GeoCode == nil || p.GeoCode.ID == 0 {
			return ErrNoGeoCode
		}
		m.reset()
		m.state, m.tool, m.geoCode = PlacingMarker, ToolMarker, *p.GeoCode
		m.sel.ClearSelection()
		return nil

	case p.Tool == ToolArrow:
		target := m.sel.Selected()
		if target == "" {
			return ErrNoTarget
		}
		m.reset()
		m.state, m.tool, m.target = PlacingArrow, ToolArrow, target
		m.sel.ClearSelection()
		return nil

	case p.Tool.Shape():
		m.reset()
		m.state, m.tool, m.sticky = DrawingShape, p.Tool, p.Sticky
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTool, p.Tool)
}

// Complete is called after the active action committed. Placing modes and
// non-sticky shape tools fall back to idle.
func (m *Machine) Complete() {
	if m.state == DrawingShape && m.sticky {
		return
	}
	m.reset()
}

// Escape cancels any placing or drawing mode without committing.
func (m *Machine) Escape() {
	m.reset()
}

func (m *Machine) reset() {
	m.state = Idle
	m.tool = ToolSelect
	m.sticky = false
	m.geoCode = models.GeoCode{}
	m.target = ""
}
