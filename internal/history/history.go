// Package history implements linear undo/redo over whole-scene snapshots.
package history

import (
	"bytes"
	"fmt"
)

// DefaultLimit is the undo depth used when none is configured.
const DefaultLimit = 100

// Source is the scene being tracked. Restore must apply a snapshot produced
// by Snapshot.
type Source interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// Manager keeps the undo and redo stacks for one scene. It is not safe for
// concurrent use; it lives on the editor session loop with its scene.
type Manager struct {
	src     Source
	limit   int
	undo    [][]byte
	redo    [][]byte
	current []byte

	suspended int
}

// New captures the initial snapshot of src.
func New(src Source, limit int) (*Manager, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	cur, err := src.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("history: initial snapshot: %w", err)
	}
	return &Manager{src: src, limit: limit, current: cur}, nil
}

// Suspended reports whether a replay is in progress.
func (m *Manager) Suspended() bool { return m.suspended > 0 }

// Suspend runs fn with recording disabled. Calls nest, and the guard is
// released even when fn fails or panics.
func (m *Manager) Suspend(fn func() error) error {
	m.suspended++
	defer func() { m.suspended-- }()
	return fn()
}

// RecordIfChanged snapshots the scene after a committed mutation. It reports
// whether a new undo step was created.
func (m *Manager) RecordIfChanged() (bool, error) {
	if m.Suspended() {
		return false, nil
	}
	next, err := m.src.Snapshot()
	if err != nil {
		return false, fmt.Errorf("history: snapshot: %w", err)
	}
	if bytes.Equal(next, m.current) {
		return false, nil
	}
	m.undo = append(m.undo, m.current)
	if len(m.undo) > m.limit {
		m.undo = m.undo[len(m.undo)-m.limit:]
	}
	m.redo = nil
	m.current = next
	return true, nil
}

// Rebase adopts the scene's present state as current without creating an
// undo step. It is used after the engine reconciles the scene with the store.
// Undo entries that now equal the current state are dropped since undoing
// to them would change nothing.
func (m *Manager) Rebase() error {
	if m.Suspended() {
		return nil
	}
	next, err := m.src.Snapshot()
	if err != nil {
		return fmt.Errorf("history: snapshot: %w", err)
	}
	m.current = next
	for len(m.undo) > 0 && bytes.Equal(m.undo[len(m.undo)-1], next) {
		m.undo = m.undo[:len(m.undo)-1]
	}
	return nil
}

// Reset drops both stacks and rebases.
func (m *Manager) Reset() error {
	m.undo, m.redo = nil, nil
	return m.Rebase()
}

// Undo restores the previous snapshot. It reports false when there is
// nothing to undo.
func (m *Manager) Undo() (bool, error) {
	if len(m.undo) == 0 {
		return false, nil
	}
	prev := m.undo[len(m.undo)-1]
	if err := m.replay(prev); err != nil {
		return false, err
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, m.current)
	m.current = prev
	return true, nil
}

// Redo re-applies the most recently undone snapshot.
func (m *Manager) Redo() (bool, error) {
	if len(m.redo) == 0 {
		return false, nil
	}
	next := m.redo[len(m.redo)-1]
	if err := m.replay(next); err != nil {
		return false, err
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, m.current)
	m.current = next
	return true, nil
}

func (m *Manager) replay(data []byte) error {
	if err := m.Suspend(func() error { return m.src.Restore(data) }); err != nil {
		return fmt.Errorf("history: replay: %w", err)
	}
	return nil
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) { return len(m.undo), len(m.redo) }
