package scene

// Origin tells subscribers who caused a mutation.
type Origin int

const (
	// OriginUser is a direct gesture or API call.
	OriginUser Origin = iota
	// OriginReplay is an undo/redo restoring a snapshot.
	OriginReplay
	// OriginReconcile is the engine applying a store outcome (load, rollback).
	OriginReconcile
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginReplay:
		return "replay"
	case OriginReconcile:
		return "reconcile"
	}
	return "unknown"
}

// EventType names a committed scene mutation.
type EventType string

// Event types emitted by the surface.
const (
	MarkerAdded    EventType = "marker:added"
	MarkerMoved    EventType = "marker:moved"
	MarkerResized  EventType = "marker:resized"
	MarkerAnchored EventType = "marker:anchored"
	MarkerRemoved  EventType = "marker:removed"
	ShapeAdded     EventType = "shape:added"
	ShapeModified  EventType = "shape:modified"
	ShapeRemoved   EventType = "shape:removed"
)

// IsMarker reports whether the event concerns a marker.
func (t EventType) IsMarker() bool {
	switch t {
	case MarkerAdded, MarkerMoved, MarkerResized, MarkerAnchored, MarkerRemoved:
		return true
	}
	return false
}

// Event is delivered synchronously to every subscriber in subscription order.
// Object is the state after the mutation; Previous is the state before it
// (nil for additions).
type Event struct {
	Type     EventType
	Object   Object
	Previous *Object
	Origin   Origin
}

// Handler receives scene events.
type Handler func(Event)

func addedType(k Kind) EventType {
	if k == KindMarker {
		return MarkerAdded
	}
	return ShapeAdded
}

func removedType(k Kind) EventType {
	if k == KindMarker {
		return MarkerRemoved
	}
	return ShapeRemoved
}

// changeType picks the event for a modification. Position wins over size,
// size over anchor. It returns false when nothing persisted changed.
func changeType(before, after Object) (EventType, bool) {
	if before.sameState(after) {
		return "", false
	}
	if after.Kind != KindMarker {
		return ShapeModified, true
	}
	switch {
	case !before.samePosition(after):
		return MarkerMoved, true
	case !before.sameSize(after):
		return MarkerResized, true
	case !before.sameAnchor(after):
		return MarkerAnchored, true
	}
	return MarkerMoved, true
}
