package services

import (
	"sync"

	"homeinspect/internal/core"
)

// SlotState is the per-item state observed by the caller.
type SlotState string

const (
	SlotEmpty     SlotState = "empty"
	SlotUploading SlotState = "uploading"
	SlotPresent   SlotState = "present"
	SlotDeleting  SlotState = "deleting"
)

// Slot is one checklist item within the current period.
type Slot struct {
	Item   core.ChecklistItem `json:"item"`
	State  SlotState          `json:"state"`
	Record *core.UploadRecord `json:"record,omitempty"`
}

type slotKey struct {
	owner string
	item  core.ChecklistItem
}

// slotTracker holds the in-flight state of each (owner, item) slot. Resting
// states are never stored; they are derived from the metadata store.
type slotTracker struct {
	mu       sync.Mutex
	inflight map[slotKey]SlotState
}

func newSlotTracker() *slotTracker {
	return &slotTracker{inflight: make(map[slotKey]SlotState)}
}

// acquire marks the slot as state, failing with ErrSlotBusy if another
// operation holds it. The returned func reverts the slot to its resting state.
func (t *slotTracker) acquire(owner string, item core.ChecklistItem, state SlotState) (func(), error) {
	k := slotKey{owner: owner, item: item}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.inflight[k]; ok {
		return nil, &busyError{item: item, state: cur}
	}
	t.inflight[k] = state
	return func() {
		t.mu.Lock()
		delete(t.inflight, k)
		t.mu.Unlock()
	}, nil
}

func (t *slotTracker) state(owner string, item core.ChecklistItem) (SlotState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.inflight[slotKey{owner: owner, item: item}]
	return s, ok
}

type busyError struct {
	item  core.ChecklistItem
	state SlotState
}

func (e *busyError) Error() string {
	return string(e.item) + ": " + string(e.state) + " in progress"
}

func (e *busyError) Unwrap() error { return ErrSlotBusy }
