package core

import (
	"errors"
	"fmt"
	"strings"
)

// ChecklistItem names one inspection target, e.g. "Home roof".
type ChecklistItem string

var (
	ErrUnknownItem    = errors.New("unknown checklist item")
	ErrEmptyChecklist = errors.New("checklist has no items")
)

// DefaultItems is the checklist used when the deployment does not define one.
var DefaultItems = []string{
	"Home roof",
	"The electric panel",
	"Heating system",
	"Thermostat",
}

// Checklist is the fixed, ordered set of items a participant photographs each period.
type Checklist struct {
	items []ChecklistItem
	index map[ChecklistItem]int
}

// NewChecklist builds a checklist preserving input order. Blank names are
// rejected and duplicates are dropped.
func NewChecklist(names ...string) (Checklist, error) {
	c := Checklist{index: make(map[ChecklistItem]int, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return Checklist{}, errors.New("checklist item name cannot be empty")
		}
		item := ChecklistItem(n)
		if _, ok := c.index[item]; ok {
			continue
		}
		c.index[item] = len(c.items)
		c.items = append(c.items, item)
	}
	if len(c.items) == 0 {
		return Checklist{}, ErrEmptyChecklist
	}
	return c, nil
}

// DefaultChecklist returns the built-in checklist.
func DefaultChecklist() Checklist {
	c, _ := NewChecklist(DefaultItems...)
	return c
}

// Items returns a copy of the items in checklist order.
func (c Checklist) Items() []ChecklistItem {
	return append([]ChecklistItem(nil), c.items...)
}

// Len returns the number of items.
func (c Checklist) Len() int {
	return len(c.items)
}

// Contains reports whether item belongs to the checklist.
func (c Checklist) Contains(item ChecklistItem) bool {
	_, ok := c.index[item]
	return ok
}

// Parse resolves a user supplied item name.
func (c Checklist) Parse(name string) (ChecklistItem, error) {
	item := ChecklistItem(strings.TrimSpace(name))
	if !c.Contains(item) {
		return "", fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	return item, nil
}
