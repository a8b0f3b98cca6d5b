// Package checklist holds the ordered pickup photo checklist and the
// sequencer that walks a capture session through it.
package checklist

import (
	"fmt"
	"strings"

	"fieldops/internal/model"
)

const imageExt = ".jpg"

var pickupShots = []struct {
	label       string
	description string
}{
	{"OD", "Odometer"},
	{"LS", "Left Side"},
	{"WS", "Windshield"},
	{"FR", "Front"},
	{"RS", "Right Side"},
	{"BK", "Back"},
	{"TP", "Top"},
}

// Pickup returns a fresh copy of the reference pickup checklist.
func Pickup() []model.ChecklistItem {
	items := make([]model.ChecklistItem, 0, len(pickupShots))
	for i, s := range pickupShots {
		items = append(items, model.ChecklistItem{
			Label:         s.label,
			Description:   s.description,
			SequenceIndex: i,
		})
	}
	return items
}

// FileName is the staged and uploaded name of a shot.
func FileName(loadNumber, label string) string {
	return loadNumber + label + imageExt
}

// Sequencer tracks the position within a fixed checklist. It only moves forward.
type Sequencer struct {
	items []model.ChecklistItem
	index int
}

func NewSequencer(items []model.ChecklistItem) (*Sequencer, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("checklist is empty")
	}
	seen := make(map[string]bool, len(items))
	own := make([]model.ChecklistItem, len(items))
	for i, item := range items {
		label := strings.TrimSpace(item.Label)
		if label == "" {
			return nil, fmt.Errorf("checklist item %d has no label", i)
		}
		if strings.ContainsAny(label, `/\.`) {
			return nil, fmt.Errorf("checklist label %q is not a valid file name part", label)
		}
		if seen[label] {
			return nil, fmt.Errorf("checklist label %q appears more than once", label)
		}
		seen[label] = true
		item.Label = label
		item.SequenceIndex = i
		own[i] = item
	}
	return &Sequencer{items: own}, nil
}

// Current returns the item to capture next, or false once the checklist is complete.
func (s *Sequencer) Current() (model.ChecklistItem, bool) {
	if s.IsComplete() {
		return model.ChecklistItem{}, false
	}
	return s.items[s.index], true
}

func (s *Sequencer) Advance() {
	if s.IsComplete() {
		return
	}
	s.index++
}

func (s *Sequencer) IsComplete() bool {
	return s.index >= len(s.items)
}

func (s *Sequencer) Index() int {
	return s.index
}

func (s *Sequencer) Len() int {
	return len(s.items)
}

func (s *Sequencer) Items() []model.ChecklistItem {
	out := make([]model.ChecklistItem, len(s.items))
	copy(out, s.items)
	return out
}

// Lookup finds an item by label regardless of the current position.
func (s *Sequencer) Lookup(label string) (model.ChecklistItem, bool) {
	label = strings.TrimSpace(label)
	for _, item := range s.items {
		if strings.EqualFold(item.Label, label) {
			return item, true
		}
	}
	return model.ChecklistItem{}, false
}
