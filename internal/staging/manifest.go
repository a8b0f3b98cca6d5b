package staging

import (
	"fmt"

	"fieldops/internal/model"
)

// Manifest is the ordered list of staged photos of one session, indexed by
// checklist position.
type Manifest struct {
	photos []model.StagedPhoto
}

// Put appends at the next position or replaces an existing position. Gaps
// are rejected so the order always matches the checklist.
func (m *Manifest) Put(index int, photo model.StagedPhoto) error {
	switch {
	case index == len(m.photos):
		m.photos = append(m.photos, photo)
	case index >= 0 && index < len(m.photos):
		m.photos[index] = photo
	default:
		return fmt.Errorf("manifest position %d out of range (have %d)", index, len(m.photos))
	}
	return nil
}

func (m *Manifest) Len() int {
	return len(m.photos)
}

// IndexOf returns the position of label, or -1.
func (m *Manifest) IndexOf(label string) int {
	for i, p := range m.photos {
		if p.Label == label {
			return i
		}
	}
	return -1
}

func (m *Manifest) Photos() []model.StagedPhoto {
	out := make([]model.StagedPhoto, len(m.photos))
	copy(out, m.photos)
	return out
}
