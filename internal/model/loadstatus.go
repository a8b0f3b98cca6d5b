package model

import (
	"fmt"
	"strings"
)

// LoadStatus is the closed set of lifecycle states a load moves through.
type LoadStatus int

const (
	LoadStatusCarrierChosen LoadStatus = iota
	LoadStatusAssigned
	LoadStatusDispatched
	LoadStatusPickUp
	LoadStatusDelivered
	LoadStatusInvoiced
	LoadStatusComplete

	loadStatusCount
)

var loadStatusNames = [...]string{
	LoadStatusCarrierChosen: "CarrierChosen",
	LoadStatusAssigned:      "Assigned",
	LoadStatusDispatched:    "Dispatched",
	LoadStatusPickUp:        "PickUp",
	LoadStatusDelivered:     "Delivered",
	LoadStatusInvoiced:      "Invoiced",
	LoadStatusComplete:      "Complete",
}

// Screen identifies the handler a load is routed to when selected.
type Screen int

const (
	ScreenNone Screen = iota
	ScreenLoadSummary
	ScreenPhotoChecklist
	ScreenDeliveryDetail
)

var screenNames = [...]string{
	ScreenNone:           "none",
	ScreenLoadSummary:    "load_summary",
	ScreenPhotoChecklist: "photo_checklist",
	ScreenDeliveryDetail: "delivery_detail",
}

var screenByStatus = [...]Screen{
	LoadStatusCarrierChosen: ScreenLoadSummary,
	LoadStatusAssigned:      ScreenLoadSummary,
	LoadStatusDispatched:    ScreenLoadSummary,
	LoadStatusPickUp:        ScreenPhotoChecklist,
	LoadStatusDelivered:     ScreenDeliveryDetail,
	LoadStatusInvoiced:      ScreenLoadSummary,
	LoadStatusComplete:      ScreenLoadSummary,
}

// Both tables must cover every status; a missing trailing entry fails to compile.
var (
	_ = [1]struct{}{}[len(loadStatusNames)-int(loadStatusCount)]
	_ = [1]struct{}{}[len(screenByStatus)-int(loadStatusCount)]
)

// BrowseStatuses is the tab order of the load browser.
var BrowseStatuses = []LoadStatus{
	LoadStatusDispatched,
	LoadStatusAssigned,
	LoadStatusPickUp,
	LoadStatusDelivered,
	LoadStatusInvoiced,
	LoadStatusComplete,
}

func AllLoadStatuses() []LoadStatus {
	out := make([]LoadStatus, 0, loadStatusCount)
	for s := LoadStatus(0); s < loadStatusCount; s++ {
		out = append(out, s)
	}
	return out
}

func (s LoadStatus) Valid() bool {
	return s >= 0 && s < loadStatusCount
}

func (s LoadStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("LoadStatus(%d)", int(s))
	}
	return loadStatusNames[s]
}

func ParseLoadStatus(raw string) (LoadStatus, error) {
	v := strings.TrimSpace(raw)
	for i, name := range loadStatusNames {
		if strings.EqualFold(name, v) {
			return LoadStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown load status %q", raw)
}

func (s LoadStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid load status %d", int(s))
	}
	return []byte(loadStatusNames[s]), nil
}

func (s *LoadStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseLoadStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ScreenFor returns the screen a load in the given status opens.
func ScreenFor(s LoadStatus) Screen {
	if !s.Valid() {
		return ScreenNone
	}
	return screenByStatus[s]
}

func (s Screen) String() string {
	if s < 0 || int(s) >= len(screenNames) {
		return fmt.Sprintf("Screen(%d)", int(s))
	}
	return screenNames[s]
}
