package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"fieldops/internal/model"
)

func browseWithLoads(loads ...model.Load) browseModel {
	m := newBrowseModel(nil, model.Driver{DriverID: "17", CarrierID: "4"})
	m.loading = false
	m.loads[m.currentStatus()] = loads
	return m
}

func TestBrowseStartsOnCarrierChosen(t *testing.T) {
	m := newBrowseModel(nil, model.Driver{})
	if got := m.currentStatus(); got != model.LoadStatusCarrierChosen {
		t.Fatalf("initial tab = %s, want CarrierChosen", got)
	}
	if len(browseTabs) != len(model.BrowseStatuses)+1 {
		t.Fatalf("unexpected tab count %d", len(browseTabs))
	}
}

func TestBrowseTabSwitchFetchesUncachedStatus(t *testing.T) {
	m := browseWithLoads()

	next, cmd := m.updateList(tea.KeyMsg{Type: tea.KeyRight})
	m2 := next.(browseModel)
	if m2.currentStatus() != model.LoadStatusDispatched {
		t.Fatalf("expected Dispatched tab, got %s", m2.currentStatus())
	}
	if !m2.loading || cmd == nil {
		t.Fatal("expected a fetch for an uncached tab")
	}

	m2.loading = false
	m2.loads[model.LoadStatusDispatched] = []model.Load{}
	next, _ = m2.updateList(tea.KeyMsg{Type: tea.KeyLeft})
	next, cmd = next.(browseModel).updateList(tea.KeyMsg{Type: tea.KeyRight})
	if cmd != nil {
		t.Fatal("expected cached tab to skip the fetch")
	}
	if next.(browseModel).loading {
		t.Fatal("cached tab should not be loading")
	}
}

func TestBrowseLoadedMsgForOtherTabIsCached(t *testing.T) {
	m := browseWithLoads()
	next, _ := m.Update(browseLoadedMsg{status: model.LoadStatusPickUp, loads: []model.Load{{LoadID: "632", Status: model.LoadStatusPickUp}}})
	m2 := next.(browseModel)
	if len(m2.loads[model.LoadStatusPickUp]) != 1 {
		t.Fatal("expected PickUp loads cached")
	}
	if m2.currentStatus() != model.LoadStatusCarrierChosen {
		t.Fatal("tab should not change")
	}
}

func TestBrowseEnterOnPickUpLaunchesCapture(t *testing.T) {
	m := browseWithLoads(model.Load{LoadID: "632", Status: model.LoadStatusPickUp})

	next, cmd := m.updateList(tea.KeyMsg{Type: tea.KeyEnter})
	m2 := next.(browseModel)
	if m2.launchCapture != "632" {
		t.Fatalf("launchCapture = %q, want 632", m2.launchCapture)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.Quit")
	}
}

func TestBrowseEnterOnDeliveredShowsDetail(t *testing.T) {
	m := browseWithLoads(model.Load{LoadID: "634", Status: model.LoadStatusDelivered})

	next, cmd := m.updateList(tea.KeyMsg{Type: tea.KeyEnter})
	m2 := next.(browseModel)
	if m2.mode != browseModeDetail || !m2.deliveryBusy || cmd == nil {
		t.Fatalf("expected delivery fetch in detail mode, got mode=%v busy=%v", m2.mode, m2.deliveryBusy)
	}

	next, _ = m2.Update(browseDeliveryMsg{loadID: "634", details: []model.DeliveryDetail{{DriverName: "Dana", DriverPhone: "555"}}})
	m3 := next.(browseModel)
	if m3.deliveryBusy || len(m3.delivery) != 1 {
		t.Fatalf("expected delivery details stored: %+v", m3.delivery)
	}

	next, _ = m3.updateDetail(tea.KeyMsg{Type: tea.KeyEsc})
	if next.(browseModel).mode != browseModeList {
		t.Fatal("esc should return to the list")
	}
}

func TestBrowseEnterOnOtherStatusShowsSummary(t *testing.T) {
	m := browseWithLoads(model.Load{LoadID: "635", Status: model.LoadStatusInvoiced})
	next, cmd := m.updateList(tea.KeyMsg{Type: tea.KeyEnter})
	m2 := next.(browseModel)
	if m2.mode != browseModeDetail || cmd != nil || m2.launchCapture != "" {
		t.Fatalf("expected summary detail without commands, got mode=%v", m2.mode)
	}
	if m2.selected.LoadID != "635" {
		t.Fatalf("selected = %s", m2.selected.LoadID)
	}
}
