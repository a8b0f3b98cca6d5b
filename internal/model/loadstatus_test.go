package model

import (
	"encoding/json"
	"testing"
)

func TestEveryLoadStatusRoutesToAScreen(t *testing.T) {
	for _, s := range AllLoadStatuses() {
		if ScreenFor(s) == ScreenNone {
			t.Fatalf("status %s has no screen mapping", s)
		}
	}
	if got := ScreenFor(LoadStatusPickUp); got != ScreenPhotoChecklist {
		t.Fatalf("pickup routes to %s, want %s", got, ScreenPhotoChecklist)
	}
	if got := ScreenFor(LoadStatusDelivered); got != ScreenDeliveryDetail {
		t.Fatalf("delivered routes to %s, want %s", got, ScreenDeliveryDetail)
	}
	if got := ScreenFor(LoadStatus(99)); got != ScreenNone {
		t.Fatalf("unknown status routes to %s, want none", got)
	}
}

func TestParseLoadStatusIsCaseInsensitive(t *testing.T) {
	s, err := ParseLoadStatus(" pickup ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s != LoadStatusPickUp {
		t.Fatalf("got %s want PickUp", s)
	}
	if _, err := ParseLoadStatus("Cancelled"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestLoadDecodesNumericAndStringIDs(t *testing.T) {
	raw := `[{"load_id":632,"locPickup":"Dallas","locDelivery":"Tulsa","load_status":"PickUp"},
	         {"load_id":"A-7","locPickup":"Austin","locDelivery":"Waco","load_status":"Delivered"}]`
	var loads []Load
	if err := json.Unmarshal([]byte(raw), &loads); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if loads[0].LoadID != "632" || loads[0].Status != LoadStatusPickUp {
		t.Fatalf("unexpected first load: %+v", loads[0])
	}
	if loads[1].LoadID != "A-7" || loads[1].Status != LoadStatusDelivered {
		t.Fatalf("unexpected second load: %+v", loads[1])
	}
}

func TestDriverDecodesLoginIDs(t *testing.T) {
	var d Driver
	if err := json.Unmarshal([]byte(`{"drv_Id":12,"carrId":"7"}`), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !d.Valid() || d.DriverID != "12" || d.CarrierID != "7" {
		t.Fatalf("unexpected driver: %+v", d)
	}
}
