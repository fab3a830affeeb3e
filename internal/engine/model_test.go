package engine

import "testing"

func TestTrayKeyNormalization(t *testing.T) {
	if TrayKey("  A12 ") != "a12" {
		t.Errorf(`Expected "a12", got %q`, TrayKey("  A12 "))
	}
	if TrayKey("a12") != TrayKey("A12") {
		t.Errorf("Tray numbers must compare case-insensitively")
	}
	if TrayKey("   ") != "" {
		t.Errorf("Whitespace-only number must normalize to empty")
	}
}

func TestAddPlacementDefaults(t *testing.T) {
	m := NewEditModel()
	h1 := m.AddPlacement(Placement{InstrumentID: 1})
	h2 := m.AddPlacement(Placement{InstrumentID: 2})

	if h1 == h2 {
		t.Errorf("Handles must be unique")
	}
	pl, ok := m.Placement(h1)
	if !ok {
		t.Fatal("Placement lookup by handle failed")
	}
	if pl.Quantity != 1 {
		t.Errorf("Zero quantity must default to 1, got %d", pl.Quantity)
	}
}

func TestHasSelections(t *testing.T) {
	m := NewEditModel()
	withService := m.AddPlacement(Placement{InstrumentID: 1})
	bare := m.AddPlacement(Placement{InstrumentID: 2})
	m.Services = append(m.Services, Selection{PlacementHandle: withService, ServiceID: 10, Quantity: 1})

	if !m.HasSelections(withService) {
		t.Errorf("Placement with a service line must report selections")
	}
	if m.HasSelections(bare) {
		t.Errorf("Bare placement must not report selections")
	}
}

func TestTrayByKey(t *testing.T) {
	m := NewEditModel()
	m.AddTray(LocalTray{Number: "B7"})

	if _, ok := m.TrayByKey("b7"); !ok {
		t.Errorf("TrayByKey must match case-insensitively")
	}
	if _, ok := m.TrayByKey("b8"); ok {
		t.Errorf("TrayByKey matched a missing number")
	}
}
