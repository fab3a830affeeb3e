package engine

import (
	"strings"

	"github.com/google/uuid"
)

// The edit model is the denormalized, UI-facing representation of "what is
// in this service file": an arena of instrument placements plus service and
// part selections referencing placements by an opaque local handle. Handles
// are generated fresh on every projection and are never persisted; only
// catalog ids, tray ids and derived fields survive a save.

// Placement is one instrument assigned (or not yet assigned) to a tray.
type Placement struct {
	Handle       string  `json:"handle"`
	InstrumentID uint    `json:"instrumentId"`
	Quantity     int     `json:"quantity"`
	SerialText   string  `json:"serialText,omitempty"`
	DiscountPct  float64 `json:"discountPct,omitempty"`
	Warranty     bool    `json:"warranty,omitempty"`
}

// Selection is one service or part applied to a placement. TrayHandle may
// name an explicit target tray; when empty the placement's assignment (or
// the first tray) decides.
type Selection struct {
	PlacementHandle string   `json:"placementHandle"`
	ServiceID       uint     `json:"serviceId,omitempty"`
	PartID          uint     `json:"partId,omitempty"`
	TrayHandle      string   `json:"trayHandle,omitempty"`
	Quantity        int      `json:"quantity"`
	Price           float64  `json:"price"`
	DiscountPct     float64  `json:"discountPct,omitempty"`
	UnrepairedCount int      `json:"unrepairedCount,omitempty"`
	Warranty        bool     `json:"warranty,omitempty"`
	Brand           string   `json:"brand,omitempty"`
	Serials         []string `json:"serials,omitempty"`
}

// LocalTray mirrors a persisted tray (ID set) or one the user just added
// (ID zero until the next save resolves it).
type LocalTray struct {
	Handle  string `json:"handle"`
	ID      uint   `json:"id,omitempty"`
	Number  string `json:"number"`
	SizeTag string `json:"sizeTag,omitempty"`
}

// EditModel is the full in-memory editing state for one service file.
type EditModel struct {
	Placements []Placement `json:"placements"`
	Services   []Selection `json:"services"`
	Parts      []Selection `json:"parts"`
	Trays      []LocalTray `json:"trays"`
	// Assignment maps a placement handle to the handle of its tray.
	Assignment map[string]string `json:"assignment"`
}

// NewEditModel returns an empty model ready for editing.
func NewEditModel() *EditModel {
	return &EditModel{Assignment: make(map[string]string)}
}

// NewHandle generates an ephemeral local identifier.
func NewHandle() string {
	return uuid.NewString()
}

// AddPlacement appends a placement and returns its handle.
func (m *EditModel) AddPlacement(p Placement) string {
	if p.Handle == "" {
		p.Handle = NewHandle()
	}
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	m.Placements = append(m.Placements, p)
	return p.Handle
}

// AddTray appends a local tray and returns its handle.
func (m *EditModel) AddTray(t LocalTray) string {
	if t.Handle == "" {
		t.Handle = NewHandle()
	}
	m.Trays = append(m.Trays, t)
	return t.Handle
}

// AssignTray records that a placement lives in a tray.
func (m *EditModel) AssignTray(placementHandle, trayHandle string) {
	if m.Assignment == nil {
		m.Assignment = make(map[string]string)
	}
	m.Assignment[placementHandle] = trayHandle
}

// Placement looks up a placement by handle.
func (m *EditModel) Placement(handle string) (*Placement, bool) {
	for i := range m.Placements {
		if m.Placements[i].Handle == handle {
			return &m.Placements[i], true
		}
	}
	return nil, false
}

// TrayByHandle looks up a local tray by handle.
func (m *EditModel) TrayByHandle(handle string) (*LocalTray, bool) {
	for i := range m.Trays {
		if m.Trays[i].Handle == handle {
			return &m.Trays[i], true
		}
	}
	return nil, false
}

// TrayByKey looks up a local tray by normalized number key.
func (m *EditModel) TrayByKey(key string) (*LocalTray, bool) {
	for i := range m.Trays {
		if TrayKey(m.Trays[i].Number) == key {
			return &m.Trays[i], true
		}
	}
	return nil, false
}

// HasSelections reports whether any service or part selection references
// the given placement handle.
func (m *EditModel) HasSelections(placementHandle string) bool {
	for i := range m.Services {
		if m.Services[i].PlacementHandle == placementHandle {
			return true
		}
	}
	for i := range m.Parts {
		if m.Parts[i].PlacementHandle == placementHandle {
			return true
		}
	}
	return false
}

// TrayKey normalizes a tray number for comparison: lower-cased, trimmed.
func TrayKey(number string) string {
	return strings.ToLower(strings.TrimSpace(number))
}
