package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xelth-com/sharpcrmgo/internal/catalog"
	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// Projector rebuilds the in-memory editing model from persisted rows. It is
// the inverse of the Reconciler and issues no writes.
type Projector struct {
	store Store
	cat   *catalog.Resolver
}

// NewProjector creates a projector over the given store and catalog.
func NewProjector(store Store, cat *catalog.Resolver) *Projector {
	return &Projector{store: store, cat: cat}
}

// ProjectOptions scope a projection. A non-nil DepartmentID keeps only that
// department's rows and drops trays left empty by the filter, so a
// department view shows only its own trays.
type ProjectOptions struct {
	DepartmentID *uint
}

// Project loads a service file's trays and items and produces a fresh edit
// model. Local handles are regenerated on every call.
func (p *Projector) Project(ctx context.Context, fileID uint, opts ProjectOptions) (*EditModel, error) {
	trays, err := p.store.TraysByServiceFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trays: %w", err)
	}

	m := NewEditModel()
	byInstrument := make(map[uint]string) // instrument id -> placement handle

	for i := range trays {
		tray := trays[i]
		items, err := p.store.TrayItems(ctx, tray.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load items for tray %d: %w", tray.ID, err)
		}
		if opts.DepartmentID != nil {
			filtered := items[:0]
			for _, it := range items {
				if it.DepartmentID == *opts.DepartmentID {
					filtered = append(filtered, it)
				}
			}
			items = filtered
			if len(items) == 0 {
				continue
			}
		}

		trayHandle := m.AddTray(LocalTray{
			ID:      tray.ID,
			Number:  tray.Number,
			SizeTag: tray.SizeTag,
		})

		for _, it := range items {
			handle, ok := byInstrument[it.InstrumentID]
			if !ok {
				handle = m.AddPlacement(Placement{
					InstrumentID: it.InstrumentID,
					Quantity:     it.Quantity,
					SerialText:   joinSerials(it.Serials),
					DiscountPct:  it.ItemDiscount,
					Warranty:     it.Warranty,
				})
				byInstrument[it.InstrumentID] = handle
			} else {
				pl, _ := m.Placement(handle)
				if it.Quantity > pl.Quantity {
					pl.Quantity = it.Quantity
				}
				if pl.SerialText == "" {
					pl.SerialText = joinSerials(it.Serials)
				}
				if pl.DiscountPct == 0 {
					pl.DiscountPct = it.ItemDiscount
				}
				if it.Warranty {
					pl.Warranty = true
				}
			}

			// Even instrument-only rows keep their tray placement.
			if _, assigned := m.Assignment[handle]; !assigned {
				m.AssignTray(handle, trayHandle)
			}

			sel, kind := selectionFromRow(it, handle, trayHandle)
			switch kind {
			case models.TrayItemKindService:
				m.Services = append(m.Services, sel)
			case models.TrayItemKindPart:
				m.Parts = append(m.Parts, sel)
			}
		}
	}

	return m, nil
}

// selectionFromRow converts a persisted row into a selection, classifying
// it by its service/part reference or its kind tag.
func selectionFromRow(it models.TrayItem, placementHandle, trayHandle string) (Selection, models.TrayItemKind) {
	sel := Selection{
		PlacementHandle: placementHandle,
		TrayHandle:      trayHandle,
		Quantity:        it.Quantity,
		Price:           it.Price,
		DiscountPct:     it.DiscountPct,
		UnrepairedCount: it.UnrepairedCount,
		Warranty:        it.Warranty,
		Serials:         decodeSerials(it.Serials),
	}
	if len(it.Brands) > 0 {
		sel.Brand = it.Brands[0].Brand
	}

	switch {
	case it.ServiceID != nil:
		sel.ServiceID = *it.ServiceID
		return sel, models.TrayItemKindService
	case it.Kind == models.TrayItemKindService:
		return sel, models.TrayItemKindService
	case it.PartID != nil:
		sel.PartID = *it.PartID
		return sel, models.TrayItemKindPart
	case it.Kind == models.TrayItemKindPart:
		return sel, models.TrayItemKindPart
	default:
		return sel, models.TrayItemKindInstrument
	}
}

func decodeSerials(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var serials []string
	if err := json.Unmarshal(raw, &serials); err != nil {
		return nil
	}
	return serials
}

func joinSerials(raw []byte) string {
	return strings.Join(decodeSerials(raw), ", ")
}
