package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"gorm.io/datatypes"

	"github.com/xelth-com/sharpcrmgo/internal/catalog"
	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// Reconciler converges persisted rows to match an edited in-memory model
// with the minimum destructive action. Writes run as a sequential chain:
// the first failure aborts the remaining steps and is surfaced to the
// caller with earlier writes left in place for operator retry. Trays whose
// stored content the model does not account for are skipped with a warning
// instead of cleared.
type Reconciler struct {
	store Store
	cat   *catalog.Resolver
	trays *TrayManager
}

// NewReconciler creates a reconciler over the given store and catalog.
func NewReconciler(store Store, cat *catalog.Resolver) *Reconciler {
	return &Reconciler{store: store, cat: cat, trays: NewTrayManager(store)}
}

// SaveOptions scope a save.
type SaveOptions struct {
	// DepartmentID enables department-filtered mode: only that department's
	// rows are cleared and written, so other departments' rows on a shared
	// tray survive.
	DepartmentID *uint
	// DefaultDepartmentID is used for instruments with no configured
	// department. When both are absent the save fails with a
	// ConfigurationError.
	DefaultDepartmentID *uint
	// ActorID is recorded on the event-log entry.
	ActorID *uint
}

// SaveResult reports what a save did.
type SaveResult struct {
	Warnings     []Warning `json:"warnings"`
	TraysCreated int       `json:"traysCreated"`
	TraysDeleted int       `json:"traysDeleted"`
	ItemsWritten int       `json:"itemsWritten"`
}

// Save reconciles the model against storage for one service file.
func (r *Reconciler) Save(ctx context.Context, fileID uint, m *EditModel, opts SaveOptions) (*SaveResult, error) {
	file, err := r.store.ServiceFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service file %d: %w", fileID, err)
	}
	if file.Archived() {
		return nil, fmt.Errorf("service file %d: %w", fileID, ErrArchived)
	}

	res := &SaveResult{}

	existing, err := r.store.TraysByServiceFile(ctx, fileID)
	if err != nil {
		return res, fmt.Errorf("failed to load trays: %w", err)
	}
	existingByKey := make(map[string]*models.Tray, len(existing))
	for i := range existing {
		existingByKey[TrayKey(existing[i].Number)] = &existing[i]
	}

	wanted := make(map[string]bool, len(m.Trays))
	for i := range m.Trays {
		wanted[TrayKey(m.Trays[i].Number)] = true
	}

	// How many service/part lines the model aims at each tray key.
	linesByKey := make(map[string]int)
	for i := range m.Services {
		linesByKey[r.targetKey(m, &m.Services[i])]++
	}
	for i := range m.Parts {
		linesByKey[r.targetKey(m, &m.Parts[i])]++
	}

	// Clear wanted trays the model accounts for; protect the rest. A tray
	// with stored rows but no model lines means the model is incomplete
	// (partial load, tray moved onward) and clearing it would lose data.
	protected := make(map[string]bool)
	for key, tray := range existingByKey {
		if !wanted[key] {
			continue
		}
		if linesByKey[key] == 0 {
			count, err := r.store.CountTrayItems(ctx, tray.ID, opts.DepartmentID)
			if err != nil {
				return res, fmt.Errorf("failed to count items for tray %d: %w", tray.ID, err)
			}
			if count > 0 {
				protected[key] = true
				w := Warning{TrayNumber: tray.Number, Reason: "model has no lines for this tray but storage does; leaving it untouched"}
				res.Warnings = append(res.Warnings, w)
				log.Printf("⚠️ Save skip: %s", w)
				continue
			}
			continue
		}
		if err := r.store.DeleteTrayItems(ctx, tray.ID, opts.DepartmentID); err != nil {
			return res, fmt.Errorf("failed to clear tray %d: %w", tray.ID, err)
		}
	}

	// Delete abandoned trays, but only after checking storage directly:
	// out-of-band content keeps a tray alive.
	for key, tray := range existingByKey {
		if wanted[key] {
			continue
		}
		count, err := r.store.CountTrayItems(ctx, tray.ID, nil)
		if err != nil {
			return res, fmt.Errorf("failed to count items for tray %d: %w", tray.ID, err)
		}
		if count > 0 {
			continue
		}
		if err := r.store.DeleteTray(ctx, tray.ID); err != nil {
			return res, fmt.Errorf("failed to delete tray %d: %w", tray.ID, err)
		}
		res.TraysDeleted++
	}

	// Create or reuse every tray the model names. The unnumbered tray is
	// resolved at most once per save through the key cache.
	trayIDByKey := make(map[string]uint)
	trayIDByHandle := make(map[string]uint)
	for i := range m.Trays {
		lt := &m.Trays[i]
		key := TrayKey(lt.Number)
		id, ok := trayIDByKey[key]
		if !ok {
			if ex, found := existingByKey[key]; found {
				id = ex.ID
				// Carry number casing and size tag edits onto the reused tray.
				if n := strings.TrimSpace(lt.Number); n != ex.Number || lt.SizeTag != ex.SizeTag {
					upd := *ex
					upd.Number = n
					upd.SizeTag = lt.SizeTag
					if err := r.store.UpdateTray(ctx, &upd); err != nil {
						return res, fmt.Errorf("failed to update tray %d: %w", ex.ID, err)
					}
				}
			} else {
				tray, err := r.trays.ResolveOrCreate(ctx, lt.Number, fileID, lt.SizeTag)
				if err != nil {
					return res, err
				}
				id = tray.ID
				res.TraysCreated++
			}
			trayIDByKey[key] = id
		}
		trayIDByHandle[lt.Handle] = id
		lt.ID = id
	}

	// Lazy fallback tray for selections and placements with no tray at all.
	defaultTray := func() (uint, string, error) {
		if len(m.Trays) > 0 {
			return trayIDByHandle[m.Trays[0].Handle], TrayKey(m.Trays[0].Number), nil
		}
		if id, ok := trayIDByKey[""]; ok {
			return id, "", nil
		}
		tray, err := r.trays.ResolveOrCreate(ctx, "", fileID, "")
		if err != nil {
			return 0, "", err
		}
		trayIDByKey[""] = tray.ID
		res.TraysCreated++
		return tray.ID, "", nil
	}

	writeSelection := func(sel *Selection, kind models.TrayItemKind) error {
		pl, ok := m.Placement(sel.PlacementHandle)
		if !ok {
			return fmt.Errorf("selection references unknown placement %q", sel.PlacementHandle)
		}
		trayID, key, err := r.resolveTray(m, sel.TrayHandle, sel.PlacementHandle, trayIDByHandle, defaultTray)
		if err != nil {
			return err
		}
		if protected[key] {
			return nil
		}
		deptID, err := r.resolveDepartment(pl.InstrumentID, opts)
		if err != nil {
			return err
		}
		if opts.DepartmentID != nil && deptID != *opts.DepartmentID {
			// Department-filtered saves never write outside their scope.
			return nil
		}

		item := models.TrayItem{
			TrayID:          trayID,
			DepartmentID:    deptID,
			InstrumentID:    pl.InstrumentID,
			Kind:            kind,
			Quantity:        sel.Quantity,
			UnrepairedCount: sel.UnrepairedCount,
			Price:           sel.Price,
			DiscountPct:     sel.DiscountPct,
			ItemDiscount:    pl.DiscountPct,
			Warranty:        sel.Warranty,
			Serials:         encodeSerials(sel.Serials),
		}
		if item.Quantity <= 0 {
			item.Quantity = pl.Quantity
		}
		// Decoded models may carry zero quantities; never persist them.
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if kind == models.TrayItemKindService && sel.ServiceID != 0 {
			item.ServiceID = &sel.ServiceID
		}
		if kind == models.TrayItemKindPart && sel.PartID != 0 {
			item.PartID = &sel.PartID
		}
		if sel.Warranty || len(sel.Serials) > 0 {
			brand := models.TrayItemBrand{Brand: sel.Brand, Warranty: sel.Warranty}
			for _, s := range sel.Serials {
				brand.Serials = append(brand.Serials, models.TrayItemBrandSerial{Serial: s})
			}
			item.Brands = []models.TrayItemBrand{brand}
		}
		if err := r.store.CreateTrayItem(ctx, &item); err != nil {
			return fmt.Errorf("failed to write tray item: %w", err)
		}
		res.ItemsWritten++
		return nil
	}

	for i := range m.Services {
		if err := writeSelection(&m.Services[i], models.TrayItemKindService); err != nil {
			return res, err
		}
	}
	for i := range m.Parts {
		if err := writeSelection(&m.Parts[i], models.TrayItemKindPart); err != nil {
			return res, err
		}
	}

	// Bare instruments: exactly one instrument-only row per placement with
	// no service or part selection.
	for i := range m.Placements {
		pl := &m.Placements[i]
		if m.HasSelections(pl.Handle) {
			continue
		}
		trayID, key, err := r.resolveTray(m, "", pl.Handle, trayIDByHandle, defaultTray)
		if err != nil {
			return res, err
		}
		if protected[key] {
			continue
		}
		deptID, err := r.resolveDepartment(pl.InstrumentID, opts)
		if err != nil {
			return res, err
		}
		if opts.DepartmentID != nil && deptID != *opts.DepartmentID {
			continue
		}
		item := models.TrayItem{
			TrayID:       trayID,
			DepartmentID: deptID,
			InstrumentID: pl.InstrumentID,
			Kind:         models.TrayItemKindInstrument,
			Quantity:     pl.Quantity,
			ItemDiscount: pl.DiscountPct,
			Warranty:     pl.Warranty,
			Serials:      encodeSerials(splitSerialText(pl.SerialText)),
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		if err := r.store.CreateTrayItem(ctx, &item); err != nil {
			return res, fmt.Errorf("failed to write tray item: %w", err)
		}
		res.ItemsWritten++
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"itemsWritten": res.ItemsWritten,
		"warnings":     len(res.Warnings),
	})
	ev := models.ItemEvent{
		ItemType: "service_file",
		ItemID:   fileID,
		Verb:     "saved",
		ActorID:  opts.ActorID,
		Payload:  datatypes.JSON(payload),
	}
	if err := r.store.CreateEvent(ctx, &ev); err != nil {
		return res, fmt.Errorf("failed to log save event: %w", err)
	}

	return res, nil
}

// targetKey computes the tray key a selection will be written to, without
// touching storage: explicit tray, then the placement's assignment, then
// the first model tray, then the unnumbered default.
func (r *Reconciler) targetKey(m *EditModel, sel *Selection) string {
	if sel.TrayHandle != "" {
		if lt, ok := m.TrayByHandle(sel.TrayHandle); ok {
			return TrayKey(lt.Number)
		}
	}
	if th, ok := m.Assignment[sel.PlacementHandle]; ok {
		if lt, ok := m.TrayByHandle(th); ok {
			return TrayKey(lt.Number)
		}
	}
	if len(m.Trays) > 0 {
		return TrayKey(m.Trays[0].Number)
	}
	return ""
}

// resolveTray maps a selection or placement to a concrete tray id and key.
func (r *Reconciler) resolveTray(m *EditModel, trayHandle, placementHandle string, trayIDByHandle map[string]uint, defaultTray func() (uint, string, error)) (uint, string, error) {
	if trayHandle != "" {
		if lt, ok := m.TrayByHandle(trayHandle); ok {
			return trayIDByHandle[lt.Handle], TrayKey(lt.Number), nil
		}
	}
	if th, ok := m.Assignment[placementHandle]; ok {
		if lt, ok := m.TrayByHandle(th); ok {
			return trayIDByHandle[lt.Handle], TrayKey(lt.Number), nil
		}
	}
	return defaultTray()
}

// resolveDepartment returns the department a line must carry. Absence of
// both a configured and a default department is a hard configuration error.
func (r *Reconciler) resolveDepartment(instrumentID uint, opts SaveOptions) (uint, error) {
	if deptID, ok := r.cat.DepartmentOf(instrumentID); ok {
		return deptID, nil
	}
	if opts.DefaultDepartmentID != nil {
		return *opts.DefaultDepartmentID, nil
	}
	return 0, &ConfigurationError{
		InstrumentID: instrumentID,
		Detail:       "no department configured and no default supplied",
	}
}

func encodeSerials(serials []string) datatypes.JSON {
	if len(serials) == 0 {
		return nil
	}
	raw, err := json.Marshal(serials)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func splitSerialText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	serials := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			serials = append(serials, s)
		}
	}
	return serials
}
