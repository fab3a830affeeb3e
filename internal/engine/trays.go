package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// copyScanLimit caps the copy-number scan; beyond it a timestamp suffix
// guarantees termination.
const copyScanLimit = 100

// TrayManager owns tray identity: number resolution, the shared
// "unnumbered" tray, and release-by-rename during archival. Trays with
// child rows are never deleted here; release only renames and detaches.
type TrayManager struct {
	store Store
}

// NewTrayManager creates a tray manager over the given store.
func NewTrayManager(store Store) *TrayManager {
	return &TrayManager{store: store}
}

// ResolveOrCreate returns the tray with the wanted number for a service
// file, creating it if absent. An empty number resolves to the file's
// single unnumbered tray. A number held by a live tray of another file is
// a collision surfaced from the creation path.
func (tm *TrayManager) ResolveOrCreate(ctx context.Context, number string, fileID uint, sizeTag string) (*models.Tray, error) {
	number = strings.TrimSpace(number)

	if number == "" {
		tray, err := tm.store.UnnumberedTray(ctx, fileID)
		if err == nil {
			return tray, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to look up unnumbered tray: %w", err)
		}
	} else {
		tray, err := tm.store.LiveTrayByNumber(ctx, number)
		if err == nil {
			if tray.ServiceFileID != nil && *tray.ServiceFileID == fileID {
				return tray, nil
			}
			return nil, fmt.Errorf("tray %q: %w", number, ErrTrayNumberTaken)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to look up tray %q: %w", number, err)
		}
	}

	tray := &models.Tray{
		ServiceFileID: &fileID,
		Number:        number,
		SizeTag:       sizeTag,
		Status:        models.TrayStatusOpen,
	}
	if err := tm.store.CreateTray(ctx, tray); err != nil {
		return nil, fmt.Errorf("failed to create tray %q: %w", number, err)
	}
	return tray, nil
}

// FindAvailableCopyNumber scans <original>-copy1, -copy2, ... for the first
// number not held by any tray, live or released. Past the scan cap it falls
// back to a timestamp suffix so the loop always terminates.
func (tm *TrayManager) FindAvailableCopyNumber(ctx context.Context, original string) (string, error) {
	for n := 1; n <= copyScanLimit; n++ {
		candidate := fmt.Sprintf("%s-copy%d", original, n)
		taken, err := tm.store.TrayNumberTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check tray number %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s-copy%d", original, time.Now().UnixNano()), nil
}

// Release detaches a tray from its archived service file: the pipeline
// placement row is removed, the tray is renamed to its next available copy
// number and its file reference cleared. Child rows are untouched, so the
// tray's history survives under the new number and the original number
// becomes reusable. Releasing an already-released tray is a no-op.
func (tm *TrayManager) Release(ctx context.Context, trayID uint) error {
	tray, err := tm.store.TrayByID(ctx, trayID)
	if err != nil {
		return fmt.Errorf("failed to load tray %d: %w", trayID, err)
	}
	if tray.Released() {
		return nil
	}

	if err := tm.store.DeletePipelineItem(ctx, "tray", tray.ID); err != nil {
		return fmt.Errorf("failed to detach tray %d from pipeline: %w", tray.ID, err)
	}

	original := tray.Number
	for attempt := 0; attempt < 3; attempt++ {
		number, err := tm.FindAvailableCopyNumber(ctx, original)
		if err != nil {
			return err
		}
		tray.Number = number
		tray.ServiceFileID = nil
		tray.Status = models.TrayStatusReleased
		err = tm.store.UpdateTray(ctx, tray)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTrayNumberTaken) {
			return fmt.Errorf("failed to release tray %d: %w", tray.ID, err)
		}
		// Lost a rename race; rescan.
	}
	return fmt.Errorf("failed to release tray %d: %w", tray.ID, ErrTrayNumberTaken)
}
