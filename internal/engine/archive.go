package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/xelth-com/sharpcrmgo/internal/catalog"
	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// Archiver moves a fully processed service file into the permanent archive:
// snapshot first, archived-at flip second, tray release last. The snapshot
// insert loop and the flip share one manual rollback so an archive row
// never survives without the flip, and vice versa. Release failures do not
// undo a completed archival; release is re-runnable on its own.
type Archiver struct {
	store Store
	cat   *catalog.Resolver
	trays *TrayManager
	tags  *TagSync
}

// NewArchiver creates an archiver over the given store and catalog.
func NewArchiver(store Store, cat *catalog.Resolver) *Archiver {
	return &Archiver{store: store, cat: cat, trays: NewTrayManager(store), tags: NewTagSync(store)}
}

// ArchiveResult reports the outcome of an archival.
type ArchiveResult struct {
	ArchiveID       string `json:"archiveId"`
	ItemCount       int    `json:"itemCount"`
	AlreadyArchived bool   `json:"alreadyArchived"`
	// ReleaseErr is set when archival succeeded but tray release did not;
	// the caller logs it and may re-run release independently.
	ReleaseErr error `json:"-"`
}

// snapshot is the payload stored on the archive header row.
type snapshot struct {
	File         *models.ServiceFile   `json:"file"`
	Trays        []models.Tray         `json:"trays"`
	StageHistory []models.StageHistory `json:"stageHistory"`
	Events       []models.ItemEvent    `json:"events"`
	Conversation []models.Message      `json:"conversation"`
}

// Archive snapshots a service file and flips it to archived. Calling it on
// an already-archived file returns the existing identifiers without side
// effects.
func (a *Archiver) Archive(ctx context.Context, fileID uint, actorID *uint) (*ArchiveResult, error) {
	file, err := a.store.ServiceFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service file %d: %w", fileID, err)
	}

	if file.Archived() {
		arch, err := a.store.ArchiveByServiceFile(ctx, fileID)
		if err != nil {
			return nil, fmt.Errorf("file %d is archived but its archive row is missing: %w", fileID, err)
		}
		items, err := a.store.ArchiveItems(ctx, arch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load archive items: %w", err)
		}
		return &ArchiveResult{ArchiveID: arch.ID, ItemCount: len(items), AlreadyArchived: true}, nil
	}

	// Read everything before writing anything: trays, items with sub-rows,
	// stage history, event log, conversation. The snapshot captures tray
	// numbers before release renames them.
	trays, err := a.store.TraysByServiceFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trays: %w", err)
	}
	trayIDs := make([]uint, 0, len(trays))
	itemsByTray := make(map[uint][]models.TrayItem, len(trays))
	for i := range trays {
		trayIDs = append(trayIDs, trays[i].ID)
		items, err := a.store.TrayItems(ctx, trays[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load items for tray %d: %w", trays[i].ID, err)
		}
		itemsByTray[trays[i].ID] = items
	}
	history, err := a.store.StageHistoryByTrays(ctx, trayIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage history: %w", err)
	}
	events, err := a.store.EventsByFile(ctx, fileID, trayIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load event log: %w", err)
	}
	conversation, err := a.store.MessagesByLead(ctx, file.LeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	payload, err := json.Marshal(snapshot{
		File:         file,
		Trays:        trays,
		StageHistory: history,
		Events:       events,
		Conversation: conversation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble snapshot: %w", err)
	}

	arch := models.ServiceFileArchive{
		ID:            uuid.NewString(),
		ServiceFileID: fileID,
		LeadID:        file.LeadID,
		Payload:       datatypes.JSON(payload),
		ArchivedBy:    actorID,
	}
	if err := a.store.CreateArchive(ctx, &arch); err != nil {
		return nil, fmt.Errorf("failed to create archive row: %w", err)
	}

	itemCount := 0
	for i := range trays {
		tray := &trays[i]
		for _, it := range itemsByTray[tray.ID] {
			row := a.flattenItem(tray, it)
			row.ArchiveID = arch.ID
			if err := a.store.CreateArchiveItem(ctx, &row); err != nil {
				a.rollback(ctx, arch.ID)
				return nil, fmt.Errorf("failed to archive tray item (row %d): %w", itemCount+1, err)
			}
			itemCount++
		}
	}

	if err := a.store.SetArchivedAt(ctx, fileID, time.Now().UTC()); err != nil {
		a.rollback(ctx, arch.ID)
		return nil, fmt.Errorf("failed to mark service file archived: %w", err)
	}

	ev := models.ItemEvent{
		ItemType: "service_file",
		ItemID:   fileID,
		Verb:     "archived",
		ActorID:  actorID,
	}
	if err := a.store.CreateEvent(ctx, &ev); err != nil {
		log.Printf("⚠️ Archived file %d but failed to log event: %v", fileID, err)
	}

	// The file just left the active set, so the lead's derived tags may be
	// stale now.
	if err := a.tags.SyncLeadTags(ctx, file.LeadID); err != nil {
		log.Printf("⚠️ Archived file %d but tag sync failed for lead %d: %v", fileID, file.LeadID, err)
	}

	result := &ArchiveResult{ArchiveID: arch.ID, ItemCount: itemCount}

	// Release runs after the archive is fully committed; a failure here is
	// reported separately and never blocks the archival.
	if err := a.releaseTrays(ctx, fileID, trays); err != nil {
		log.Printf("⚠️ Archived file %d but tray release failed: %v", fileID, err)
		result.ReleaseErr = err
	}

	return result, nil
}

// rollback removes the archive rows written so far. Best effort: a failure
// here is logged, leaving the retry path to the idempotency check.
func (a *Archiver) rollback(ctx context.Context, archiveID string) {
	if err := a.store.DeleteArchiveItems(ctx, archiveID); err != nil {
		log.Printf("⚠️ Rollback: failed to delete archive items for %s: %v", archiveID, err)
		return
	}
	if err := a.store.DeleteArchive(ctx, archiveID); err != nil {
		log.Printf("⚠️ Rollback: failed to delete archive row %s: %v", archiveID, err)
	}
}

// releaseTrays first tries the single server-side procedure; when it is not
// installed the client-driven sequence runs tray by tray. The fallback is
// not atomic across trays, which is tolerable because re-running resolves
// already-released trays to no-ops.
func (a *Archiver) releaseTrays(ctx context.Context, fileID uint, trays []models.Tray) error {
	err := a.store.ReleaseTraysOnArchive(ctx, fileID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnsupported) {
		return fmt.Errorf("release procedure failed: %w", err)
	}

	for i := range trays {
		if err := a.trays.Release(ctx, trays[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// flattenItem denormalizes one tray item into an archive row, folding the
// brand/serial/warranty sub-rows into a descriptive string.
func (a *Archiver) flattenItem(tray *models.Tray, it models.TrayItem) models.ArchiveTrayItem {
	row := models.ArchiveTrayItem{
		TrayNumber:      tray.Number,
		DepartmentName:  a.cat.DepartmentName(it.DepartmentID),
		InstrumentName:  a.cat.InstrumentName(it.InstrumentID),
		Kind:            string(it.Kind),
		Quantity:        it.Quantity,
		UnrepairedCount: it.UnrepairedCount,
		Price:           it.Price,
		DiscountPct:     it.DiscountPct,
	}
	if it.ServiceID != nil {
		row.ServiceName = a.cat.ServiceName(*it.ServiceID)
	}
	if it.PartID != nil {
		row.PartName = a.cat.PartName(*it.PartID)
	}
	row.Details = describeLine(it)
	return row
}

// describeLine builds the human-readable brand/warranty/serial summary.
func describeLine(it models.TrayItem) string {
	var parts []string
	for _, b := range it.Brands {
		desc := b.Brand
		if desc == "" {
			desc = "unbranded"
		}
		if b.Warranty {
			desc += ", warranty"
		}
		if len(b.Serials) > 0 {
			serials := make([]string, 0, len(b.Serials))
			for _, s := range b.Serials {
				serials = append(serials, s.Serial)
			}
			desc += ", serials: " + strings.Join(serials, ", ")
		}
		parts = append(parts, desc)
	}
	if len(parts) == 0 {
		if it.Warranty {
			parts = append(parts, "warranty")
		}
		if serials := decodeSerials(it.Serials); len(serials) > 0 {
			parts = append(parts, "serials: "+strings.Join(serials, ", "))
		}
	}
	return strings.Join(parts, "; ")
}
