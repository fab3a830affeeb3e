package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/xelth-com/sharpcrmgo/internal/models"
)

func seedArchivableFile(store *memStore) (*models.ServiceFile, *models.Tray) {
	file := store.addFile(100)
	tray := store.addTray(file.ID, "A1")
	store.addItem(models.TrayItem{
		TrayID: tray.ID, DepartmentID: 1, InstrumentID: 1,
		Kind: models.TrayItemKindService, ServiceID: uintPtr(10),
		Quantity: 2, Price: 50,
		Brands: []models.TrayItemBrand{{
			Brand:    "Heiniger",
			Warranty: true,
			Serials:  []models.TrayItemBrandSerial{{Serial: "SN-9"}},
		}},
	})
	store.addItem(models.TrayItem{
		TrayID: tray.ID, DepartmentID: 1, InstrumentID: 2,
		Kind: models.TrayItemKindInstrument, Quantity: 1,
	})
	return file, tray
}

func TestArchiveHappyPath(t *testing.T) {
	store := newMemStore()
	file, tray := seedArchivableFile(store)
	arc := NewArchiver(store, testCatalog())

	actor := uintPtr(7)
	res, err := arc.Archive(context.Background(), file.ID, actor)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if res.AlreadyArchived {
		t.Errorf("First archival must not report AlreadyArchived")
	}
	if res.ItemCount != 2 {
		t.Errorf("Expected 2 archived rows, got %d", res.ItemCount)
	}
	if res.ReleaseErr != nil {
		t.Errorf("Fallback release should succeed: %v", res.ReleaseErr)
	}

	// Header row with the full snapshot.
	arch, err := store.ArchiveByServiceFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("Archive row missing: %v", err)
	}
	var snap snapshot
	if err := json.Unmarshal(arch.Payload, &snap); err != nil {
		t.Fatalf("Snapshot payload unreadable: %v", err)
	}
	if len(snap.Trays) != 1 || snap.Trays[0].Number != "A1" {
		t.Errorf("Snapshot must capture pre-release tray numbers: %+v", snap.Trays)
	}

	// Denormalized rows carry catalog names and the brand summary.
	rows, _ := store.ArchiveItems(context.Background(), arch.ID)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 archive rows, got %d", len(rows))
	}
	var serviceRow *models.ArchiveTrayItem
	for i := range rows {
		if rows[i].ServiceName != "" {
			serviceRow = &rows[i]
		}
	}
	if serviceRow == nil {
		t.Fatal("Service row missing from archive")
	}
	if serviceRow.InstrumentName != "Scissors" || serviceRow.DepartmentName != "Sharpening" || serviceRow.ServiceName != "Full sharpen" {
		t.Errorf("Catalog names not denormalized: %+v", serviceRow)
	}
	if serviceRow.Details != "Heiniger, warranty, serials: SN-9" {
		t.Errorf("Unexpected details %q", serviceRow.Details)
	}

	// File flipped, tray released by rename.
	got, _ := store.ServiceFile(context.Background(), file.ID)
	if !got.Archived() {
		t.Errorf("Service file not marked archived")
	}
	released, _ := store.TrayByID(context.Background(), tray.ID)
	if released.Number != "A1-copy1" || released.ServiceFileID != nil || !released.Released() {
		t.Errorf("Tray not released: %+v", released)
	}
}

func TestArchiveIdempotent(t *testing.T) {
	store := newMemStore()
	file, _ := seedArchivableFile(store)
	arc := NewArchiver(store, testCatalog())

	first, err := arc.Archive(context.Background(), file.ID, nil)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	second, err := arc.Archive(context.Background(), file.ID, nil)
	if err != nil {
		t.Fatalf("Second archive failed: %v", err)
	}
	if !second.AlreadyArchived {
		t.Errorf("Second archival must report AlreadyArchived")
	}
	if second.ArchiveID != first.ArchiveID || second.ItemCount != first.ItemCount {
		t.Errorf("Second archival must return existing identifiers: %+v vs %+v", first, second)
	}
	if len(store.archives) != 1 {
		t.Errorf("Expected a single archive row, got %d", len(store.archives))
	}
}

func TestArchiveRollsBackOnItemFailure(t *testing.T) {
	store := newMemStore()
	file, _ := seedArchivableFile(store)
	store.failArchiveItemOn = 2
	arc := NewArchiver(store, testCatalog())

	if _, err := arc.Archive(context.Background(), file.ID, nil); err == nil {
		t.Fatal("Expected archival to fail")
	}

	if len(store.archives) != 0 || len(store.archiveItems) != 0 {
		t.Errorf("Rollback left rows behind: %d headers, %d items", len(store.archives), len(store.archiveItems))
	}
	got, _ := store.ServiceFile(context.Background(), file.ID)
	if got.Archived() {
		t.Errorf("File must stay active after failed archival")
	}

	// A retry after the fault clears succeeds.
	store.failArchiveItemOn = 0
	if _, err := arc.Archive(context.Background(), file.ID, nil); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
}

func TestArchiveRollsBackOnFlipFailure(t *testing.T) {
	store := newMemStore()
	file, _ := seedArchivableFile(store)
	store.failSetArchivedAt = true
	arc := NewArchiver(store, testCatalog())

	if _, err := arc.Archive(context.Background(), file.ID, nil); err == nil {
		t.Fatal("Expected archival to fail")
	}
	if len(store.archives) != 0 || len(store.archiveItems) != 0 {
		t.Errorf("Rollback left rows behind: %d headers, %d items", len(store.archives), len(store.archiveItems))
	}
}

func TestArchiveServerSideRelease(t *testing.T) {
	store := newMemStore()
	file, tray := seedArchivableFile(store)
	store.releaseProcErr = nil // procedure installed
	arc := NewArchiver(store, testCatalog())

	res, err := arc.Archive(context.Background(), file.ID, nil)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if res.ReleaseErr != nil {
		t.Errorf("Server-side release should succeed: %v", res.ReleaseErr)
	}
	released, _ := store.TrayByID(context.Background(), tray.ID)
	if !released.Released() {
		t.Errorf("Procedure did not release the tray: %+v", released)
	}
}

func TestArchiveRemovesStaleLeadTags(t *testing.T) {
	store := newMemStore()
	file, _ := seedArchivableFile(store)
	store.files[file.ID].Urgent = true

	ts := NewTagSync(store)
	if err := ts.SyncLeadTags(context.Background(), 100); err != nil {
		t.Fatalf("SyncLeadTags failed: %v", err)
	}
	urgent, _ := store.EnsureTag(context.Background(), TagUrgent)
	if has, _ := store.LeadHasTag(context.Background(), 100, urgent.ID); !has {
		t.Fatal("Urgent tag should be present before archival")
	}

	arc := NewArchiver(store, testCatalog())
	if _, err := arc.Archive(context.Background(), file.ID, nil); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if has, _ := store.LeadHasTag(context.Background(), 100, urgent.ID); has {
		t.Errorf("Urgent tag must be dropped once the only urgent file is archived")
	}
}

func TestArchiveReleaseFailureDoesNotBlock(t *testing.T) {
	store := newMemStore()
	file, _ := seedArchivableFile(store)
	// Procedure fails with a real error rather than "not installed", so the
	// client fallback never runs either.
	store.releaseProcErr = context.DeadlineExceeded
	arc := NewArchiver(store, testCatalog())

	res, err := arc.Archive(context.Background(), file.ID, nil)
	if err != nil {
		t.Fatalf("Archival itself must succeed: %v", err)
	}
	if res.ReleaseErr == nil {
		t.Fatal("Expected the release failure to be reported")
	}
	got, _ := store.ServiceFile(context.Background(), file.ID)
	if !got.Archived() {
		t.Errorf("Archive must stand despite release failure")
	}
}
