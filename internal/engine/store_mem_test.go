package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// memStore is an in-memory Store used by the engine tests. Failure
// injection fields let tests simulate storage errors mid-sequence.
type memStore struct {
	nextID uint

	files        map[uint]*models.ServiceFile
	trays        map[uint]*models.Tray
	items        map[uint]*models.TrayItem
	archives     map[string]*models.ServiceFileArchive
	archiveItems map[uint]*models.ArchiveTrayItem
	events       []models.ItemEvent
	messages     []models.Message
	history      []models.StageHistory
	tags         map[uint]*models.Tag
	leadTags     map[string]bool
	pipeline     map[string]bool

	// Failure injection
	failArchiveItemOn   int // fail the Nth CreateArchiveItem call (1-based)
	archiveItemCalls    int
	failSetArchivedAt   bool
	failCreateTrayItem  bool
	releaseProcErr      error // result of ReleaseTraysOnArchive; defaults to ErrUnsupported
	addTagCalls         int
	removeTagCalls      int
	moveStageCalls      []string
}

func newMemStore() *memStore {
	return &memStore{
		files:          make(map[uint]*models.ServiceFile),
		trays:          make(map[uint]*models.Tray),
		items:          make(map[uint]*models.TrayItem),
		archives:       make(map[string]*models.ServiceFileArchive),
		archiveItems:   make(map[uint]*models.ArchiveTrayItem),
		tags:           make(map[uint]*models.Tag),
		leadTags:       make(map[string]bool),
		pipeline:       make(map[string]bool),
		releaseProcErr: ErrUnsupported,
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func leadTagKey(leadID, tagID uint) string {
	return fmt.Sprintf("%d/%d", leadID, tagID)
}

func pipelineKey(itemType string, itemID uint) string {
	return fmt.Sprintf("%s/%d", itemType, itemID)
}

// --- Seed helpers ---

func (s *memStore) addFile(leadID uint) *models.ServiceFile {
	f := &models.ServiceFile{ID: s.id(), LeadID: leadID}
	s.files[f.ID] = f
	return f
}

func (s *memStore) addTray(fileID uint, number string) *models.Tray {
	fid := fileID
	t := &models.Tray{ID: s.id(), ServiceFileID: &fid, Number: number, Status: models.TrayStatusOpen}
	s.trays[t.ID] = t
	s.pipeline[pipelineKey("tray", t.ID)] = true
	return t
}

func (s *memStore) addItem(item models.TrayItem) *models.TrayItem {
	item.ID = s.id()
	for bi := range item.Brands {
		item.Brands[bi].ID = s.id()
		item.Brands[bi].TrayItemID = item.ID
		for si := range item.Brands[bi].Serials {
			item.Brands[bi].Serials[si].ID = s.id()
			item.Brands[bi].Serials[si].BrandID = item.Brands[bi].ID
		}
	}
	s.items[item.ID] = &item
	return s.items[item.ID]
}

// --- Service files ---

func (s *memStore) ServiceFile(ctx context.Context, id uint) (*models.ServiceFile, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *f
	return &copy, nil
}

func (s *memStore) ActiveServiceFilesByLead(ctx context.Context, leadID uint) ([]models.ServiceFile, error) {
	var out []models.ServiceFile
	for _, f := range s.files {
		if f.LeadID == leadID && f.ArchivedAt == nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *memStore) SetArchivedAt(ctx context.Context, fileID uint, at time.Time) error {
	if s.failSetArchivedAt {
		return errors.New("injected archived-at failure")
	}
	f, ok := s.files[fileID]
	if !ok {
		return ErrNotFound
	}
	f.ArchivedAt = &at
	return nil
}

// --- Trays ---

func (s *memStore) TraysByServiceFile(ctx context.Context, fileID uint) ([]models.Tray, error) {
	var out []models.Tray
	for _, t := range s.trays {
		if t.ServiceFileID != nil && *t.ServiceFileID == fileID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) TrayByID(ctx context.Context, id uint) (*models.Tray, error) {
	t, ok := s.trays[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *t
	return &copy, nil
}

func (s *memStore) LiveTrayByNumber(ctx context.Context, number string) (*models.Tray, error) {
	key := strings.ToLower(strings.TrimSpace(number))
	for _, t := range s.trays {
		if t.ServiceFileID != nil && strings.ToLower(t.Number) == key {
			copy := *t
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) UnnumberedTray(ctx context.Context, fileID uint) (*models.Tray, error) {
	var found *models.Tray
	for _, t := range s.trays {
		if t.ServiceFileID != nil && *t.ServiceFileID == fileID && t.Number == "" {
			if found == nil || t.ID < found.ID {
				found = t
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	copy := *found
	return &copy, nil
}

func (s *memStore) CreateTray(ctx context.Context, tray *models.Tray) error {
	if n := strings.TrimSpace(tray.Number); n != "" {
		for _, t := range s.trays {
			if t.ServiceFileID != nil && strings.EqualFold(t.Number, n) {
				return fmt.Errorf("tray %q: %w", n, ErrTrayNumberTaken)
			}
		}
	}
	tray.ID = s.id()
	copy := *tray
	s.trays[tray.ID] = &copy
	return nil
}

func (s *memStore) UpdateTray(ctx context.Context, tray *models.Tray) error {
	stored, ok := s.trays[tray.ID]
	if !ok {
		return ErrNotFound
	}
	if n := strings.TrimSpace(tray.Number); n != "" && tray.ServiceFileID != nil {
		for _, t := range s.trays {
			if t.ID != tray.ID && t.ServiceFileID != nil && strings.EqualFold(t.Number, n) {
				return fmt.Errorf("tray %q: %w", n, ErrTrayNumberTaken)
			}
		}
	}
	stored.Number = tray.Number
	stored.SizeTag = tray.SizeTag
	stored.Status = tray.Status
	stored.ServiceFileID = tray.ServiceFileID
	return nil
}

func (s *memStore) DeleteTray(ctx context.Context, id uint) error {
	for _, it := range s.items {
		if it.TrayID == id {
			return fmt.Errorf("tray %d still has items", id)
		}
	}
	delete(s.trays, id)
	return nil
}

func (s *memStore) TrayNumberTaken(ctx context.Context, number string) (bool, error) {
	for _, t := range s.trays {
		if strings.EqualFold(t.Number, number) {
			return true, nil
		}
	}
	return false, nil
}

// --- Tray items ---

func (s *memStore) TrayItems(ctx context.Context, trayID uint) ([]models.TrayItem, error) {
	var out []models.TrayItem
	for _, it := range s.items {
		if it.TrayID == trayID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateTrayItem(ctx context.Context, item *models.TrayItem) error {
	if s.failCreateTrayItem {
		return errors.New("injected tray item failure")
	}
	s.addItem(*item)
	return nil
}

func (s *memStore) DeleteTrayItems(ctx context.Context, trayID uint, departmentID *uint) error {
	for id, it := range s.items {
		if it.TrayID != trayID {
			continue
		}
		if departmentID != nil && it.DepartmentID != *departmentID {
			continue
		}
		delete(s.items, id)
	}
	return nil
}

func (s *memStore) CountTrayItems(ctx context.Context, trayID uint, departmentID *uint) (int64, error) {
	var count int64
	for _, it := range s.items {
		if it.TrayID != trayID {
			continue
		}
		if departmentID != nil && it.DepartmentID != *departmentID {
			continue
		}
		count++
	}
	return count, nil
}

// --- Stage, events, conversation ---

func (s *memStore) StageHistoryByTrays(ctx context.Context, trayIDs []uint) ([]models.StageHistory, error) {
	var out []models.StageHistory
	for _, h := range s.history {
		for _, id := range trayIDs {
			if h.ItemType == "tray" && h.ItemID == id {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (s *memStore) EventsByFile(ctx context.Context, fileID uint, trayIDs []uint) ([]models.ItemEvent, error) {
	var out []models.ItemEvent
	for _, ev := range s.events {
		if ev.ItemType == "service_file" && ev.ItemID == fileID {
			out = append(out, ev)
			continue
		}
		for _, id := range trayIDs {
			if ev.ItemType == "tray" && ev.ItemID == id {
				out = append(out, ev)
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) CreateEvent(ctx context.Context, ev *models.ItemEvent) error {
	ev.ID = s.id()
	s.events = append(s.events, *ev)
	return nil
}

func (s *memStore) MessagesByLead(ctx context.Context, leadID uint) ([]models.Message, error) {
	var out []models.Message
	for _, m := range s.messages {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- Archive ---

func (s *memStore) ArchiveByServiceFile(ctx context.Context, fileID uint) (*models.ServiceFileArchive, error) {
	for _, a := range s.archives {
		if a.ServiceFileID == fileID {
			copy := *a
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) CreateArchive(ctx context.Context, arch *models.ServiceFileArchive) error {
	copy := *arch
	s.archives[arch.ID] = &copy
	return nil
}

func (s *memStore) DeleteArchive(ctx context.Context, archiveID string) error {
	delete(s.archives, archiveID)
	return nil
}

func (s *memStore) ArchiveItems(ctx context.Context, archiveID string) ([]models.ArchiveTrayItem, error) {
	var out []models.ArchiveTrayItem
	for _, it := range s.archiveItems {
		if it.ArchiveID == archiveID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateArchiveItem(ctx context.Context, item *models.ArchiveTrayItem) error {
	s.archiveItemCalls++
	if s.failArchiveItemOn > 0 && s.archiveItemCalls == s.failArchiveItemOn {
		return errors.New("injected archive item failure")
	}
	item.ID = s.id()
	copy := *item
	s.archiveItems[item.ID] = &copy
	return nil
}

func (s *memStore) DeleteArchiveItems(ctx context.Context, archiveID string) error {
	for id, it := range s.archiveItems {
		if it.ArchiveID == archiveID {
			delete(s.archiveItems, id)
		}
	}
	return nil
}

// --- Tags ---

func (s *memStore) EnsureTag(ctx context.Context, name string) (*models.Tag, error) {
	for _, t := range s.tags {
		if t.Name == name {
			copy := *t
			return &copy, nil
		}
	}
	t := &models.Tag{ID: s.id(), Name: name}
	s.tags[t.ID] = t
	copy := *t
	return &copy, nil
}

func (s *memStore) LeadHasTag(ctx context.Context, leadID, tagID uint) (bool, error) {
	return s.leadTags[leadTagKey(leadID, tagID)], nil
}

func (s *memStore) AddLeadTag(ctx context.Context, leadID, tagID uint) error {
	s.addTagCalls++
	s.leadTags[leadTagKey(leadID, tagID)] = true
	return nil
}

func (s *memStore) RemoveLeadTag(ctx context.Context, leadID, tagID uint) error {
	s.removeTagCalls++
	delete(s.leadTags, leadTagKey(leadID, tagID))
	return nil
}

// --- Pipeline ---

func (s *memStore) DeletePipelineItem(ctx context.Context, itemType string, itemID uint) error {
	delete(s.pipeline, pipelineKey(itemType, itemID))
	return nil
}

func (s *memStore) MoveItemToStage(ctx context.Context, itemType string, itemID, pipelineID, stageID uint, technicianID *uint) error {
	s.moveStageCalls = append(s.moveStageCalls, fmt.Sprintf("%s/%d->%d/%d", itemType, itemID, pipelineID, stageID))
	return nil
}

func (s *memStore) ReleaseTraysOnArchive(ctx context.Context, fileID uint) error {
	if s.releaseProcErr != nil {
		return s.releaseProcErr
	}
	// Simulate the server-side procedure.
	for _, t := range s.trays {
		if t.ServiceFileID != nil && *t.ServiceFileID == fileID {
			t.ServiceFileID = nil
			t.Status = models.TrayStatusReleased
			t.Number = t.Number + "-copy1"
			delete(s.pipeline, pipelineKey("tray", t.ID))
		}
	}
	return nil
}
