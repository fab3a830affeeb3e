package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/xelth-com/sharpcrmgo/internal/database"
	"github.com/xelth-com/sharpcrmgo/internal/engine"
	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// Store is the GORM-backed implementation of engine.Store and
// catalog.Source.
type Store struct {
	db *database.DB
}

// New creates a store over an open database.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) gorm(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// mapErr translates GORM errors into the engine's sentinel errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key")
}

func isUndefinedFunction(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 42883") || strings.Contains(msg, "does not exist")
}

// --- Service files ---

func (s *Store) ServiceFile(ctx context.Context, id uint) (*models.ServiceFile, error) {
	var file models.ServiceFile
	if err := s.gorm(ctx).First(&file, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &file, nil
}

func (s *Store) ActiveServiceFilesByLead(ctx context.Context, leadID uint) ([]models.ServiceFile, error) {
	var files []models.ServiceFile
	err := s.gorm(ctx).
		Where("lead_id = ? AND archived_at IS NULL", leadID).
		Find(&files).Error
	return files, mapErr(err)
}

func (s *Store) SetArchivedAt(ctx context.Context, fileID uint, at time.Time) error {
	res := s.gorm(ctx).Model(&models.ServiceFile{}).
		Where("id = ? AND archived_at IS NULL", fileID).
		Update("archived_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("service file %d: %w", fileID, engine.ErrNotFound)
	}
	return nil
}

// --- Trays ---

func (s *Store) TraysByServiceFile(ctx context.Context, fileID uint) ([]models.Tray, error) {
	var trays []models.Tray
	err := s.gorm(ctx).
		Where("service_file_id = ?", fileID).
		Order("id").
		Find(&trays).Error
	return trays, mapErr(err)
}

func (s *Store) TrayByID(ctx context.Context, id uint) (*models.Tray, error) {
	var tray models.Tray
	if err := s.gorm(ctx).First(&tray, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &tray, nil
}

func (s *Store) LiveTrayByNumber(ctx context.Context, number string) (*models.Tray, error) {
	var tray models.Tray
	err := s.gorm(ctx).
		Where("lower(number) = lower(?) AND service_file_id IS NOT NULL", strings.TrimSpace(number)).
		First(&tray).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &tray, nil
}

func (s *Store) UnnumberedTray(ctx context.Context, fileID uint) (*models.Tray, error) {
	var tray models.Tray
	err := s.gorm(ctx).
		Where("service_file_id = ? AND number = ''", fileID).
		Order("id").
		First(&tray).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &tray, nil
}

// CreateTray enforces live-number uniqueness: a pre-check plus the partial
// unique index as backstop for races.
func (s *Store) CreateTray(ctx context.Context, tray *models.Tray) error {
	if n := strings.TrimSpace(tray.Number); n != "" {
		var count int64
		err := s.gorm(ctx).Model(&models.Tray{}).
			Where("lower(number) = lower(?) AND service_file_id IS NOT NULL", n).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("tray %q: %w", n, engine.ErrTrayNumberTaken)
		}
	}
	if err := s.gorm(ctx).Create(tray).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tray %q: %w", tray.Number, engine.ErrTrayNumberTaken)
		}
		return err
	}
	return nil
}

func (s *Store) UpdateTray(ctx context.Context, tray *models.Tray) error {
	// Save with a Select so a cleared service file reference is written out.
	err := s.gorm(ctx).Model(tray).
		Select("Number", "SizeTag", "Status", "ServiceFileID").
		Updates(tray).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("tray %q: %w", tray.Number, engine.ErrTrayNumberTaken)
	}
	return err
}

// DeleteTray refuses a tray that still has child rows.
func (s *Store) DeleteTray(ctx context.Context, id uint) error {
	count, err := s.CountTrayItems(ctx, id, nil)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("tray %d still has %d items", id, count)
	}
	return s.gorm(ctx).Delete(&models.Tray{}, id).Error
}

func (s *Store) TrayNumberTaken(ctx context.Context, number string) (bool, error) {
	var count int64
	err := s.gorm(ctx).Model(&models.Tray{}).
		Where("lower(number) = lower(?)", number).
		Count(&count).Error
	return count > 0, err
}

// --- Tray items ---

func (s *Store) TrayItems(ctx context.Context, trayID uint) ([]models.TrayItem, error) {
	var items []models.TrayItem
	err := s.gorm(ctx).
		Preload("Brands").
		Preload("Brands.Serials").
		Where("tray_id = ?", trayID).
		Order("id").
		Find(&items).Error
	return items, mapErr(err)
}

func (s *Store) CreateTrayItem(ctx context.Context, item *models.TrayItem) error {
	// Create cascades the nested brand and serial rows.
	return s.gorm(ctx).Create(item).Error
}

// DeleteTrayItems removes a tray's items with their brand and serial
// sub-rows, optionally scoped to one department.
func (s *Store) DeleteTrayItems(ctx context.Context, trayID uint, departmentID *uint) error {
	return s.gorm(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.TrayItem{}).Where("tray_id = ?", trayID)
		if departmentID != nil {
			q = q.Where("department_id = ?", *departmentID)
		}
		var itemIDs []uint
		if err := q.Pluck("id", &itemIDs).Error; err != nil {
			return err
		}
		if len(itemIDs) == 0 {
			return nil
		}

		var brandIDs []uint
		if err := tx.Model(&models.TrayItemBrand{}).
			Where("tray_item_id IN ?", itemIDs).
			Pluck("id", &brandIDs).Error; err != nil {
			return err
		}
		if len(brandIDs) > 0 {
			if err := tx.Where("brand_id IN ?", brandIDs).
				Delete(&models.TrayItemBrandSerial{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", brandIDs).
				Delete(&models.TrayItemBrand{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", itemIDs).Delete(&models.TrayItem{}).Error
	})
}

func (s *Store) CountTrayItems(ctx context.Context, trayID uint, departmentID *uint) (int64, error) {
	q := s.gorm(ctx).Model(&models.TrayItem{}).Where("tray_id = ?", trayID)
	if departmentID != nil {
		q = q.Where("department_id = ?", *departmentID)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// --- Stage, events, conversation ---

func (s *Store) StageHistoryByTrays(ctx context.Context, trayIDs []uint) ([]models.StageHistory, error) {
	if len(trayIDs) == 0 {
		return nil, nil
	}
	var history []models.StageHistory
	err := s.gorm(ctx).
		Where("item_type = ? AND item_id IN ?", "tray", trayIDs).
		Order("id").
		Find(&history).Error
	return history, mapErr(err)
}

func (s *Store) EventsByFile(ctx context.Context, fileID uint, trayIDs []uint) ([]models.ItemEvent, error) {
	var events []models.ItemEvent
	q := s.gorm(ctx).Where("item_type = ? AND item_id = ?", "service_file", fileID)
	if len(trayIDs) > 0 {
		q = q.Or("item_type = ? AND item_id IN ?", "tray", trayIDs)
	}
	err := q.Order("id").Find(&events).Error
	return events, mapErr(err)
}

func (s *Store) CreateEvent(ctx context.Context, ev *models.ItemEvent) error {
	return s.gorm(ctx).Create(ev).Error
}

func (s *Store) MessagesByLead(ctx context.Context, leadID uint) ([]models.Message, error) {
	var messages []models.Message
	err := s.gorm(ctx).
		Where("lead_id = ?", leadID).
		Order("id").
		Find(&messages).Error
	return messages, mapErr(err)
}

// --- Archive ---

func (s *Store) ArchiveByServiceFile(ctx context.Context, fileID uint) (*models.ServiceFileArchive, error) {
	var arch models.ServiceFileArchive
	err := s.gorm(ctx).Where("service_file_id = ?", fileID).First(&arch).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &arch, nil
}

func (s *Store) CreateArchive(ctx context.Context, arch *models.ServiceFileArchive) error {
	return s.gorm(ctx).Create(arch).Error
}

func (s *Store) DeleteArchive(ctx context.Context, archiveID string) error {
	return s.gorm(ctx).Where("id = ?", archiveID).Delete(&models.ServiceFileArchive{}).Error
}

func (s *Store) ArchiveItems(ctx context.Context, archiveID string) ([]models.ArchiveTrayItem, error) {
	var items []models.ArchiveTrayItem
	err := s.gorm(ctx).
		Where("archive_id = ?", archiveID).
		Order("id").
		Find(&items).Error
	return items, mapErr(err)
}

func (s *Store) CreateArchiveItem(ctx context.Context, item *models.ArchiveTrayItem) error {
	return s.gorm(ctx).Create(item).Error
}

func (s *Store) DeleteArchiveItems(ctx context.Context, archiveID string) error {
	return s.gorm(ctx).Where("archive_id = ?", archiveID).Delete(&models.ArchiveTrayItem{}).Error
}

// --- Tags ---

func (s *Store) EnsureTag(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	err := s.gorm(ctx).Where("name = ?", name).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	tag = models.Tag{Name: name}
	if err := s.gorm(ctx).Create(&tag).Error; err != nil {
		if isUniqueViolation(err) {
			// Lost a creation race; fetch the winner.
			if ferr := s.gorm(ctx).Where("name = ?", name).First(&tag).Error; ferr == nil {
				return &tag, nil
			}
		}
		return nil, err
	}
	return &tag, nil
}

func (s *Store) LeadHasTag(ctx context.Context, leadID, tagID uint) (bool, error) {
	var count int64
	err := s.gorm(ctx).Model(&models.LeadTag{}).
		Where("lead_id = ? AND tag_id = ?", leadID, tagID).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) AddLeadTag(ctx context.Context, leadID, tagID uint) error {
	err := s.gorm(ctx).Create(&models.LeadTag{LeadID: leadID, TagID: tagID}).Error
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Store) RemoveLeadTag(ctx context.Context, leadID, tagID uint) error {
	return s.gorm(ctx).
		Where("lead_id = ? AND tag_id = ?", leadID, tagID).
		Delete(&models.LeadTag{}).Error
}

// --- Pipeline ---

func (s *Store) DeletePipelineItem(ctx context.Context, itemType string, itemID uint) error {
	return s.gorm(ctx).
		Where("item_type = ? AND item_id = ?", itemType, itemID).
		Delete(&models.PipelineItem{}).Error
}

// MoveItemToStage delegates to the server-side procedure so the pipeline
// pointer and the history row change in one transaction.
func (s *Store) MoveItemToStage(ctx context.Context, itemType string, itemID, pipelineID, stageID uint, technicianID *uint) error {
	return s.gorm(ctx).
		Exec("SELECT move_item_to_stage(?, ?, ?, ?, ?)",
			itemType, itemID, pipelineID, stageID, technicianID).Error
}

// ReleaseTraysOnArchive calls the optional server-side release procedure.
func (s *Store) ReleaseTraysOnArchive(ctx context.Context, fileID uint) error {
	err := s.gorm(ctx).Exec("SELECT release_trays_on_archive(?)", fileID).Error
	if isUndefinedFunction(err) {
		return engine.ErrUnsupported
	}
	return err
}

// --- Catalog (read-only lookup tables) ---

func (s *Store) Instruments(ctx context.Context) ([]models.Instrument, error) {
	var instruments []models.Instrument
	err := s.gorm(ctx).Find(&instruments).Error
	return instruments, mapErr(err)
}

func (s *Store) Departments(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	err := s.gorm(ctx).Find(&departments).Error
	return departments, mapErr(err)
}

func (s *Store) ServicesCatalog(ctx context.Context) ([]models.InstrumentService, error) {
	var services []models.InstrumentService
	err := s.gorm(ctx).Find(&services).Error
	return services, mapErr(err)
}

func (s *Store) PartsCatalog(ctx context.Context) ([]models.Part, error) {
	var parts []models.Part
	err := s.gorm(ctx).Find(&parts).Error
	return parts, mapErr(err)
}
