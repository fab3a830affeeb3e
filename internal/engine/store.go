package engine

import (
	"context"
	"time"

	"github.com/xelth-com/sharpcrmgo/internal/models"
)

// Store is the persistence surface the engine runs against. The production
// implementation lives in internal/storage on top of GORM; tests substitute
// an in-memory fake with injectable failures.
//
// Implementations return ErrNotFound for absent rows and ErrUnsupported when
// an optional server procedure is not installed.
type Store interface {
	// Service files
	ServiceFile(ctx context.Context, id uint) (*models.ServiceFile, error)
	ActiveServiceFilesByLead(ctx context.Context, leadID uint) ([]models.ServiceFile, error)
	SetArchivedAt(ctx context.Context, fileID uint, at time.Time) error

	// Trays. CreateTray enforces live tray number uniqueness and returns
	// ErrTrayNumberTaken on collision. DeleteTray refuses a tray that still
	// has child rows. TrayNumberTaken checks live and released trays alike.
	TraysByServiceFile(ctx context.Context, fileID uint) ([]models.Tray, error)
	TrayByID(ctx context.Context, id uint) (*models.Tray, error)
	LiveTrayByNumber(ctx context.Context, number string) (*models.Tray, error)
	UnnumberedTray(ctx context.Context, fileID uint) (*models.Tray, error)
	CreateTray(ctx context.Context, tray *models.Tray) error
	UpdateTray(ctx context.Context, tray *models.Tray) error
	DeleteTray(ctx context.Context, id uint) error
	TrayNumberTaken(ctx context.Context, number string) (bool, error)

	// Tray items. TrayItems returns rows with brand/serial sub-rows joined.
	// CreateTrayItem persists nested brands and serials. Deletion cascades
	// to sub-rows and may be scoped to one department.
	TrayItems(ctx context.Context, trayID uint) ([]models.TrayItem, error)
	CreateTrayItem(ctx context.Context, item *models.TrayItem) error
	DeleteTrayItems(ctx context.Context, trayID uint, departmentID *uint) error
	CountTrayItems(ctx context.Context, trayID uint, departmentID *uint) (int64, error)

	// Stage, events, conversation
	StageHistoryByTrays(ctx context.Context, trayIDs []uint) ([]models.StageHistory, error)
	EventsByFile(ctx context.Context, fileID uint, trayIDs []uint) ([]models.ItemEvent, error)
	CreateEvent(ctx context.Context, ev *models.ItemEvent) error
	MessagesByLead(ctx context.Context, leadID uint) ([]models.Message, error)

	// Archive rows
	ArchiveByServiceFile(ctx context.Context, fileID uint) (*models.ServiceFileArchive, error)
	CreateArchive(ctx context.Context, arch *models.ServiceFileArchive) error
	DeleteArchive(ctx context.Context, archiveID string) error
	ArchiveItems(ctx context.Context, archiveID string) ([]models.ArchiveTrayItem, error)
	CreateArchiveItem(ctx context.Context, item *models.ArchiveTrayItem) error
	DeleteArchiveItems(ctx context.Context, archiveID string) error

	// Tags
	EnsureTag(ctx context.Context, name string) (*models.Tag, error)
	LeadHasTag(ctx context.Context, leadID, tagID uint) (bool, error)
	AddLeadTag(ctx context.Context, leadID, tagID uint) error
	RemoveLeadTag(ctx context.Context, leadID, tagID uint) error

	// Pipeline. MoveItemToStage calls the move_item_to_stage server
	// procedure; ReleaseTraysOnArchive calls release_trays_on_archive and
	// returns ErrUnsupported when the procedure is absent.
	DeletePipelineItem(ctx context.Context, itemType string, itemID uint) error
	MoveItemToStage(ctx context.Context, itemType string, itemID, pipelineID, stageID uint, technicianID *uint) error
	ReleaseTraysOnArchive(ctx context.Context, fileID uint) error
}
