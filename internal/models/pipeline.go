package models

import (
	"time"

	"gorm.io/datatypes"
)

// PipelineItem holds the current pipeline/stage placement of an item.
// One row per (item type, item id); the only sanctioned way to change it
// is the move_item_to_stage server procedure, which also appends the
// stage_history row in the same transaction.
type PipelineItem struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ItemType   string `gorm:"not null;uniqueIndex:idx_pipeline_item" json:"itemType"`
	ItemID     uint   `gorm:"not null;uniqueIndex:idx_pipeline_item" json:"itemId"`
	PipelineID uint   `gorm:"not null;index" json:"pipelineId"`
	StageID    uint   `gorm:"not null;index" json:"stageId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for PipelineItem model
func (PipelineItem) TableName() string {
	return "pipeline_items"
}

// StageHistory records one stage transition of an item.
type StageHistory struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ItemType     string `gorm:"not null;index:idx_stage_history_item" json:"itemType"`
	ItemID       uint   `gorm:"not null;index:idx_stage_history_item" json:"itemId"`
	FromStageID  *uint  `json:"fromStageId,omitempty"`
	ToStageID    uint   `gorm:"not null" json:"toStageId"`
	TechnicianID *uint  `gorm:"index" json:"technicianId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for StageHistory model
func (StageHistory) TableName() string {
	return "stage_history"
}

// ItemEvent is one audit-log entry attached to a service file or tray.
type ItemEvent struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	ItemType string         `gorm:"not null;index:idx_items_events_item" json:"itemType"`
	ItemID   uint           `gorm:"not null;index:idx_items_events_item" json:"itemId"`
	Verb     string         `gorm:"not null" json:"verb"`
	ActorID  *uint          `gorm:"index" json:"actorId,omitempty"`
	Payload  datatypes.JSON `json:"payload,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for ItemEvent model
func (ItemEvent) TableName() string {
	return "items_events"
}
