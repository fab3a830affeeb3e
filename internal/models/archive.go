package models

import (
	"time"

	"gorm.io/datatypes"
)

// ServiceFileArchive is the immutable archive header for one service file.
// Created exactly once per archival; never updated. The table keeps the
// historical name from the production schema.
type ServiceFileArchive struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	ServiceFileID uint   `gorm:"not null;uniqueIndex" json:"serviceFileId"`
	LeadID        uint   `gorm:"not null;index" json:"leadId"`

	// Full snapshot: file, trays before rename, stage history, event log,
	// conversation thread.
	Payload datatypes.JSON `json:"payload"`

	ArchivedBy *uint     `json:"archivedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName specifies the table name for ServiceFileArchive model
func (ServiceFileArchive) TableName() string {
	return "arhiva_fise_serviciu"
}

// ArchiveTrayItem is one denormalized archived line: the tray item flattened
// with catalog names resolved and brand/serial/warranty info folded into a
// descriptive string.
type ArchiveTrayItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ArchiveID string `gorm:"not null;index;type:uuid" json:"archiveId"`

	TrayNumber     string `json:"trayNumber"`
	DepartmentName string `json:"departmentName"`
	InstrumentName string `json:"instrumentName"`
	Kind           string `json:"kind"`
	ServiceName    string `json:"serviceName,omitempty"`
	PartName       string `json:"partName,omitempty"`

	Quantity        int     `json:"quantity"`
	UnrepairedCount int     `json:"unrepairedCount"`
	Price           float64 `json:"price"`
	DiscountPct     float64 `json:"discountPct"`

	// Flattened brand/warranty/serial description
	Details string `gorm:"type:text" json:"details"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for ArchiveTrayItem model
func (ArchiveTrayItem) TableName() string {
	return "arhiva_tray_items"
}
