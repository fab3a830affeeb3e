package models

import (
	"time"

	"gorm.io/gorm"
)

// ServiceFile represents one customer sharpening/repair order.
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type ServiceFile struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	LeadID uint `gorm:"not null;index" json:"leadId"`

	// Lifecycle flags
	Urgent       bool `gorm:"default:false" json:"urgent"`
	IsReturn     bool `gorm:"default:false" json:"isReturn"`
	OfficeDirect bool `gorm:"default:false" json:"officeDirect"`
	CourierSent  bool `gorm:"default:false" json:"courierSent"`
	Locked       bool `gorm:"default:false" json:"locked"`

	// Billing
	DiscountPct float64 `gorm:"default:0" json:"discountPct"`
	PaymentCash bool    `gorm:"default:false" json:"paymentCash"`
	PaymentCard bool    `gorm:"default:false" json:"paymentCard"`

	Notes string `gorm:"type:text" json:"notes"`

	// Set exactly once by the archival pipeline; the file is read-only afterwards.
	ArchivedAt *time.Time `gorm:"index" json:"archivedAt,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Lead  *Lead  `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	Trays []Tray `gorm:"foreignKey:ServiceFileID" json:"trays,omitempty"`
}

// TableName specifies the table name for ServiceFile model
func (ServiceFile) TableName() string {
	return "service_files"
}

// Archived reports whether the file has been moved to the archive.
func (f *ServiceFile) Archived() bool {
	return f.ArchivedAt != nil
}
