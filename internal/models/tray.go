package models

import (
	"time"

	"gorm.io/datatypes"
)

// TrayStatus defines possible tray statuses
type TrayStatus string

const (
	TrayStatusOpen     TrayStatus = "open"     // Live, attached to a service file
	TrayStatusReleased TrayStatus = "released" // Detached during archival, renamed
)

// TrayItemKind classifies a tray line
type TrayItemKind string

const (
	TrayItemKindService    TrayItemKind = "service"    // Billable service applied to an instrument
	TrayItemKindPart       TrayItemKind = "part"       // Spare part applied to an instrument
	TrayItemKindInstrument TrayItemKind = "instrument" // Bare instrument placement, nothing applied yet
)

// Tray is a physical container of instruments belonging to at most one
// service file. The number may be empty ("unnumbered"); a non-empty number
// is unique among live trays, enforced by a partial unique index with the
// creation path double-checking before insert.
type Tray struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ServiceFileID *uint      `gorm:"index" json:"serviceFileId,omitempty"` // nil once released
	Number        string     `gorm:"index:idx_trays_number,unique,where:number <> '' AND service_file_id IS NOT NULL" json:"number"`
	SizeTag       string     `json:"sizeTag"`
	Status        TrayStatus `gorm:"type:varchar(20);default:'open'" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	ServiceFile *ServiceFile `gorm:"foreignKey:ServiceFileID" json:"-"`
	Items       []TrayItem   `gorm:"foreignKey:TrayID" json:"items,omitempty"`
}

// TableName specifies the table name for Tray model
func (Tray) TableName() string {
	return "trays"
}

// Released reports whether the tray has been detached from its service file.
func (t *Tray) Released() bool {
	return t.ServiceFileID == nil
}

// TrayItem is one tracked line inside a tray: an instrument placement
// combined with a service, a part, or nothing. DepartmentID is never null;
// a line that cannot resolve a department is a configuration error upstream.
type TrayItem struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	TrayID       uint  `gorm:"not null;index" json:"trayId"`
	DepartmentID uint  `gorm:"not null;index" json:"departmentId"`
	InstrumentID uint  `gorm:"not null;index" json:"instrumentId"`
	ServiceID    *uint `gorm:"index" json:"serviceId,omitempty"`
	PartID       *uint `gorm:"index" json:"partId,omitempty"`

	Kind TrayItemKind `gorm:"type:varchar(20);not null;index" json:"kind"`

	Quantity        int `gorm:"default:1" json:"quantity"`
	UnrepairedCount int `gorm:"default:0" json:"unrepairedCount"`

	// Line billing details, typed columns rather than a serialized blob.
	Price        float64        `gorm:"default:0" json:"price"`
	DiscountPct  float64        `gorm:"default:0" json:"discountPct"`
	ItemDiscount float64        `gorm:"default:0" json:"itemDiscount"`
	Warranty     bool           `gorm:"default:false" json:"warranty"`
	Serials      datatypes.JSON `json:"serials,omitempty"` // JSON array of serial numbers scoped to this line

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Tray   *Tray           `gorm:"foreignKey:TrayID" json:"-"`
	Brands []TrayItemBrand `gorm:"foreignKey:TrayItemID" json:"brands,omitempty"`
}

// TableName specifies the table name for TrayItem model
func (TrayItem) TableName() string {
	return "tray_items"
}

// TrayItemBrand is an optional sub-row attached when warranty or serial
// tracking applies to a line. Deleted in lock-step with its parent.
type TrayItemBrand struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	TrayItemID uint   `gorm:"not null;index" json:"trayItemId"`
	Brand      string `json:"brand"`
	Warranty   bool   `gorm:"default:false" json:"warranty"`

	CreatedAt time.Time `json:"createdAt"`

	Serials []TrayItemBrandSerial `gorm:"foreignKey:BrandID" json:"serials,omitempty"`
}

// TableName specifies the table name for TrayItemBrand model
func (TrayItemBrand) TableName() string {
	return "tray_item_brands"
}

// TrayItemBrandSerial is one serial number under a brand sub-row.
type TrayItemBrandSerial struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	BrandID uint   `gorm:"not null;index" json:"brandId"`
	Serial  string `gorm:"not null" json:"serial"`
}

// TableName specifies the table name for TrayItemBrandSerial model
func (TrayItemBrandSerial) TableName() string {
	return "tray_item_brand_serials"
}
