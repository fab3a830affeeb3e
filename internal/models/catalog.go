package models

import (
	"time"

	"gorm.io/gorm"
)

// Department is an operational department (e.g. scissors, clipper blades).
type Department struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"unique;not null" json:"name"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Department model
func (Department) TableName() string {
	return "departments"
}

// Instrument is a catalog entry for an instrument type the shop services.
// DepartmentID tells which department works on it; instruments without a
// configured department cannot be written into trays.
type Instrument struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"not null" json:"name"`
	DepartmentID *uint  `gorm:"index" json:"departmentId,omitempty"`
	IsActive     bool   `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

// TableName specifies the table name for Instrument model
func (Instrument) TableName() string {
	return "instruments"
}

// InstrumentService is a catalog entry for a service the shop offers.
type InstrumentService struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Name      string  `gorm:"not null" json:"name"`
	ListPrice float64 `gorm:"default:0" json:"listPrice"`
	IsActive  bool    `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for InstrumentService model
func (InstrumentService) TableName() string {
	return "services"
}

// Part is a catalog entry for a spare part.
type Part struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Name      string  `gorm:"not null" json:"name"`
	ListPrice float64 `gorm:"default:0" json:"listPrice"`
	IsActive  bool    `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Part model
func (Part) TableName() string {
	return "parts"
}
