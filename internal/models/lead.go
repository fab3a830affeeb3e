package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead represents a customer contact owning one or more service files.
type Lead struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"not null;index" json:"name"`
	Phone string `gorm:"index" json:"phone"`
	Email string `json:"email"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Lead model
func (Lead) TableName() string {
	return "leads"
}

// Message is one entry in a lead's conversation thread.
type Message struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	LeadID uint   `gorm:"not null;index" json:"leadId"`
	Sender string `json:"sender"` // "lead" or a technician username
	Body   string `gorm:"type:text" json:"body"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Message model
func (Message) TableName() string {
	return "messages"
}

// Tag is a derivable label attached to leads (urgent, return, ...).
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"unique;not null" json:"name"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Tag model
func (Tag) TableName() string {
	return "tags"
}

// LeadTag associates a tag with a lead.
type LeadTag struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	LeadID uint `gorm:"not null;uniqueIndex:idx_lead_tags_pair" json:"leadId"`
	TagID  uint `gorm:"not null;uniqueIndex:idx_lead_tags_pair" json:"tagId"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for LeadTag model
func (LeadTag) TableName() string {
	return "lead_tags"
}
