package models

import "time"

// Document is a named JSON blob written whole by the sync endpoint.
type Document struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Body      string    `gorm:"column:body;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Document) TableName() string {
	return "documents"
}
