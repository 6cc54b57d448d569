package model

import "time"

// SearchDocument is the searchable projection of a page, keyed by the page id.
type SearchDocument struct {
	Tenant    string    `gorm:"primaryKey" json:"-"`
	PageID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"page_id"`
	Name      string    `json:"name"`
	Segment   string    `json:"segment"`
	Content   string    `json:"content"`
	Checksum  int64     `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SearchDocument) TableName() string {
	return "search_documents"
}
