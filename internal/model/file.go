package model

import "time"

// File is a binary attachment of a page, the bytes live in the blob store.
type File struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Tenant     string    `gorm:"not null;uniqueIndex:idx_files_tenant_page_name" json:"-"`
	PageID     uint64    `gorm:"not null;uniqueIndex:idx_files_tenant_page_name" json:"page_id"`
	Name       string    `gorm:"not null;uniqueIndex:idx_files_tenant_page_name" json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	AuthorID   uint64    `json:"author_id"`
	BlobRef    string    `gorm:"not null" json:"blob_ref"`
}

func (File) TableName() string {
	return "files"
}
