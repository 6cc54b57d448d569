package model

import (
	"time"
)

// Access is the visibility policy of a page.
type Access string

const (
	AccessPrivate Access = "PRIVATE"
	AccessInherit Access = "INHERIT"
	AccessPublic  Access = "PUBLIC"
)

// Page is a wiki page addressed by its path. The ID stays the same when the page is moved.
type Page struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Tenant    string    `gorm:"not null;uniqueIndex:idx_pages_tenant_path" json:"-"`
	Path      string    `gorm:"not null;uniqueIndex:idx_pages_tenant_path" json:"path"`
	Name      string    `json:"name"`
	HTML      string    `json:"html"`
	AuthorID  uint64    `json:"author_id"`
	FileCount int       `gorm:"not null;default:0" json:"file_count"`
	Access    Access    `gorm:"not null;default:INHERIT" json:"access"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Page) TableName() string {
	return "pages"
}

// URLPath returns an empty string for the root so "/.edit" style urls do not get a double slash.
func (p *Page) URLPath() string {
	if p.Path == "/" {
		return ""
	}

	return p.Path
}
