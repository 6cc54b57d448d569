package model

import "time"

// Markup is the kind of text stored in a revision.
type Markup string

const (
	MarkupWiki Markup = "WIKI"
	MarkupHTML Markup = "HTML"
)

// Revision is a compressed snapshot of the raw text of a page.
// Revisions are kept when the page is deleted.
type Revision struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Tenant      string    `gorm:"not null;index:idx_revisions_tenant_page" json:"-"`
	PageID      uint64    `gorm:"not null;index:idx_revisions_tenant_page" json:"page_id"`
	Content     []byte    `gorm:"not null" json:"-"`
	Compression string    `gorm:"not null" json:"compression"`
	Markup      Markup    `gorm:"not null;default:WIKI" json:"markup"`
	AuthorID    uint64    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Revision) TableName() string {
	return "revisions"
}
