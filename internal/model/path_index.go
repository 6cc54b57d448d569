package model

// PathIndexEntry lists the ancestor prefixes of a page, it is kept one to one with pages.
type PathIndexEntry struct {
	PageID   uint64       `gorm:"primaryKey;autoIncrement:false" json:"page_id"`
	Tenant   string       `gorm:"not null;index" json:"-"`
	Path     string       `gorm:"not null" json:"path"`
	Depth    int          `gorm:"not null" json:"depth"`
	Prefixes []PathPrefix `gorm:"foreignKey:PageID;references:PageID;constraint:OnDelete:CASCADE" json:"prefixes"`
}

func (PathIndexEntry) TableName() string {
	return "path_index"
}

// Paths returns the prefixes ordered from the root to the page itself.
func (e *PathIndexEntry) Paths() []string {
	paths := make([]string, len(e.Prefixes))
	for _, p := range e.Prefixes {
		if p.Position < len(paths) {
			paths[p.Position] = p.Prefix
		}
	}

	return paths
}

// PathPrefix is one ancestor of an indexed page. Prefix is indexed for exact match lookups.
type PathPrefix struct {
	PageID   uint64 `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Position int    `gorm:"primaryKey;autoIncrement:false" json:"position"`
	Tenant   string `gorm:"not null;index:idx_path_prefixes_tenant_prefix" json:"-"`
	Prefix   string `gorm:"not null;index:idx_path_prefixes_tenant_prefix" json:"prefix"`
}

func (PathPrefix) TableName() string {
	return "path_prefixes"
}
