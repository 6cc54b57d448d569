package model

// SubscriptionKind tells whether a user follows a single page or the whole cluster under it.
type SubscriptionKind string

const (
	SubscriptionPage    SubscriptionKind = "page"
	SubscriptionCluster SubscriptionKind = "cluster"
	SubscriptionNone    SubscriptionKind = "none"
)

// SubscriptionEntry is one watched page of a user. The primary key guarantees a page
// is either in the page set or in the cluster set of a user, never both.
type SubscriptionEntry struct {
	Tenant string           `gorm:"primaryKey" json:"-"`
	UserID uint64           `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PageID uint64           `gorm:"primaryKey;autoIncrement:false;index" json:"page_id"`
	Kind   SubscriptionKind `gorm:"not null;index" json:"kind"`
}

func (SubscriptionEntry) TableName() string {
	return "subscriptions"
}
