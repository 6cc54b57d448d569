package model

import "time"

// User is a wiki member. Only approved users may edit.
type User struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Tenant     string     `gorm:"not null;index" json:"-"`
	Name       string     `json:"name"`
	Email      string     `gorm:"not null" json:"email"`
	Admin      bool       `json:"admin"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// Approved reports whether the user may edit pages.
func (u *User) Approved() bool {
	return u.Admin || u.ApprovedAt != nil
}
