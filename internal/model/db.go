package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Page{}, &Revision{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&PathIndexEntry{}, &PathPrefix{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&File{}, &SubscriptionEntry{}, &User{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Task{}, &SearchDocument{}); err != nil {
		return err
	}

	return nil
}
