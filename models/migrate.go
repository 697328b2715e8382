package models

import "gorm.io/gorm"

// AutoMigrate creates or extends the tables this service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Collection{},
		&Product{},
		&BlogPost{},
		&User{},
		&ViewEvent{},
		&MonthlyStat{},
	)
}
