package app

import (
	"database/sql"

	"gorm.io/gorm"
)

func mustSQL(db *gorm.DB) *sql.DB {
	sqlDB, err := db.DB()
	if err != nil {
		return nil
	}
	return sqlDB
}
