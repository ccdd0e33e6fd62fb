package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/gmr-archive-backend/internal/domain/archive"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&archive.Session{},
		&archive.AuthorityVersion{},
		&archive.Derivative{},
		&archive.AuthorityDelegation{},
	)
}
