package db

import (
	"collab-docs/internal/domain"
	"log"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&domain.User{},
		&domain.Document{},
		&domain.Permission{},
		&domain.Version{},
		&domain.Comment{},
		&domain.Notification{},
		&domain.DocumentUpdate{},
		&domain.DocumentSnapshot{},
	)
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}
