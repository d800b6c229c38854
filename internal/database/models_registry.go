package database

import "mybuddy/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// ordered so that referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Report{},
		&models.ConfirmationToken{},
	}
}
