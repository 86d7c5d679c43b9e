package repository

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/carrotwars/carrotwars/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Enable foreign key constraints (SQLite default is off)
	gormDB.Exec("PRAGMA foreign_keys = ON")

	db := &DB{gormDB}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}

	return db
}

var testUserSeq int

// createTestUser creates a user in the database.
func createTestUser(t *testing.T, db *DB, username string) *models.User {
	t.Helper()

	testUserSeq++
	user := &models.User{
		Username:     fmt.Sprintf("%s-%d", username, testUserSeq),
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// createTestRelation creates an accepted relation between two fresh users.
func createTestRelation(t *testing.T, db *DB, balance int) *models.Relation {
	t.Helper()

	owner := createTestUser(t, db, "owner")
	quester := createTestUser(t, db, "quester")

	relation := &models.Relation{
		OwnerID:   owner.ID,
		QuesterID: quester.ID,
		Balance:   balance,
		Status:    models.RelationStatusAccepted,
	}
	if err := db.Create(relation).Error; err != nil {
		t.Fatalf("Failed to create test relation: %v", err)
	}
	relation.Owner = *owner
	relation.Quester = *quester
	return relation
}
