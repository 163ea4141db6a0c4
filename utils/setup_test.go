package utils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gpodo/config"
	"gpodo/lifecycle"
	"gpodo/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "utils.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, points int) models.User {
	t.Helper()
	u := models.User{Email: email, PasswordHash: "x", Name: email, Role: models.UserRoleBuyer, Points: points}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedMember(t *testing.T, db *gorm.DB, groupID, userID uint, role string) {
	t.Helper()
	if err := db.Create(&models.GroupMember{
		GroupID: groupID, UserID: userID, Role: role, Status: lifecycle.MemberActive, JoinedAt: time.Now(),
	}).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}
}
