package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gpodo/config"
	"gpodo/lifecycle"
	"gpodo/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestApp mounts handlers behind a stand-in for the JWT middleware:
// the X-User-ID header picks the authenticated user.
func newTestApp(db *gorm.DB, mount func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User-ID"); id != "" {
			var user models.User
			if err := db.First(&user, id).Error; err == nil {
				c.Locals("user", &user)
			}
		}
		return c.Next()
	})
	mount(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID uint, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprint(userID))
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func createUser(t *testing.T, db *gorm.DB, email, role string, points int) models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		PasswordHash: "x",
		Name:         email,
		Role:         role,
		Language:     "en",
		IsActive:     true,
		Points:       points,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createGroup(t *testing.T, db *gorm.DB, creator models.User, phase lifecycle.Phase, min, max int) models.Group {
	t.Helper()
	group := models.Group{
		Name:         "Bulk olive oil",
		Description:  "Cooperative purchase",
		Type:         models.GroupTypeBuying,
		Status:       models.GroupStatusActive,
		Visibility:   lifecycle.VisibilityPublic,
		CurrentPhase: string(phase),
		MinMembers:   min,
		MaxMembers:   max,
		MemberCount:  1,
		CreatorID:    creator.ID,
	}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	addMember(t, db, group, creator, lifecycle.RoleMember)
	return group
}

// addMember inserts a membership row. The creator's row is counted in
// createGroup already.
func addMember(t *testing.T, db *gorm.DB, group models.Group, user models.User, role string) {
	t.Helper()
	if err := db.Create(&models.GroupMember{
		GroupID:  group.ID,
		UserID:   user.ID,
		Role:     role,
		Status:   lifecycle.MemberActive,
		JoinedAt: time.Now(),
	}).Error; err != nil {
		t.Fatalf("add member: %v", err)
	}
	if user.ID != group.CreatorID {
		if err := db.Model(&models.Group{}).Where("id = ?", group.ID).
			Update("member_count", gorm.Expr("member_count + 1")).Error; err != nil {
			t.Fatalf("bump member count: %v", err)
		}
	}
}

func reloadGroup(t *testing.T, db *gorm.DB, id uint) models.Group {
	t.Helper()
	var group models.Group
	if err := db.First(&group, id).Error; err != nil {
		t.Fatalf("reload group: %v", err)
	}
	return group
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return user
}

func asURL(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
