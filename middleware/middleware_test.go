package middleware

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gpodo/config"
	"gpodo/models"
	"gpodo/utils"
)

func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mw.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	prevCfg := config.AppConfig
	config.AppConfig.JWTSecret = "test-secret"
	t.Cleanup(func() {
		config.AppConfig = prevCfg
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestProtected(t *testing.T) {
	db := useTestDB(t)
	user := models.User{Email: "alice@example.com", PasswordHash: "x", Name: "Alice", Role: models.UserRoleBuyer}
	db.Create(&user)
	access, refresh, _, err := utils.GenerateJWTToken(&user)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	app := fiber.New()
	app.Get("/me", Protected(db), func(c *fiber.Ctx) error {
		u := c.Locals("user").(*models.User)
		return c.SendString(u.Email)
	})

	do := func(header, cookie string) int {
		req := httptest.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if cookie != "" {
			req.Header.Set("Cookie", "access_token="+cookie)
		}
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"malformed header", "Token " + access, "", fiber.StatusUnauthorized},
		{"bearer", "Bearer " + access, "", fiber.StatusOK},
		{"cookie", "", access, fiber.StatusOK},
		{"refresh token as bearer", "Bearer " + refresh, "", fiber.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", "", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := do(tt.header, tt.cookie); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}

	// sign-out bumps the version and revokes the token
	db.Model(&user).Update("token_version", 1)
	if got := do("Bearer "+access, ""); got != fiber.StatusUnauthorized {
		t.Errorf("revoked token = %d, want 401", got)
	}

	db.Model(&user).Updates(map[string]interface{}{"token_version": 0, "is_active": false})
	if got := do("Bearer "+access, ""); got != fiber.StatusForbidden {
		t.Errorf("inactive user = %d, want 403", got)
	}
}

func TestOTPRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storages := map[string]fiber.Storage{
		"memory": nil,
		"redis":  NewRedisStorage(client),
	}
	for name, storage := range storages {
		t.Run(name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/otp/send", OTPRateLimiter(2, storage), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			send := func(email string) int {
				req := httptest.NewRequest("POST", "/otp/send", strings.NewReader(`{"email":"`+email+`"}`))
				req.Header.Set("Content-Type", "application/json")
				resp, err := app.Test(req, -1)
				if err != nil {
					t.Fatalf("request: %v", err)
				}
				resp.Body.Close()
				return resp.StatusCode
			}

			want := []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}
			for i, w := range want {
				if got := send(name + "@example.com"); got != w {
					t.Errorf("request %d = %d, want %d", i+1, got, w)
				}
			}
			if got := send("other-" + name + "@example.com"); got != fiber.StatusOK {
				t.Errorf("other email = %d, want its own budget", got)
			}
			if got := send(" " + strings.ToUpper(name) + "@Example.COM"); got != fiber.StatusTooManyRequests {
				t.Errorf("case variant = %d, want it to share the exhausted budget", got)
			}
		})
	}
}

func TestOTPVerifyRateLimiterSeparateFromSend(t *testing.T) {
	app := fiber.New()
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/otp/send", OTPRateLimiter(1, nil), ok)
	app.Post("/otp/verify", OTPVerifyRateLimiter(2, nil), ok)

	post := func(path, email string) int {
		req := httptest.NewRequest("POST", path, strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := post("/otp/send", "alice@example.com"); got != fiber.StatusOK {
		t.Fatalf("send = %d", got)
	}
	tests := []struct {
		email string
		want  int
	}{
		{"alice@example.com", fiber.StatusOK},
		{"Alice@Example.com", fiber.StatusOK},
		{"ALICE@example.com", fiber.StatusTooManyRequests},
	}
	for i, tt := range tests {
		if got := post("/otp/verify", tt.email); got != tt.want {
			t.Errorf("verify %d (%s) = %d, want %d", i+1, tt.email, got, tt.want)
		}
	}
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{
		AllowedOrigins:   []string{"https://app.example.com", "https://*.partner.io"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST"},
		MaxAge:           600,
	}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	tests := []struct {
		method, origin, wantOrigin string
		wantStatus                 int
	}{
		{"GET", "https://app.example.com", "https://app.example.com", fiber.StatusOK},
		{"GET", "https://evil.example.com", "", fiber.StatusOK},
		{"OPTIONS", "https://app.example.com", "https://app.example.com", fiber.StatusNoContent},
		{"GET", "https://shop.partner.io", "https://shop.partner.io", fiber.StatusOK},
		{"GET", "http://shop.partner.io", "", fiber.StatusOK},
		{"GET", "https://partner.io", "", fiber.StatusOK},
		{"OPTIONS", "https://evil.example.com", "", fiber.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", nil)
		req.Header.Set("Origin", tt.origin)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.origin, resp.StatusCode, tt.wantStatus)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
			t.Errorf("%s %s allow-origin = %q, want %q", tt.method, tt.origin, got, tt.wantOrigin)
		}
	}
}
