package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gpodo/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment          string        `json:"environment"`
	ServerPort           string        `json:"server_port"`
	JWTSecret            string        `json:"-"`
	DBHost               string        `json:"db_host"`
	DBPort               string        `json:"db_port"`
	DBUser               string        `json:"db_user"`
	DBPassword           string        `json:"-"`
	DBName               string        `json:"db_name"`
	DBSSLMode            string        `json:"db_ssl_mode"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	StripeSecretKey      string        `json:"-"`
	StripeWebhookSecret  string        `json:"-"`
	SentryDSN            string        `json:"-"`
	Redis                RedisConfig   `json:"redis"`
	SMTPHost             string        `json:"smtp_host"`
	SMTPPort             int           `json:"smtp_port"`
	SMTPUsername         string        `json:"smtp_username"`
	SMTPPassword         string        `json:"-"`
	FromEmail            string        `json:"from_email"`
	CORSAllowedOrigins   []string      `json:"cors_allowed_origins"`
	OTPRateLimit         int           `json:"otp_rate_limit"`
	OTPVerifyRateLimit   int           `json:"otp_verify_rate_limit"`
	ContextCacheTTL      time.Duration `json:"context_cache_ttl"`
	VotingWorkerInterval time.Duration `json:"voting_worker_interval"`
}

func init() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "gpodo"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SentryDSN:           getEnv("SENTRY_DSN", ""),

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("FROM_EMAIL", "no-reply@gpodo.local"),

		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		OTPRateLimit:         getEnvAsInt("OTP_RATE_LIMIT", 5),
		OTPVerifyRateLimit:   getEnvAsInt("OTP_VERIFY_RATE_LIMIT", 10),
		ContextCacheTTL:      getEnvAsDuration("CONTEXT_CACHE_TTL", 5*time.Minute),
		VotingWorkerInterval: getEnvAsDuration("VOTING_WORKER_INTERVAL", 30*time.Second),
	}

	if err := AppConfig.validate(); err != nil {
		return err
	}
	logConfig()
	return nil
}

func (c Config) validate() error {
	var errs []error
	require := func(ok bool, key string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	require(c.DBPassword != "", "DB_PASSWORD")
	require(c.JWTSecret != "", "JWT_SECRET")
	if !c.IsDevelopment() {
		require(c.SMTPHost != "", "SMTP_HOST")
		require(c.StripeSecretKey != "", "STRIPE_SECRET_KEY")
		require(c.StripeWebhookSecret != "", "STRIPE_WEBHOOK_SECRET")
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether mail should be logged instead of sent.
func (c Config) IsDevelopment() bool {
	return c.Environment != "production"
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	logrus.WithField("dsn", maskPassword(dsn)).Info("Using connection string")

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("Successfully connected to the database")
	logrus.Info("Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := models.CreateDefaultPointsPackages(DB); err != nil {
		return fmt.Errorf("failed to seed points packages: %w", err)
	}
	logrus.Info("Database migration completed")
	return nil
}

// MigrateDB creates or updates every table.
func MigrateDB(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
			return fmt.Errorf("failed to defer constraints: %w", err)
		}
	}

	return db.AutoMigrate(
		&models.User{},
		&models.PointTransaction{},
		&models.Group{},
		&models.GroupMember{},
		&models.PhaseTransition{},
		&models.GroupInvite{},
		&models.VotingSession{},
		&models.VotingOption{},
		&models.Vote{},
		&models.UserService{},
		&models.ServicePurchase{},
		&models.PointsPackage{},
		&models.PaymentTransaction{},
		&models.ArbitrationCase{},
	)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	database := fmt.Sprintf("%s@%s:%s/%s",
		AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName)
	logrus.WithFields(logrus.Fields{
		"environment": AppConfig.Environment,
		"server_port": AppConfig.ServerPort,
		"database":    database,
		"redis":       AppConfig.Redis.Enabled,
		"stripe":      AppConfig.StripeSecretKey != "",
		"sentry":      AppConfig.SentryDSN != "",
		"smtp":        AppConfig.SMTPHost != "",
	}).Info("Loaded configuration")
}
