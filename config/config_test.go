package config

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("JWT_SECRET", "s3cret")
	if err := LoadConfig(); err == nil {
		t.Fatalf("expected error without DB_PASSWORD")
	}

	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "")
	if err := LoadConfig(); err == nil {
		t.Fatalf("expected error without JWT_SECRET")
	}
}

func TestLoadConfigParsesTypedValues(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("VOTING_WORKER_INTERVAL", "2m")
	t.Setenv("CONTEXT_CACHE_TTL", "not-a-duration")

	if err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !AppConfig.Redis.Enabled || AppConfig.Redis.DB != 3 {
		t.Fatalf("redis config = %+v", AppConfig.Redis)
	}
	if got := AppConfig.CORSAllowedOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("origins = %v", got)
	}
	if AppConfig.VotingWorkerInterval != 2*time.Minute {
		t.Fatalf("interval = %v", AppConfig.VotingWorkerInterval)
	}
	if AppConfig.ContextCacheTTL != 5*time.Minute {
		t.Fatalf("ttl fallback = %v", AppConfig.ContextCacheTTL)
	}
	if !AppConfig.IsDevelopment() {
		t.Fatalf("development expected")
	}
}

func TestMaskPassword(t *testing.T) {
	tests := map[string]string{
		"host=x password=hunter2 dbname=y": "host=x password=***** dbname=y",
		"host=x password=hunter2":          "host=x password=*****",
		"host=x":                           "host=x",
	}
	for in, want := range tests {
		if got := maskPassword(in); got != want {
			t.Errorf("maskPassword(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateProductionNeedsMailAndPayments(t *testing.T) {
	base := Config{DBPassword: "pw", JWTSecret: "s"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"development", func(c *Config) { c.Environment = "development" }, false},
		{"production without smtp", func(c *Config) {
			c.Environment = "production"
			c.StripeSecretKey, c.StripeWebhookSecret = "sk", "whsec"
		}, true},
		{"production complete", func(c *Config) {
			c.Environment = "production"
			c.SMTPHost = "smtp.example.com"
			c.StripeSecretKey, c.StripeWebhookSecret = "sk", "whsec"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.validate(); (err != nil) != tt.wantErr {
				t.Fatalf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
