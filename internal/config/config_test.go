package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want sqlite3", cfg.Database.Driver)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Server.APIEnabled() {
		t.Error("admin API should be disabled without a token")
	}
	if !cfg.Session.RecheckAccess {
		t.Error("Session.RecheckAccess should default to true")
	}
	if cfg.Inference.Timeout != 0 {
		t.Errorf("Inference.Timeout = %v, want 0", cfg.Inference.Timeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADMIN_IDS", "100,200")
	t.Setenv("DB_DRIVER", "bbolt")
	t.Setenv("DB_DSN", "/tmp/keys.db")
	t.Setenv("SESSION_RECHECK_ACCESS", "false")
	t.Setenv("INFERENCE_TIMEOUT", "30s")
	t.Setenv("ADMIN_API_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Access.AdminIDs) != 2 || cfg.Access.AdminIDs[1] != "200" {
		t.Errorf("Access.AdminIDs = %v", cfg.Access.AdminIDs)
	}
	if cfg.Database.Driver != "bbolt" || cfg.Database.DSN != "/tmp/keys.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Session.RecheckAccess {
		t.Error("Session.RecheckAccess should be false")
	}
	if cfg.Inference.Timeout != 30*time.Second {
		t.Errorf("Inference.Timeout = %v", cfg.Inference.Timeout)
	}
	if !cfg.Server.APIEnabled() {
		t.Error("admin API should be enabled")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("INFERENCE_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func validConfig() *Config {
	return &Config{
		Database:  DatabaseConfig{Driver: "sqlite3", DSN: "data/test.db"},
		Telegram:  TelegramConfig{Token: "123:abc"},
		Inference: InferenceConfig{URL: "http://localhost:5000/predict", ResultsDir: "results", Timeout: time.Minute},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"file shim without url", func(c *Config) { c.Inference.URL = ""; c.Inference.FileShim = "testdata/out.png" }, false},
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, true},
		{"missing inference url", func(c *Config) { c.Inference.URL = "" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"zero timeout", func(c *Config) { c.Inference.Timeout = 0 }, false},
		{"negative timeout", func(c *Config) { c.Inference.Timeout = -time.Second }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"json log format", func(c *Config) { c.Log.Format = "JSON" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStoreIgnoresBotSettings(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/keys"}}
	if err := cfg.ValidateStore(); err != nil {
		t.Errorf("ValidateStore() = %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should require the telegram token")
	}
}
