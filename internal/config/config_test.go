package config

import "testing"

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != "8080" || cfg.StoreDriver != "json" || cfg.DataDir != "data" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AIProvider != "openrouter" || cfg.ChatContextWindowSize != 10 {
		t.Fatalf("unexpected AI defaults: %+v", cfg)
	}
	if cfg.RabbitQueue != "chat_jobs" {
		t.Fatalf("unexpected rabbit queue: %q", cfg.RabbitQueue)
	}
}

func TestLoad_DBDriversNeedDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_DRIVER", "sqlite")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for sqlite without DB_DSN")
	}

	t.Setenv("DB_DSN", "file:test.db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != "sqlite" || cfg.DBDSN != "file:test.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("STORE_DRIVER", "bogus")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
