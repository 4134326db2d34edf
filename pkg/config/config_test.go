package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOCK_TTL_SECONDS", "")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
	if cfg.LockTTL != 30*time.Second {
		t.Errorf("LockTTL = %s, want 30s", cfg.LockTTL)
	}
	if cfg.DBMaxOpenConns != 100 {
		t.Errorf("DBMaxOpenConns = %d, want fallback 100", cfg.DBMaxOpenConns)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBDriver: "mysql", DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "3306", DBName: "inv"}
	if got, want := cfg.DSN(), "u:p@tcp(h:3306)/inv?parseTime=true"; got != want {
		t.Errorf("mysql DSN = %q, want %q", got, want)
	}

	cfg.DBDriver = "postgres"
	if got, want := cfg.DSN(), "host=h user=u password=p dbname=inv port=3306 sslmode=disable TimeZone=UTC"; got != want {
		t.Errorf("postgres DSN = %q, want %q", got, want)
	}

	cfg.DatabaseURL = "postgres://x"
	if got := cfg.DSN(); got != "postgres://x" {
		t.Errorf("DATABASE_URL should win, got %q", got)
	}
}
