package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestGenerateSecurePassword(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		minLength int
	}{
		{"default length", 16, 16},
		{"24 characters", 24, 24},
		{"short length enforces minimum", 8, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			password, err := GenerateSecurePassword(tt.length)
			if err != nil {
				t.Fatalf("GenerateSecurePassword() error = %v", err)
			}
			if len(password) < tt.minLength {
				t.Errorf("GenerateSecurePassword(%d) length = %d, want >= %d", tt.length, len(password), tt.minLength)
			}
		})
	}

	// Test uniqueness
	t.Run("generates unique passwords", func(t *testing.T) {
		passwords := make(map[string]bool)
		for i := 0; i < 100; i++ {
			p, _ := GenerateSecurePassword(24)
			if passwords[p] {
				t.Error("Generated duplicate password")
			}
			passwords[p] = true
		}
	})
}

func TestContainsIgnoreCase(t *testing.T) {
	tests := []struct {
		s        string
		substr   string
		expected bool
	}{
		{"Hello World", "hello", true},
		{"Hello World", "WORLD", true},
		{"Hello World", "xyz", false},
		{"", "", true},
		{"abc", "", true},
		{"", "abc", false},
		{"connection refused", "Connection Refused", true},
		{"ECONNREFUSED", "econnrefused", true},
	}

	for _, tt := range tests {
		t.Run(tt.s+"_"+tt.substr, func(t *testing.T) {
			result := containsIgnoreCase(tt.s, tt.substr)
			if result != tt.expected {
				t.Errorf("containsIgnoreCase(%q, %q) = %v, want %v", tt.s, tt.substr, result, tt.expected)
			}
		})
	}
}

func TestClassifyConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		service  string
		addr     string
		contains string
	}{
		{
			name:     "nil error returns empty string",
			err:      nil,
			service:  "ClickHouse",
			addr:     "localhost:9000",
			contains: "",
		},
		{
			name:     "hostname resolution failure",
			err:      errors.New("dial tcp: lookup clickhouse-prod: no such host"),
			service:  "ClickHouse",
			addr:     "clickhouse-prod:9000",
			contains: "Cannot resolve hostname",
		},
		{
			name:     "authentication failure names the env var",
			err:      errors.New("code: 516, message: default: Authentication failed"),
			service:  "ClickHouse",
			addr:     "localhost:9000",
			contains: "BIDHOUSE_CLICKHOUSE_PASSWORD",
		},
		{
			name:     "redis auth failure names the redis env var",
			err:      errors.New("NOAUTH Authentication required"),
			service:  "Redis",
			addr:     "localhost:6379",
			contains: "BIDHOUSE_REDIS_PASSWORD",
		},
		{
			name:     "generic failure mentions the service",
			err:      errors.New("unexpected EOF"),
			service:  "MongoDB",
			addr:     "localhost:27017",
			contains: "Failed to connect to MongoDB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyConnectionError(tt.err, tt.service, tt.addr)
			if tt.contains == "" && result != "" {
				t.Errorf("ClassifyConnectionError() = %q, want empty string", result)
			}
			if tt.contains != "" && !strings.Contains(result, tt.contains) {
				t.Errorf("ClassifyConnectionError() = %q, want to contain %q", result, tt.contains)
			}
		})
	}
}

func TestClassifySQLiteError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		dbPath   string
		contains string
	}{
		{
			name:     "nil error returns empty string",
			err:      nil,
			dbPath:   "/data/bidhouse.db",
			contains: "",
		},
		{
			name:     "locked database suggests checking processes",
			err:      errors.New("database is locked (5) (SQLITE_BUSY)"),
			dbPath:   "/data/bidhouse.db",
			contains: "ps aux | grep bidhouse",
		},
		{
			name:     "missing path suggests mkdir",
			err:      errors.New("unable to open database file: no such file or directory"),
			dbPath:   "/missing/dir/bidhouse.db",
			contains: "mkdir -p",
		},
		{
			name:     "corruption warns about backups",
			err:      errors.New("database disk image is malformed (11) (SQLITE_CORRUPT)"),
			dbPath:   "/data/bidhouse.db",
			contains: "Backup any existing data",
		},
		{
			name:     "read-only filesystem mentions the env override",
			err:      errors.New("attempt to write a readonly database: read-only file system"),
			dbPath:   "/data/bidhouse.db",
			contains: "BIDHOUSE_SQLITE_PATH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifySQLiteError(tt.err, tt.dbPath)
			if tt.contains == "" && result != "" {
				t.Errorf("ClassifySQLiteError() = %q, want empty string", result)
			}
			if tt.contains != "" && !strings.Contains(result, tt.contains) {
				t.Errorf("ClassifySQLiteError() = %q, want to contain %q", result, tt.contains)
			}
		})
	}
}

func TestDefaultDataDirectories(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("BIDHOUSE_DATA_DIR", "")
		t.Setenv("BIDHOUSE_SQLITE_PATH", "")

		dirs := DefaultDataDirectories()
		if dirs.Base != "./data" {
			t.Errorf("Base = %q, want %q", dirs.Base, "./data")
		}
		if dirs.SQLite != filepath.Join("./data", "bidhouse.db") {
			t.Errorf("SQLite = %q, want %q", dirs.SQLite, filepath.Join("./data", "bidhouse.db"))
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("BIDHOUSE_DATA_DIR", "/var/lib/bidhouse")
		t.Setenv("BIDHOUSE_SQLITE_PATH", "/mnt/fast/bidhouse.db")

		dirs := DefaultDataDirectories()
		if dirs.Base != "/var/lib/bidhouse" {
			t.Errorf("Base = %q, want %q", dirs.Base, "/var/lib/bidhouse")
		}
		if dirs.SQLite != "/mnt/fast/bidhouse.db" {
			t.Errorf("SQLite = %q, want %q", dirs.SQLite, "/mnt/fast/bidhouse.db")
		}
	})

	t.Run("sqlite path follows data dir", func(t *testing.T) {
		t.Setenv("BIDHOUSE_DATA_DIR", "/tmp/bh-test")
		t.Setenv("BIDHOUSE_SQLITE_PATH", "")

		dirs := DefaultDataDirectories()
		if dirs.SQLite != filepath.Join("/tmp/bh-test", "bidhouse.db") {
			t.Errorf("SQLite = %q, want it under the data dir", dirs.SQLite)
		}
	})
}

func TestEnsureDataDirectories(t *testing.T) {
	sugar := zap.NewNop().Sugar()

	t.Run("creates base and sqlite parent", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "data")
		dirs := DataDirectories{
			Base:   base,
			SQLite: filepath.Join(base, "db", "bidhouse.db"),
		}

		if err := EnsureDataDirectories(dirs, sugar); err != nil {
			t.Fatalf("EnsureDataDirectories() error = %v", err)
		}

		for _, dir := range []string{base, filepath.Join(base, "db")} {
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("expected directory %s to exist: %v", dir, err)
			}
			if !info.IsDir() {
				t.Errorf("expected %s to be a directory", dir)
			}
		}
	})

	t.Run("idempotent on existing directories", func(t *testing.T) {
		base := t.TempDir()
		dirs := DataDirectories{
			Base:   base,
			SQLite: filepath.Join(base, "bidhouse.db"),
		}

		if err := EnsureDataDirectories(dirs, sugar); err != nil {
			t.Fatalf("first EnsureDataDirectories() error = %v", err)
		}
		if err := EnsureDataDirectories(dirs, sugar); err != nil {
			t.Fatalf("second EnsureDataDirectories() error = %v", err)
		}
	})
}
