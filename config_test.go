package rowstore

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// Test database defaults
	if config.Database.Driver != "pgx" {
		t.Errorf("Expected database driver to be 'pgx', got %s", config.Database.Driver)
	}
	if config.Database.Host != "localhost" {
		t.Errorf("Expected database host to be 'localhost', got %s", config.Database.Host)
	}
	if config.Database.Port != 5432 {
		t.Errorf("Expected database port to be 5432, got %d", config.Database.Port)
	}
	if config.Database.MaxConnections != 25 {
		t.Errorf("Expected max connections to be 25, got %d", config.Database.MaxConnections)
	}
	if config.Database.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("Expected conn max lifetime to be 5m, got %v", config.Database.ConnMaxLifetime)
	}
	if config.Database.BatchSize != 100 {
		t.Errorf("Expected batch size to be 100, got %d", config.Database.BatchSize)
	}

	// Test logging and metrics defaults
	if config.Logging.Format != "json" {
		t.Errorf("Expected log format to be 'json', got %s", config.Logging.Format)
	}
	if !config.Metrics.Enabled || config.Metrics.Namespace != "rowstore" {
		t.Errorf("Expected metrics enabled under 'rowstore', got %+v", config.Metrics)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestConfigValidationDetailed(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorField  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "missing driver",
			mutate:      func(c *Config) { c.Database.Driver = "" },
			expectError: true,
			errorField:  "database.driver",
		},
		{
			name:        "invalid max connections",
			mutate:      func(c *Config) { c.Database.MaxConnections = 0 },
			expectError: true,
			errorField:  "database.maxConnections",
		},
		{
			name:        "invalid batch size",
			mutate:      func(c *Config) { c.Database.BatchSize = 0 },
			expectError: true,
			errorField:  "database.batchSize",
		},
		{
			name: "breaker enabled",
			mutate: func(c *Config) {
				c.Database.Breaker = BreakerConfig{Threshold: 5, Window: time.Minute, Cooldown: 30 * time.Second}
			},
		},
		{
			name:        "negative breaker threshold",
			mutate:      func(c *Config) { c.Database.Breaker.Threshold = -1 },
			expectError: true,
			errorField:  "database.breaker.threshold",
		},
		{
			name:        "breaker without window",
			mutate:      func(c *Config) { c.Database.Breaker.Threshold = 3 },
			expectError: true,
			errorField:  "database.breaker",
		},
		{
			name:        "unknown log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorField:  "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assertConfigError(t, config.Validate(), tt.expectError, tt.errorField)
		})
	}
}

func TestDefaultModelConfig(t *testing.T) {
	cfg := DefaultModelConfig("users")

	if cfg.Table != "users" {
		t.Errorf("Expected table 'users', got %s", cfg.Table)
	}
	if len(cfg.PrimaryKey) != 1 || cfg.PrimaryKey[0] != "id" {
		t.Errorf("Expected primary key [id], got %v", cfg.PrimaryKey)
	}
	if !cfg.AutoIncrement || !cfg.AllowCallbacks {
		t.Error("Expected auto increment and callbacks to be enabled")
	}
	if cfg.SoftDelete.Enabled {
		t.Error("Expected soft deletes to be disabled by default")
	}
	if cfg.SoftDelete.Field != "deleted_at" {
		t.Errorf("Expected soft delete field 'deleted_at', got %s", cfg.SoftDelete.Field)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default model config to be valid, got %v", err)
	}
}

func TestModelConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *ModelConfig)
		expectError bool
		errorField  string
	}{
		{
			name: "composite key with alternate keys",
			mutate: func(c *ModelConfig) {
				c.PrimaryKey = Key{"org_id", "user_id"}
				c.AltKeys = []Key{{"email"}, {"org_id", "username"}}
				c.AutoIncrement = false
			},
		},
		{
			name:        "missing table",
			mutate:      func(c *ModelConfig) { c.Table = "" },
			expectError: true,
			errorField:  "table",
		},
		{
			name:        "empty primary key",
			mutate:      func(c *ModelConfig) { c.PrimaryKey = nil },
			expectError: true,
			errorField:  "primaryKey",
		},
		{
			name:        "repeated key column",
			mutate:      func(c *ModelConfig) { c.PrimaryKey = Key{"id", "id"} },
			expectError: true,
			errorField:  "primaryKey",
		},
		{
			name:        "empty alternate key",
			mutate:      func(c *ModelConfig) { c.AltKeys = []Key{{}} },
			expectError: true,
			errorField:  "altKeys",
		},
		{
			name: "alternate key equal to primary key in another order",
			mutate: func(c *ModelConfig) {
				c.PrimaryKey = Key{"a", "b"}
				c.AltKeys = []Key{{"b", "a"}}
			},
			expectError: true,
			errorField:  "altKeys",
		},
		{
			name:        "duplicate alternate keys",
			mutate:      func(c *ModelConfig) { c.AltKeys = []Key{{"email"}, {"email"}} },
			expectError: true,
			errorField:  "altKeys",
		},
		{
			name:        "increment field outside key",
			mutate:      func(c *ModelConfig) { c.AutoIncrementField = "serial" },
			expectError: true,
			errorField:  "autoIncrementField",
		},
		{
			name:        "unknown date format",
			mutate:      func(c *ModelConfig) { c.DateFormat = "unix" },
			expectError: true,
			errorField:  "dateFormat",
		},
		{
			name: "timestamps without fields",
			mutate: func(c *ModelConfig) {
				c.UseTimestamps = true
				c.CreatedField = ""
				c.UpdatedField = ""
			},
			expectError: true,
			errorField:  "useTimestamps",
		},
		{
			name:        "protection without allowed fields",
			mutate:      func(c *ModelConfig) { c.ProtectFields = true },
			expectError: true,
			errorField:  "allowedFields",
		},
		{
			name: "soft delete without field",
			mutate: func(c *ModelConfig) {
				c.SoftDelete.Enabled = true
				c.SoftDelete.Field = ""
			},
			expectError: true,
			errorField:  "softDelete.field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultModelConfig("members")
			tt.mutate(&cfg)
			assertConfigError(t, cfg.Validate(), tt.expectError, tt.errorField)
		})
	}
}

func TestModelConfigHelpers(t *testing.T) {
	cfg := DefaultModelConfig("members")
	cfg.PrimaryKey = Key{"org_id", "seq"}
	if got := cfg.IncrementColumn(); got != "org_id" {
		t.Errorf("Expected increment column to default to the first key column, got %s", got)
	}
	cfg.AutoIncrementField = "seq"
	if got := cfg.IncrementColumn(); got != "seq" {
		t.Errorf("Expected increment column 'seq', got %s", got)
	}
	if got := cfg.Name(); got != "members" {
		t.Errorf("Expected name to fall back to the table, got %s", got)
	}
	cfg.RecordType = "Member"
	if got := cfg.Name(); got != "Member" {
		t.Errorf("Expected name 'Member', got %s", got)
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "test.field",
		Message: "test message",
	}

	expected := "config validation error for field 'test.field': test message"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func assertConfigError(t *testing.T, err error, expectError bool, field string) {
	t.Helper()
	if !expectError {
		if err != nil {
			t.Errorf("Expected no validation error but got: %v", err)
		}
		return
	}
	if err == nil {
		t.Error("Expected validation error but got none")
		return
	}
	configErr, ok := err.(*ConfigError)
	if !ok {
		t.Errorf("Expected ConfigError, got %T", err)
		return
	}
	if configErr.Field != field {
		t.Errorf("Expected error field %s, got %s", field, configErr.Field)
	}
}
