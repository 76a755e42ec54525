package rowstore

import (
	"slices"
	"time"
)

// DateFormat selects how timestamps are written to the store.
type DateFormat string

const (
	DateFormatDatetime DateFormat = "datetime"
	DateFormatDate     DateFormat = "date"
	DateFormatInt      DateFormat = "int"
)

// Config consolidates process level settings used by binaries.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database" mapstructure:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	// Driver is one of pgx, postgres, sqlite3, duckdb, mysql, dsql.
	Driver          string        `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	Database        string        `json:"database" yaml:"database" mapstructure:"database"`
	Username        string        `json:"username" yaml:"username" mapstructure:"username"`
	Password        string        `json:"password" yaml:"password" mapstructure:"password"`
	SSLMode         string        `json:"sslMode" yaml:"sslMode" mapstructure:"ssl_mode"`
	Region          string        `json:"region" yaml:"region" mapstructure:"region"`
	MaxConnections  int           `json:"maxConnections" yaml:"maxConnections" mapstructure:"max_connections"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime" mapstructure:"conn_max_idle_time"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	BatchSize       int           `json:"batchSize" yaml:"batchSize" mapstructure:"batch_size"`
	Breaker         BreakerConfig `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
}

// BreakerConfig enables a circuit breaker in front of the database. A zero
// Threshold disables it.
type BreakerConfig struct {
	Threshold int           `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	Window    time.Duration `json:"window" yaml:"window" mapstructure:"window"`
	Cooldown  time.Duration `json:"cooldown" yaml:"cooldown" mapstructure:"cooldown"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level" mapstructure:"level"`
	Format      string `json:"format" yaml:"format" mapstructure:"format"`
	Development bool   `json:"development" yaml:"development" mapstructure:"development"`
	LogQueries  bool   `json:"logQueries" yaml:"logQueries" mapstructure:"log_queries"`
}

// MetricsConfig contains metrics collection settings
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// SoftDeleteConfig describes how deleted rows are marked.
//
// When DeletedValue and NotDeletedValue are both nil the marker column is
// treated as a timestamp: NULL means active, anything else means deleted.
type SoftDeleteConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Field           string `json:"field" yaml:"field" mapstructure:"field"`
	DeletedValue    any    `json:"deletedValue,omitempty" yaml:"deletedValue,omitempty" mapstructure:"deleted_value"`
	NotDeletedValue any    `json:"notDeletedValue,omitempty" yaml:"notDeletedValue,omitempty" mapstructure:"not_deleted_value"`
}

// ModelConfig describes one table and how rows in it are addressed.
type ModelConfig struct {
	Table      string `json:"table" yaml:"table" mapstructure:"table"`
	PrimaryKey Key    `json:"primaryKey" yaml:"primaryKey" mapstructure:"primary_key"`
	AltKeys    []Key  `json:"altKeys,omitempty" yaml:"altKeys,omitempty" mapstructure:"alt_keys"`

	AutoIncrement bool `json:"autoIncrement" yaml:"autoIncrement" mapstructure:"auto_increment"`
	// AutoIncrementField names the generated column of a composite key.
	// Defaults to the first key column.
	AutoIncrementField string `json:"autoIncrementField,omitempty" yaml:"autoIncrementField,omitempty" mapstructure:"auto_increment_field"`

	DateFormat DateFormat `json:"dateFormat" yaml:"dateFormat" mapstructure:"date_format"`

	UseTimestamps bool   `json:"useTimestamps" yaml:"useTimestamps" mapstructure:"use_timestamps"`
	CreatedField  string `json:"createdField,omitempty" yaml:"createdField,omitempty" mapstructure:"created_field"`
	UpdatedField  string `json:"updatedField,omitempty" yaml:"updatedField,omitempty" mapstructure:"updated_field"`

	SoftDelete SoftDeleteConfig `json:"softDelete" yaml:"softDelete" mapstructure:"soft_delete"`

	AllowedFields []string `json:"allowedFields,omitempty" yaml:"allowedFields,omitempty" mapstructure:"allowed_fields"`
	ProtectFields bool     `json:"protectFields" yaml:"protectFields" mapstructure:"protect_fields"`

	SkipValidation bool `json:"skipValidation" yaml:"skipValidation" mapstructure:"skip_validation"`
	AllowCallbacks bool `json:"allowCallbacks" yaml:"allowCallbacks" mapstructure:"allow_callbacks"`

	// Strict turns an unscoped delete into ErrUnscopedDelete instead of a
	// plain failed result.
	Strict bool `json:"strict" yaml:"strict" mapstructure:"strict"`

	// RecordType is the name reported in error messages.
	RecordType string `json:"recordType,omitempty" yaml:"recordType,omitempty" mapstructure:"record_type"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "pgx",
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			BatchSize:       100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "rowstore",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return &ConfigError{Field: "database.driver", Message: "is required"}
	}
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	if c.Database.BatchSize <= 0 {
		return &ConfigError{Field: "database.batchSize", Message: "must be greater than 0"}
	}
	if b := c.Database.Breaker; b.Threshold < 0 {
		return &ConfigError{Field: "database.breaker.threshold", Message: "must not be negative"}
	} else if b.Threshold > 0 && (b.Window <= 0 || b.Cooldown <= 0) {
		return &ConfigError{Field: "database.breaker", Message: "window and cooldown are required when a threshold is set"}
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be json or console"}
	}
	return nil
}

// DefaultModelConfig returns a model configuration for table keyed by a
// single auto increment "id" column.
func DefaultModelConfig(table string) ModelConfig {
	return ModelConfig{
		Table:          table,
		PrimaryKey:     Key{"id"},
		AutoIncrement:  true,
		DateFormat:     DateFormatDatetime,
		CreatedField:   "created_at",
		UpdatedField:   "updated_at",
		AllowCallbacks: true,
		SoftDelete: SoftDeleteConfig{
			Field: "deleted_at",
		},
	}
}

// Validate validates the model configuration
func (c *ModelConfig) Validate() error {
	if c.Table == "" {
		return &ConfigError{Field: "table", Message: "is required"}
	}
	if len(c.PrimaryKey) == 0 {
		return &ConfigError{Field: "primaryKey", Message: "must name at least one column"}
	}
	if hasDuplicates(c.PrimaryKey) {
		return &ConfigError{Field: "primaryKey", Message: "must not repeat a column"}
	}
	for i, alt := range c.AltKeys {
		if len(alt) == 0 {
			return &ConfigError{Field: "altKeys", Message: "must not contain an empty key"}
		}
		if alt.SameColumns(c.PrimaryKey) {
			return &ConfigError{Field: "altKeys", Message: "must differ from the primary key"}
		}
		for _, other := range c.AltKeys[:i] {
			if alt.SameColumns(other) {
				return &ConfigError{Field: "altKeys", Message: "must not be declared twice"}
			}
		}
	}
	if c.AutoIncrementField != "" && !slices.Contains(c.PrimaryKey, c.AutoIncrementField) {
		return &ConfigError{Field: "autoIncrementField", Message: "must be a primary key column"}
	}
	switch c.DateFormat {
	case "", DateFormatDatetime, DateFormatDate, DateFormatInt:
	default:
		return &ConfigError{Field: "dateFormat", Message: "must be datetime, date or int"}
	}
	if c.UseTimestamps && c.CreatedField == "" && c.UpdatedField == "" {
		return &ConfigError{Field: "useTimestamps", Message: "requires createdField or updatedField"}
	}
	if c.ProtectFields && len(c.AllowedFields) == 0 {
		return &ConfigError{Field: "allowedFields", Message: "must not be empty when protectFields is set"}
	}
	if c.SoftDelete.Enabled && c.SoftDelete.Field == "" {
		return &ConfigError{Field: "softDelete.field", Message: "is required when soft deletes are enabled"}
	}
	return nil
}

// IncrementColumn returns the column that receives generated ids.
func (c *ModelConfig) IncrementColumn() string {
	if c.AutoIncrementField != "" {
		return c.AutoIncrementField
	}
	if len(c.PrimaryKey) == 0 {
		return ""
	}
	return c.PrimaryKey[0]
}

// Name returns the record type, falling back to the table name.
func (c *ModelConfig) Name() string {
	if c.RecordType != "" {
		return c.RecordType
	}
	return c.Table
}

func hasDuplicates(cols []string) bool {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, ok := seen[c]; ok {
			return true
		}
		seen[c] = struct{}{}
	}
	return false
}
