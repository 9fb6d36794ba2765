// Package config provides configuration types for the Scopegate resolution
// engine. The engine is an embedded library first, so configuration covers
// only the things a host process wires at startup: where snapshots come
// from, how decisions are audited, and cache sizing.
package config

// Config is the top-level configuration for the scopegate binary.
type Config struct {
	// Engine configures resolution behavior.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Snapshot configures where scope and guardrail snapshots are loaded from.
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`

	// Audit configures where decision records are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// DevMode enables development features (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// EngineConfig configures resolution behavior.
type EngineConfig struct {
	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// PolicyCacheSize is the number of resolved guardrail policies kept in
	// the in-process LRU cache. Defaults to 1000.
	PolicyCacheSize int `yaml:"policy_cache_size" mapstructure:"policy_cache_size" validate:"omitempty,min=1"`
}

// SnapshotConfig configures the snapshot source.
// Exactly one of File or Postgres must be configured.
type SnapshotConfig struct {
	// Source selects the snapshot backend.
	// Valid values: "file" or "postgres". Defaults to "file".
	Source string `yaml:"source" mapstructure:"source" validate:"omitempty,oneof=file postgres"`

	// File is the path to a YAML snapshot fixture. Required when Source is
	// "file".
	File string `yaml:"file" mapstructure:"file"`

	// PostgresDSN is the connection string for the external system's
	// database. Required when Source is "postgres".
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`

	// Redis configures the optional shared snapshot cache in front of the
	// postgres source.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig configures the shared snapshot cache.
type RedisConfig struct {
	// Enabled turns the Redis snapshot cache on or off.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the Redis server address (e.g., "127.0.0.1:6379").
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// TTL is how long cached snapshots stay valid (e.g., "30s", "1m").
	// Defaults to "30s".
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty"`
}

// AuditConfig configures decision record output.
type AuditConfig struct {
	// Output specifies where audit records are written.
	// Valid values: "stdout" or "file:///absolute/path/to/audit.log"
	// Defaults to "stdout" if empty.
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// BufferSize is the number of recent records kept in the in-memory
	// ring buffer for inspection. Defaults to 1000.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" validate:"omitempty,min=1"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Engine.LogLevel == "" {
		c.Engine.LogLevel = "info"
	}
	if c.Engine.PolicyCacheSize == 0 {
		c.Engine.PolicyCacheSize = 1000
	}

	if c.Snapshot.Source == "" {
		c.Snapshot.Source = "file"
	}
	if c.Snapshot.Redis.TTL == "" {
		c.Snapshot.Redis.TTL = "30s"
	}

	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 1000
	}

	if c.DevMode {
		c.Engine.LogLevel = "debug"
	}
}
