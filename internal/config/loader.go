// Package config provides configuration loading for the scopegate binary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for scopegate.yaml/.yml in
// standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("scopegate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SCOPEGATE_SNAPSHOT_POSTGRES_DSN
	viper.SetEnvPrefix("SCOPEGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a scopegate config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".scopegate"),
		"/etc/scopegate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "scopegate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable support.
// Example: SCOPEGATE_ENGINE_LOG_LEVEL overrides engine.log_level
func bindNestedEnvKeys() {
	_ = viper.BindEnv("engine.log_level")
	_ = viper.BindEnv("engine.policy_cache_size")

	_ = viper.BindEnv("snapshot.source")
	_ = viper.BindEnv("snapshot.file")
	_ = viper.BindEnv("snapshot.postgres_dsn")
	_ = viper.BindEnv("snapshot.redis.enabled")
	_ = viper.BindEnv("snapshot.redis.addr")
	_ = viper.BindEnv("snapshot.redis.ttl")

	_ = viper.BindEnv("audit.output")
	_ = viper.BindEnv("audit.buffer_size")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the Config.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigForCLI loads configuration like LoadConfig, but lets a
// --snapshot flag force the file source before validation. With an override
// in place no config file is required at all.
func LoadConfigForCLI(snapshotOverride string) (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if snapshotOverride != "" {
		cfg.Snapshot.Source = "file"
		cfg.Snapshot.File = snapshotOverride
		cfg.Snapshot.Redis.Enabled = false
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
