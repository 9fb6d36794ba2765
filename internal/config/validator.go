package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers scopegate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// audit_output: validates "stdout" or "file://<absolute-path>"
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateAuditOutput validates the audit output field.
// Valid values: "stdout" or "file://<absolute-path>"
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "stdout" {
		return true
	}

	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}

	return false
}

// Validate validates the Config using struct tags and custom cross-field
// rules. Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateSnapshotSource(); err != nil {
		return err
	}

	return nil
}

// validateSnapshotSource ensures the selected source has the fields it needs
// and that durations parse.
func (c *Config) validateSnapshotSource() error {
	switch c.Snapshot.Source {
	case "file":
		if c.Snapshot.File == "" {
			return errors.New("snapshot: source 'file' requires snapshot.file")
		}
	case "postgres":
		if c.Snapshot.PostgresDSN == "" {
			return errors.New("snapshot: source 'postgres' requires snapshot.postgres_dsn")
		}
	}

	if c.Snapshot.Redis.Enabled {
		if c.Snapshot.Source != "postgres" {
			return errors.New("snapshot: redis cache requires source 'postgres'")
		}
		if c.Snapshot.Redis.Addr == "" {
			return errors.New("snapshot: redis cache requires snapshot.redis.addr")
		}
		if _, err := time.ParseDuration(c.Snapshot.Redis.TTL); err != nil {
			return fmt.Errorf("snapshot: invalid redis.ttl: %w", err)
		}
	}

	return nil
}

// RedisTTL returns the parsed cache TTL. Call after Validate.
func (c *Config) RedisTTL() time.Duration {
	d, err := time.ParseDuration(c.Snapshot.Redis.TTL)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout' or 'file://<absolute-path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
