package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// compressions mirrors the codec names the parquet encoder understands.
var compressions = map[string]bool{
	"":             true,
	"snappy":       true,
	"zstd":         true,
	"gzip":         true,
	"brotli":       true,
	"lz4":          true,
	"none":         true,
	"uncompressed": true,
}

// ConfigError reports a missing or malformed configuration value.
type ConfigError struct {
	Field  string // Dotted YAML path, empty for file-level errors
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config: ")
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that all required fields are set and values are valid.
func (c *GathererConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &ConfigError{Reason: "invalid", Err: err}
	}

	if 60%c.Schedule.IntervalMinutes != 0 {
		return &ConfigError{
			Field:  "schedule.interval_minutes",
			Reason: fmt.Sprintf("%d does not divide 60", c.Schedule.IntervalMinutes),
		}
	}

	if !compressions[strings.ToLower(c.IO.Format.Compression)] {
		return &ConfigError{
			Field:  "io.format.compression",
			Reason: fmt.Sprintf("unknown codec %q", c.IO.Format.Compression),
		}
	}

	switch c.QC.MoneynessReference {
	case "underlying_price", "index_price":
	default:
		return &ConfigError{
			Field:  "qc.moneyness_reference",
			Reason: fmt.Sprintf("must be underlying_price or index_price, got %q", c.QC.MoneynessReference),
		}
	}

	if c.Database.Timescale.Enabled {
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return &ConfigError{Field: "metrics.port", Reason: "must be between 1 and 65535"}
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return &ConfigError{Field: "metrics.path", Reason: fmt.Sprintf("must start with /, got %q", c.Metrics.Path)}
	}

	return nil
}

// fieldError converts a validator failure into a ConfigError on the YAML path.
func fieldError(fe validator.FieldError) *ConfigError {
	// Namespace is "GathererConfig.schedule.interval_minutes".
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	reason := fe.Tag()
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "min":
		reason = "must be >= " + fe.Param()
	case "max":
		reason = "must be <= " + fe.Param()
	case "oneof":
		reason = "must be one of: " + fe.Param()
	case "url":
		reason = "must be a URL"
	}
	return &ConfigError{Field: field, Reason: reason}
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return &ConfigError{Field: prefix + ".host", Reason: "is required"}
	}
	if db.Name == "" {
		return &ConfigError{Field: prefix + ".name", Reason: "is required"}
	}
	if db.User == "" {
		return &ConfigError{Field: prefix + ".user", Reason: "is required"}
	}
	if db.Password == "" {
		return &ConfigError{Field: prefix + ".password", Reason: "is required"}
	}
	if db.MaxConns < 1 {
		return &ConfigError{Field: prefix + ".max_conns", Reason: "must be >= 1"}
	}
	if db.MinConns < 0 {
		return &ConfigError{Field: prefix + ".min_conns", Reason: "must be >= 0"}
	}
	if db.MinConns > db.MaxConns {
		return &ConfigError{
			Field:  prefix + ".min_conns",
			Reason: fmt.Sprintf("(%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns),
		}
	}
	return nil
}
