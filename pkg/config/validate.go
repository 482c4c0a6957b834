package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// validate is the shared validator instance. Field names in errors use
// the yaml tags so they match the configuration file.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks struct tag rules and the cross-field rules the tags
// cannot express. All errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, FieldError{Field: fieldPath(fe), Message: describe(fe)})
		}
	}

	errs = append(errs, validateJournal(&cfg.Journal)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateJournal(j *JournalConfig) []FieldError {
	var errs []FieldError
	if !j.Enabled {
		return nil
	}
	if j.Backend == "sqlite" && j.SQLite.Path == "" {
		errs = append(errs, FieldError{Field: "journal.sqlite.path", Message: "is required for the sqlite backend"})
	}
	if j.Backend == "postgres" {
		if j.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "journal.postgres.dsn", Message: "is required for the postgres backend"})
		}
		if j.Postgres.MinConns > j.Postgres.MaxConns {
			errs = append(errs, FieldError{Field: "journal.postgres.min_conns", Message: "must not exceed max_conns"})
		}
	}
	if j.PruneSchedule != "" {
		if _, err := cron.ParseStandard(j.PruneSchedule); err != nil {
			errs = append(errs, FieldError{Field: "journal.prune_schedule", Message: err.Error()})
		}
	}
	return errs
}

// fieldPath drops the root type name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hostname_port":
		return fmt.Sprintf("invalid address %q (expected host:port)", fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' rule", fe.Tag())
	}
}
