package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"bizsync/internal/storage"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported and the run continues.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one validation finding. Path is the environment variable that
// seeds the offending setting.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks c and returns every issue found.
func Validate(c *Config) []Issue {
	var issues []Issue

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []Issue{{Severity: SeverityError, Path: "config", Message: err.Error()}}
		}
		for _, fe := range verrs {
			issues = append(issues, Issue{Severity: SeverityError, Path: fe.Field(), Message: describe(fe)})
		}
	}

	if c.Driver == string(storage.Postgres) && c.DSN == "" {
		for _, f := range []struct{ path, val string }{
			{"POSTGRES_HOST", c.Host},
			{"POSTGRES_DB", c.Database},
			{"POSTGRES_USER", c.User},
		} {
			if strings.TrimSpace(f.val) == "" {
				issues = append(issues, Issue{Severity: SeverityError, Path: f.path, Message: "required when DB_DSN is empty"})
			}
		}
	}

	if c.BatchSize > 0 && c.StatementRows > c.BatchSize {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "STATEMENT_ROWS",
			Message:  fmt.Sprintf("larger than BATCH_SIZE (%d); business statements never exceed one batch", c.BatchSize),
		})
	}
	if c.Driver != string(storage.Postgres) && c.DSN != "" && c.Host != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "POSTGRES_HOST",
			Message:  "ignored for driver " + c.Driver,
		})
	}
	return issues
}

// Err folds the error-severity issues into one error, or returns nil.
func Err(issues []Issue) error {
	var errs []error
	for _, i := range issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "required_unless":
		return "required unless DB_DRIVER is postgres"
	case "required_if":
		return "required for METRICS_BACKEND=" + lastWord(fe.Param())
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fmt.Sprint(fe.Value()), fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s (got %v)", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be <= %s (got %v)", fe.Param(), fe.Value())
	case "numeric":
		return fmt.Sprintf("%q is not a number", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func lastWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return s
	}
	return f[len(f)-1]
}
