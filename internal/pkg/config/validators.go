// internal/pkg/config/validators.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// missingPrefix marks placeholder values that were never filled in.
const missingPrefix = "MISSING_"

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// present rejects empty values and unfilled MISSING_ placeholders.
	_ = v.RegisterValidation("present", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.HasPrefix(s, missingPrefix)
	})
	return v
}

// BasicValidator checks the struct tags on Config
type BasicValidator struct{}

func (v *BasicValidator) Validate(cfg *Config) error {
	err := structValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "present":
		return fmt.Errorf("%w: %s", ErrMissingRequiredConfig, field)
	case "oneof":
		return fmt.Errorf("%s %q must be one of: %s", field, fe.Value(), fe.Param())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Errorf("%s must not be below %s", field, fe.Param())
	case "gtefield":
		return fmt.Errorf("%s must be >= %s", field, fe.Param())
	case "http_url":
		return fmt.Errorf("%s %q must be an absolute http(s) URL", field, fe.Value())
	}
	return fmt.Errorf("%s is invalid (%s)", field, fe.Tag())
}

// ProductionValidator enforces the settings a public deployment needs
type ProductionValidator struct{}

func (v *ProductionValidator) Validate(cfg *Config) error {
	switch cfg.Ledger.Driver {
	case LedgerMemory:
		return errors.New("memory ledger driver is not allowed in production")
	case LedgerPostgres:
		if strings.HasPrefix(cfg.Database.Password, missingPrefix) {
			return fmt.Errorf("%w: database password", ErrMissingRequiredConfig)
		}
		if cfg.Database.SSLMode == "disable" {
			return errors.New("database SSL must be enabled in production")
		}
	}

	if !strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		return errors.New("backend base_url must use https in production")
	}
	if !cfg.Security.SecureHeaders {
		return errors.New("secure headers must be enabled in production")
	}
	if len(cfg.Security.AllowedOrigins) == 0 {
		return errors.New("allowed origins must be configured in production")
	}
	if cfg.Server.TLSEnabled && (cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "") {
		return errors.New("TLS cert and key files must be provided when TLS is enabled")
	}
	return nil
}

// SecurityValidator checks token and CORS settings
type SecurityValidator struct{}

func (v *SecurityValidator) Validate(cfg *Config) error {
	// An empty secret means tokens are decoded without verification.
	if cfg.Security.JWTSecret != "" && len(cfg.Security.JWTSecret) < 32 {
		return errors.New("JWT secret must be at least 32 characters")
	}
	if cfg.IsProduction() {
		for _, origin := range cfg.Security.AllowedOrigins {
			if origin == "*" {
				return errors.New("wildcard origin (*) not allowed in production")
			}
		}
	}
	return nil
}
