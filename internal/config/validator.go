package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"

	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Project.Root == "" {
		return cgerrors.NewConfigError("project.root", "", errors.New("project root cannot be empty"))
	}

	if err := v.validateExtract(&cfg.Extract); err != nil {
		return err
	}

	if err := v.validatePatterns("include", cfg.Include); err != nil {
		return err
	}
	if err := v.validatePatterns("exclude", cfg.Exclude); err != nil {
		return err
	}

	switch cfg.Store.Driver {
	case "", "memory":
		cfg.Store.Driver = "memory"
	case "sqlite":
		if cfg.Store.Path == "" {
			return cgerrors.NewConfigError("store.path", "", errors.New("sqlite store needs a path"))
		}
	default:
		return cgerrors.NewConfigError("store.driver", cfg.Store.Driver, errors.New("expected memory or sqlite"))
	}

	if cfg.Watch.DebounceMs < 0 {
		return cgerrors.NewConfigError("watch.debounce_ms", fmt.Sprint(cfg.Watch.DebounceMs), errors.New("must not be negative"))
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 300
	}
	return nil
}

func (v *Validator) validateExtract(ex *Extract) error {
	if ex.Workers < 0 {
		return cgerrors.NewConfigError("extract.workers", fmt.Sprint(ex.Workers), errors.New("must not be negative"))
	}
	if ex.Workers == 0 {
		ex.Workers = runtime.NumCPU()
	}
	// More workers than CPUs only adds parser pool churn
	if ex.Workers > runtime.NumCPU()*2 {
		ex.Workers = runtime.NumCPU() * 2
	}
	if ex.MaxFileSize <= 0 {
		return cgerrors.NewConfigError("extract.max_file_size", fmt.Sprint(ex.MaxFileSize), errors.New("must be positive"))
	}
	if ex.CacheSize < 0 {
		return cgerrors.NewConfigError("extract.cache_size", fmt.Sprint(ex.CacheSize), errors.New("must not be negative"))
	}
	return nil
}

func (v *Validator) validatePatterns(field string, patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return cgerrors.NewConfigError(field, p, errors.New("invalid glob pattern"))
		}
	}
	return nil
}
