package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/visualtree/internal/aggregator"
	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/logging"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}

// Validate checks configuration values for security and correctness.
func Validate(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateWorkspaceConfig(&config.Workspace); err != nil {
		return fmt.Errorf("workspace config: %w", err)
	}

	if err := validateAggregateConfig(&config.Aggregate); err != nil {
		return fmt.Errorf("aggregate config: %w", err)
	}

	if err := validatePanelConfig(&config.Panel); err != nil {
		return fmt.Errorf("panel config: %w", err)
	}

	if config.Output.Dir != "" {
		if err := validatePath(config.Output.Dir); err != nil {
			return fmt.Errorf("output config: invalid dir: %w", err)
		}
	}
	if config.Output.CacheSize <= 0 {
		return invalid("output config: cache_size %d must be positive", config.Output.CacheSize)
	}

	if err := validateLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// Port 0 asks the system for a free port
	if config.Port < 0 || config.Port > 65535 {
		return invalid("port %d is not in valid range 0-65535", config.Port)
	}

	for _, char := range append(dangerousChars, "\\", "/") {
		if strings.Contains(config.Host, char) {
			return invalid("host contains dangerous character: %s", char)
		}
	}

	switch config.Environment {
	case "", "development", "production":
	default:
		return invalid("unknown environment %q", config.Environment)
	}

	if config.DisposeGrace < 0 {
		return invalid("dispose_grace %s must not be negative", config.DisposeGrace)
	}

	return nil
}

func validateWorkspaceConfig(config *WorkspaceConfig) error {
	if config.MaxDepth < 0 {
		return invalid("max_depth %d must not be negative", config.MaxDepth)
	}

	for _, dir := range config.ExcludeDirs {
		if dir == "" || strings.ContainsAny(dir, `/\`) {
			return invalid("exclude_dirs entry %q must be a plain directory name", dir)
		}
	}

	for _, pattern := range config.Include {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return invalid("include pattern %q is malformed", pattern)
		}
	}

	return nil
}

func validateAggregateConfig(config *AggregateConfig) error {
	if config.Concurrency < 0 {
		return invalid("concurrency %d must not be negative", config.Concurrency)
	}

	if _, err := aggregator.ParseFormat(config.Format); err != nil {
		return invalid("%v", err)
	}

	return nil
}

func validatePanelConfig(config *PanelConfig) error {
	if config.Template != "" {
		if err := validatePath(config.Template); err != nil {
			return fmt.Errorf("invalid template: %w", err)
		}
	}

	if config.AssetsDir != "" {
		if err := validatePath(config.AssetsDir); err != nil {
			return fmt.Errorf("invalid assets_dir: %w", err)
		}
	}

	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return invalid("%v", err)
	}

	switch config.Format {
	case "", "text", "json":
	default:
		return invalid("unknown log format %q", config.Format)
	}

	if config.File != "" {
		if err := validatePath(config.File); err != nil {
			return fmt.Errorf("invalid file: %w", err)
		}
	}

	if config.MaxSizeMB < 0 || config.MaxBackups < 0 || config.MaxAgeDays < 0 {
		return invalid("rotation limits must not be negative")
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	for _, segment := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if segment == ".." {
			return invalid("path contains traversal: %s", path)
		}
	}

	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return invalid("path contains dangerous character: %s", char)
		}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.NewConfigError(errors.CodeConfigInvalid, fmt.Sprintf(format, args...))
}
