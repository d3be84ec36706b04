// Package config provides configuration management for visualtree using
// Viper for loading from files, environment variables and command-line
// flags.
//
// Configuration is read from .visualtree.yml (or the file named by
// --config / VISUALTREE_CONFIG_FILE), overridden by VISUALTREE_ prefixed
// environment variables and bound flags. Defaults are registered on the
// viper instance so every key resolves even without a file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "VISUALTREE"

// FileName is the base name of the configuration file.
const FileName = ".visualtree"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Aggregate AggregateConfig `mapstructure:"aggregate" yaml:"aggregate"`
	Panel     PanelConfig     `mapstructure:"panel" yaml:"panel"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	NoOpen         bool     `mapstructure:"no-open" yaml:"no-open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Environment    string   `mapstructure:"environment" yaml:"environment"`
	// DisposeGrace is how long a panel survives without a connection.
	DisposeGrace time.Duration `mapstructure:"dispose_grace" yaml:"dispose_grace"`
}

type WorkspaceConfig struct {
	Root             string   `mapstructure:"root" yaml:"root"`
	ExcludeDirs      []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
	Include          []string `mapstructure:"include" yaml:"include"`
	RespectGitignore bool     `mapstructure:"respect_gitignore" yaml:"respect_gitignore"`
	FollowSymlinks   bool     `mapstructure:"follow_symlinks" yaml:"follow_symlinks"`
	MaxDepth         int      `mapstructure:"max_depth" yaml:"max_depth"`
}

type AggregateConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// MaxFileSize is in bytes; negative disables the limit.
	MaxFileSize int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	Format      string   `mapstructure:"format" yaml:"format"`
	Skip        []string `mapstructure:"skip" yaml:"skip"`
}

type PanelConfig struct {
	// Template is a path to a custom panel template. Empty uses the
	// built-in shell.
	Template string `mapstructure:"template" yaml:"template"`
	// AssetsDir serves panel assets from disk instead of the embedded set.
	AssetsDir         string `mapstructure:"assets_dir" yaml:"assets_dir"`
	Title             string `mapstructure:"title" yaml:"title"`
	AllowInlineStyles bool   `mapstructure:"allow_inline_styles" yaml:"allow_inline_styles"`
}

type OutputConfig struct {
	// Dir receives documents opened by the file viewer. Empty means a
	// visualtree directory under the system temp dir.
	Dir       string `mapstructure:"dir" yaml:"dir"`
	CacheSize int    `mapstructure:"cache_size" yaml:"cache_size"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.open", true)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.dispose_grace", 5*time.Second)

	v.SetDefault("workspace.root", ".")
	v.SetDefault("workspace.exclude_dirs", []string{".git", "__pycache__", "node_modules"})
	v.SetDefault("workspace.include", []string{})
	v.SetDefault("workspace.respect_gitignore", false)
	v.SetDefault("workspace.follow_symlinks", false)
	v.SetDefault("workspace.max_depth", 0)

	v.SetDefault("aggregate.concurrency", 8)
	v.SetDefault("aggregate.max_file_size", int64(10<<20))
	v.SetDefault("aggregate.format", "markdown")
	v.SetDefault("aggregate.skip", []string{})

	v.SetDefault("panel.template", "")
	v.SetDefault("panel.assets_dir", "")
	v.SetDefault("panel.title", "visual tree")
	v.SetDefault("panel.allow_inline_styles", false)

	v.SetDefault("output.dir", "")
	v.SetDefault("output.cache_size", 32)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Override open if no-open was passed
	if config.Server.NoOpen {
		config.Server.Open = false
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
