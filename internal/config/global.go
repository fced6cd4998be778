package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/citefix/config.yml.
type GlobalConfig struct {
	LogLevel   string `yaml:"log_level,omitempty" json:"log_level,omitempty"`     // debug, info, warn, error
	TempPrefix string `yaml:"temp_prefix,omitempty" json:"temp_prefix,omitempty"` // Default temporary-key prefix
	Journal    *bool  `yaml:"journal,omitempty" json:"journal,omitempty"`         // Record runs; defaults to true
	BackupDir  string `yaml:"backup_dir,omitempty" json:"backup_dir,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "citefix"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// EnvRoot overrides the project root search.
	EnvRoot = "CITEFIX_ROOT"
	// EnvLogLevel overrides the configured log level.
	EnvLogLevel = "CITEFIX_LOG_LEVEL"
)

// ValidLogLevels lists the accepted log_level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/citefix/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	if err := ValidateLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("global config %s: %w", path, err)
	}

	if cfg.BackupDir != "" {
		cfg.BackupDir = ExpandPath(cfg.BackupDir)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ValidateLogLevel checks that the level is one of ValidLogLevels.
func ValidateLogLevel(level string) error {
	if level == "" {
		return nil // Empty defaults to warn
	}
	for _, valid := range ValidLogLevels {
		if strings.EqualFold(level, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid log_level: %s (valid: %v)", level, ValidLogLevels)
}

// GetLogLevel returns the log level, with CITEFIX_LOG_LEVEL taking precedence
// over the global config. Defaults to "warn".
func GetLogLevel() string {
	if env := os.Getenv(EnvLogLevel); env != "" {
		return strings.ToLower(env)
	}
	cfg, err := LoadGlobalConfig()
	if err != nil || cfg.LogLevel == "" {
		return "warn"
	}
	return strings.ToLower(cfg.LogLevel)
}

// JournalEnabled reports whether runs should be recorded.
func JournalEnabled() bool {
	cfg, err := LoadGlobalConfig()
	if err != nil || cfg.Journal == nil {
		return true
	}
	return *cfg.Journal
}

// HelpfulConfigMessage returns a helpful message when no project is found.
func HelpfulConfigMessage() string {
	return fmt.Sprintf(`No citefix project found.

Run 'citefix init <document.tex>' in the manuscript directory, or set %s
to the project root. Global defaults live in %s.`,
		EnvRoot, GlobalConfigPath())
}
