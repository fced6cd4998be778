// Package config handles project configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/citefix/internal/citation"
)

// Config represents project configuration stored in .citefix/config.json.
type Config struct {
	Document      string   `json:"document,omitempty"`       // Manuscript path, relative to the project root
	CiteCommands  []string `json:"cite_commands,omitempty"`  // Empty means the default cite family
	EntryCommands []string `json:"entry_commands,omitempty"` // Empty means bibitem
	BibBegin      string   `json:"bib_begin,omitempty"`
	BibEnd        string   `json:"bib_end,omitempty"`
	TempPrefix    string   `json:"temp_prefix,omitempty"`
	BackupDir     string   `json:"backup_dir,omitempty"` // Relative to the project root; empty keeps backups beside the document
}

const (
	ProjectDir  = ".citefix"
	ConfigFile  = "config.json"
	CacheDir    = "cache"
	JournalFile = "journal.db"
)

// ProjectPath returns the path to the .citefix directory from a root path.
func ProjectPath(root string) string {
	return filepath.Join(root, ProjectDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, ProjectDir, ConfigFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, ProjectDir, CacheDir)
}

// JournalPath returns the path to the run journal from a root path.
func JournalPath(root string) string {
	return filepath.Join(root, ProjectDir, CacheDir, JournalFile)
}

// IsProject checks if the given path contains a citefix project.
func IsProject(root string) bool {
	info, err := os.Stat(ProjectPath(root))
	return err == nil && info.IsDir()
}

// FindProject walks up from the given path to find a citefix project.
// Returns the project root path or an error if not found.
func FindProject(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsProject(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a citefix project (no %s directory found)", ProjectDir)
		}
		abs = parent
	}
}

// Load reads configuration from the project at the given root.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Save writes configuration to the project at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Markers returns the citation markers configured for the project.
func (c *Config) Markers() citation.Markers {
	m := citation.DefaultMarkers()
	if len(c.CiteCommands) > 0 {
		m.Cite = c.CiteCommands
	}
	if len(c.EntryCommands) > 0 {
		m.Entry = c.EntryCommands
	}
	if c.BibEnd != "" {
		m.Terminator = c.BibEnd
	}
	return m
}

// Block returns the bibliography block markers configured for the project.
func (c *Config) Block() citation.Block {
	b := citation.DefaultBlock()
	if c.BibBegin != "" {
		b.Begin = c.BibBegin
	}
	if c.BibEnd != "" {
		b.End = c.BibEnd
	}
	return b
}

// Validate checks command names and marker settings.
func (c *Config) Validate() error {
	for _, names := range [][]string{c.CiteCommands, c.EntryCommands} {
		for _, name := range names {
			if !validCommand(name) {
				return fmt.Errorf("invalid command name %q (letters only, no backslash)", name)
			}
		}
	}
	if (c.BibBegin == "") != (c.BibEnd == "") {
		return fmt.Errorf("bib_begin and bib_end must be set together")
	}
	return nil
}

func validCommand(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// ResolvePath makes path absolute relative to the project root.
func ResolvePath(root, path string) string {
	if path == "" {
		return ""
	}
	path = ExpandPath(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
