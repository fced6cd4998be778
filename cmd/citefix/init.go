package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/citefix/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [document.tex]",
	Short: "Initialize a citefix project",
	Long: `Initialize a citefix project in the current directory (or --root).

Creates:
  .citefix/
  ├── config.json     # Default document and command sets
  └── cache/          # Run journal (gitignored)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

// InitResult is the response for the init command.
type InitResult struct {
	Status   string `json:"status"`
	Path     string `json:"path"`
	Document string `json:"document,omitempty"`
}

func runInit(cmd *cobra.Command, args []string) error {
	root, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		exitWithError(ExitError, "resolving root: %v", err)
	}

	if config.IsProject(root) {
		exitWithError(ExitError, "directory already contains a citefix project")
	}

	cfg := &config.Config{}
	if len(args) == 1 {
		doc, err := filepath.Abs(args[0])
		if err != nil {
			exitWithError(ExitError, "resolving %s: %v", args[0], err)
		}
		if _, err := os.Stat(doc); err != nil {
			exitWithError(ExitError, "document %s: %v", args[0], err)
		}
		// Store the document relative to the root when it lives inside it
		if rel, err := filepath.Rel(root, doc); err == nil && !startsWithDotDot(rel) {
			doc = rel
		}
		cfg.Document = doc
	}

	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating %s: %v", config.CachePath(root), err)
	}
	if err := os.WriteFile(filepath.Join(config.ProjectPath(root), ".gitignore"), []byte(config.CacheDir+"/\n"), 0644); err != nil {
		exitWithError(ExitError, "writing .gitignore: %v", err)
	}
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "creating config.json: %v", err)
	}

	if humanOutput {
		fmt.Printf("Initialized citefix project in %s\n", root)
		if cfg.Document != "" {
			fmt.Printf("Default document: %s\n", cfg.Document)
		}
	} else {
		outputJSON(InitResult{Status: "initialized", Path: root, Document: cfg.Document})
	}
	return nil
}

// startsWithDotDot reports whether a relative path leaves its base directory.
func startsWithDotDot(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
