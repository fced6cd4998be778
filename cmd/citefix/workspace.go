package main

import (
	"os"
	"path/filepath"

	"github.com/matsen/citefix/internal/citation"
	"github.com/matsen/citefix/internal/config"
	"github.com/matsen/citefix/internal/journal"
	"go.uber.org/zap"
)

// workspace is the configuration context of one invocation. root is empty
// when citefix runs outside a project; defaults apply then and no journal is
// kept.
type workspace struct {
	root   string
	cfg    *config.Config
	global *config.GlobalConfig
}

// loadWorkspace finds the project if there is one, exits on config errors.
func loadWorkspace() *workspace {
	global := mustLoadGlobalConfig()

	start, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	root, err := config.FindProject(start)
	if err != nil {
		if rootFlag != "" || os.Getenv(config.EnvRoot) != "" {
			exitWithError(ExitConfigError, "%v", err)
		}
		logger.Debug("no project found, using defaults", zap.String("start", start))
		return &workspace{cfg: &config.Config{}, global: global}
	}

	logger.Debug("project found", zap.String("root", root))
	return &workspace{root: root, cfg: mustLoadConfig(root), global: global}
}

// documentPath returns the document named on the command line or the
// project's default document.
func (w *workspace) documentPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			exitWithError(ExitError, "resolving %s: %v", args[0], err)
		}
		return abs
	}
	if w.cfg.Document != "" {
		return config.ResolvePath(w.root, w.cfg.Document)
	}
	exitWithError(ExitError, "no document given and no default document configured\n\nPass a .tex path or run 'citefix init <document.tex>'.")
	return ""
}

func (w *workspace) markers() citation.Markers {
	return w.cfg.Markers()
}

func (w *workspace) block() citation.Block {
	return w.cfg.Block()
}

// backupDir returns where backups go; empty means beside the document.
func (w *workspace) backupDir() string {
	if w.cfg.BackupDir != "" {
		return config.ResolvePath(w.root, w.cfg.BackupDir)
	}
	return w.global.BackupDir
}

// tempPrefix picks the temporary-key prefix: flag, mapping file, project,
// global. Empty falls back to the built-in default.
func (w *workspace) tempPrefix(flag, mapping string) string {
	switch {
	case flag != "":
		return flag
	case mapping != "":
		return mapping
	case w.cfg.TempPrefix != "":
		return w.cfg.TempPrefix
	default:
		return w.global.TempPrefix
	}
}

// openJournal opens the run journal, or returns nil when there is no project
// or journaling is disabled. Failing to open it is logged, not fatal.
func (w *workspace) openJournal() *journal.DB {
	if w.root == "" || !config.JournalEnabled() {
		return nil
	}
	db, err := journal.Open(config.JournalPath(w.root))
	if err != nil {
		logger.Warn("run journal unavailable", zap.Error(err))
		return nil
	}
	return db
}

// mustOpenJournal opens the run journal for reading, exits on error.
func mustOpenJournal(root string) *journal.DB {
	db, err := journal.Open(config.JournalPath(root))
	if err != nil {
		exitWithError(ExitError, "opening journal: %v", err)
	}
	return db
}
