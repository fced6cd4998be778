package main

import (
	"fmt"
	"strings"

	"github.com/matsen/citefix/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set project configuration values",
	Long: `Get or set project configuration values.

Usage:
  citefix config                            # Show effective config
  citefix config document                   # Get specific value
  citefix config document paper.tex         # Set value
  citefix config cite-commands cite,citep   # Set a command list
  citefix config temp-prefix ""             # Clear a value

Keys:
  document        Default manuscript, relative to the project root
  cite-commands   Citing commands (default: cite family)
  entry-commands  Defining commands (default: bibitem)
  bib-begin       Bibliography begin marker (set with bib-end)
  bib-end         Bibliography end marker
  temp-prefix     Temporary key prefix used by remap
  backup-dir      Backup directory, relative to the project root`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

// ConfigResponse is the effective configuration.
type ConfigResponse struct {
	Root          string   `json:"root"`
	Document      string   `json:"document,omitempty"`
	CiteCommands  []string `json:"cite_commands"`
	EntryCommands []string `json:"entry_commands"`
	BibBegin      string   `json:"bib_begin"`
	BibEnd        string   `json:"bib_end"`
	TempPrefix    string   `json:"temp_prefix,omitempty"`
	BackupDir     string   `json:"backup_dir,omitempty"`
	Journal       string   `json:"journal,omitempty"`
	LogLevel      string   `json:"log_level"`
	GlobalConfig  string   `json:"global_config"`
}

// UpdateResponse is the response for setting a config value.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

var configKeys = []string{
	"document", "cite-commands", "entry-commands", "bib-begin", "bib-end", "temp-prefix", "backup-dir",
}

func runConfig(cmd *cobra.Command, args []string) error {
	root := mustFindProject()
	cfg := mustLoadConfig(root)

	// No args: show effective config
	if len(args) == 0 {
		ws := &workspace{root: root, cfg: cfg, global: mustLoadGlobalConfig()}
		showConfig(ws)
		return nil
	}

	key := normalizeKey(args[0])
	if !validConfigKey(key) {
		exitWithError(ExitError, "unknown configuration key: %s (valid: %s)", args[0], strings.Join(configKeys, ", "))
	}

	// One arg: get specific value
	if len(args) == 1 {
		value := getConfigValue(cfg, key)
		if humanOutput {
			fmt.Println(value)
		} else {
			outputJSON(map[string]string{strings.ReplaceAll(key, "-", "_"): value})
		}
		return nil
	}

	// Two args: set value
	value := args[1]
	setConfigValue(cfg, key, value)
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		fmt.Printf("Updated %s to %q\n", key, value)
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}

func showConfig(ws *workspace) {
	m := ws.markers()
	b := ws.block()
	resp := ConfigResponse{
		Root:          ws.root,
		CiteCommands:  m.Cite,
		EntryCommands: m.Entry,
		BibBegin:      b.Begin,
		BibEnd:        b.End,
		TempPrefix:    ws.tempPrefix("", ""),
		BackupDir:     ws.backupDir(),
		LogLevel:      config.GetLogLevel(),
		GlobalConfig:  config.GlobalConfigPath(),
	}
	if ws.cfg.Document != "" {
		resp.Document = config.ResolvePath(ws.root, ws.cfg.Document)
	}
	if config.JournalEnabled() {
		resp.Journal = config.JournalPath(ws.root)
	}

	if !humanOutput {
		outputJSON(resp)
		return
	}

	fmt.Printf("root:           %s\n", resp.Root)
	fmt.Printf("document:       %s\n", orNone(resp.Document))
	fmt.Printf("cite-commands:  %s\n", formatIDList(resp.CiteCommands))
	fmt.Printf("entry-commands: %s\n", formatIDList(resp.EntryCommands))
	fmt.Printf("bib-begin:      %s\n", resp.BibBegin)
	fmt.Printf("bib-end:        %s\n", resp.BibEnd)
	fmt.Printf("temp-prefix:    %s\n", orNone(resp.TempPrefix))
	fmt.Printf("backup-dir:     %s\n", orNone(resp.BackupDir))
	fmt.Printf("journal:        %s\n", orNone(resp.Journal))
	fmt.Printf("log-level:      %s\n", resp.LogLevel)
	fmt.Printf("global config:  %s\n", resp.GlobalConfig)
}

func getConfigValue(cfg *config.Config, key string) string {
	switch key {
	case "document":
		return cfg.Document
	case "cite-commands":
		return strings.Join(cfg.CiteCommands, ",")
	case "entry-commands":
		return strings.Join(cfg.EntryCommands, ",")
	case "bib-begin":
		return cfg.BibBegin
	case "bib-end":
		return cfg.BibEnd
	case "temp-prefix":
		return cfg.TempPrefix
	case "backup-dir":
		return cfg.BackupDir
	}
	return ""
}

func setConfigValue(cfg *config.Config, key, value string) {
	switch key {
	case "document":
		cfg.Document = value
	case "cite-commands":
		cfg.CiteCommands = splitList(value)
	case "entry-commands":
		cfg.EntryCommands = splitList(value)
	case "bib-begin":
		cfg.BibBegin = value
	case "bib-end":
		cfg.BibEnd = value
	case "temp-prefix":
		cfg.TempPrefix = value
	case "backup-dir":
		cfg.BackupDir = value
	}
}

func validConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}
	return false
}

// normalizeKey converts key formats (temp-prefix, temp_prefix, TEMP-PREFIX) to consistent format
func normalizeKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", "-")
	return key
}

// splitList splits a comma-separated value, dropping empty items and
// leading backslashes.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimPrefix(strings.TrimSpace(item), `\`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
