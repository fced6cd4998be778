package main

import (
	"github.com/matsen/citefix/internal/citation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	remapMappingPath string
	remapRules       []string
	remapDrops       []string
	remapDryRun      bool
	remapNoBackup    bool
	remapTempPrefix  string
	remapInvert      bool
)

func init() {
	rootCmd.AddCommand(remapCmd)
	remapCmd.Flags().StringVarP(&remapMappingPath, "mapping", "m", "", "YAML mapping file")
	remapCmd.Flags().StringArrayVar(&remapRules, "map", nil, "Rename rule old=new (repeatable)")
	remapCmd.Flags().StringArrayVar(&remapDrops, "drop", nil, "Key to drop (repeatable)")
	remapCmd.Flags().BoolVar(&remapDryRun, "dry-run", false, "Report changes without writing")
	remapCmd.Flags().BoolVar(&remapNoBackup, "no-backup", false, "Skip the numbered backup")
	remapCmd.Flags().StringVar(&remapTempPrefix, "temp-prefix", "", "Temporary key prefix (must not occur in the document)")
	remapCmd.Flags().BoolVar(&remapInvert, "invert", false, "Apply the inverse of the mapping (undo a previous remap)")
}

var remapCmd = &cobra.Command{
	Use:   "remap [document.tex]",
	Short: "Rename, merge or drop citation keys",
	Long: `Rename, merge or drop citation keys inside \cite and \bibitem only.

Rules come from a YAML mapping file and/or --map/--drop flags, file rules
first. All rules are applied simultaneously: chains such as r42->r47 and
r47->r48 never cascade.

Mapping file:
  temp_prefix: ZZZtmp   # optional
  rules:
    - {old: r42, new: r47}
    - {old: r46, drop: true}

Examples:
  citefix remap --map r42=r47 --map r47=r48 --dry-run
  citefix remap paper.tex --mapping fixes.yml
  citefix remap --mapping fixes.yml --invert`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemap,
}

func runRemap(cmd *cobra.Command, args []string) error {
	ws := loadWorkspace()
	docPath := ws.documentPath(args)
	m := buildMapping(remapMappingPath, remapRules, remapDrops)

	if remapInvert {
		inv, err := m.Invert()
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		m = inv
	}
	if len(m.Rules) == 0 {
		exitWithError(ExitError, "no rules given\n\nUse --mapping, --map old=new or --drop key.")
	}
	if m.Identity() {
		logger.Info("mapping maps every key to itself, document will not change", zap.Int("rules", len(m.Rules)))
	}

	runTransform(ws, docPath, transform{
		command:  "remap",
		dryRun:   remapDryRun,
		noBackup: remapNoBackup,
		apply: func(text string, resp *TransformResponse) (string, error) {
			res, err := citation.RemapText(text, ws.markers(), m, citation.RemapOptions{
				TempPrefix: ws.tempPrefix(remapTempPrefix, m.TempPrefix),
			})
			if err != nil {
				return text, err
			}
			resp.Changes = res.Changes
			resp.TempPrefix = res.TempPrefix
			for _, c := range res.Changes {
				if c.Action == citation.ActionMerged && c.Kind == citation.KindEntry {
					logger.Warn("bibliography entries merged onto one key, keep one with 'citefix bib replace'",
						zap.String("old", c.Old), zap.String("key", c.New), zap.Int("line", c.Line))
				}
			}
			return res.Text, nil
		},
	})
	return nil
}

// buildMapping combines a mapping file with rules from flags, exits on error.
func buildMapping(path string, rules, drops []string) citation.Mapping {
	var m citation.Mapping
	if path != "" {
		loaded, err := citation.LoadMapping(path)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		m = loaded
	}

	for _, s := range rules {
		r, err := citation.ParseRule(s)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		m.Rules = append(m.Rules, r)
	}
	for _, key := range drops {
		m.Rules = append(m.Rules, citation.DropRule(key))
	}

	if err := m.Validate(); err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	return m
}
