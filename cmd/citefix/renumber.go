package main

import (
	"fmt"
	"os"

	"github.com/matsen/citefix/internal/citation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	renumberPrefix      string
	renumberStart       int
	renumberReorder     bool
	renumberDryRun      bool
	renumberNoBackup    bool
	renumberTempPrefix  string
	renumberEmitMapping string
)

func init() {
	rootCmd.AddCommand(renumberCmd)
	renumberCmd.Flags().StringVar(&renumberPrefix, "prefix", "r", "Key prefix of the new numbering")
	renumberCmd.Flags().IntVar(&renumberStart, "start", 1, "First number")
	renumberCmd.Flags().BoolVar(&renumberReorder, "reorder", false, "Also reorder \\bibitem entries to the new numbering")
	renumberCmd.Flags().BoolVar(&renumberDryRun, "dry-run", false, "Report changes without writing")
	renumberCmd.Flags().BoolVar(&renumberNoBackup, "no-backup", false, "Skip the numbered backup")
	renumberCmd.Flags().StringVar(&renumberTempPrefix, "temp-prefix", "", "Temporary key prefix (must not occur in the document)")
	renumberCmd.Flags().StringVar(&renumberEmitMapping, "emit-mapping", "", "Write the planned mapping to this YAML file")
}

var renumberCmd = &cobra.Command{
	Use:   "renumber [document.tex]",
	Short: "Renumber citation keys by order of first citation",
	Long: `Renumber citation keys to <prefix>1, <prefix>2, ... in order of first
citation. Keys defined but never cited are numbered after the cited ones.

The plan is applied as one simultaneous remap, so existing numeric keys
never collide with their new names. --emit-mapping saves the applied plan,
which 'citefix remap --mapping <file> --invert' can undo. It is written only
after the document is, so a dry run or an aborted run writes no mapping.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRenumber,
}

func runRenumber(cmd *cobra.Command, args []string) error {
	ws := loadWorkspace()
	docPath := ws.documentPath(args)

	if renumberStart < 0 {
		exitWithError(ExitError, "--start must not be negative")
	}

	var plan citation.Mapping
	runTransform(ws, docPath, transform{
		command:  "renumber",
		dryRun:   renumberDryRun,
		noBackup: renumberNoBackup,
		apply: func(text string, resp *TransformResponse) (string, error) {
			markers := ws.markers()
			m, order := citation.PlanRenumber(citation.Scan(text, markers), renumberPrefix, renumberStart)
			m.TempPrefix = ws.tempPrefix(renumberTempPrefix, "")
			resp.Order = order
			plan = m

			out := text
			if len(m.Rules) > 0 {
				res, err := citation.RemapText(text, markers, m, citation.RemapOptions{})
				if err != nil {
					return text, err
				}
				resp.Changes = res.Changes
				resp.TempPrefix = res.TempPrefix
				out = res.Text
			}

			if renumberReorder {
				reordered, err := citation.ReorderBibliography(out, ws.block(), markers, order)
				if err != nil {
					return text, fmt.Errorf("reordering bibliography: %w", err)
				}
				out = reordered
			}
			if renumberDryRun && renumberEmitMapping != "" {
				logger.Info("dry run, mapping not written", zap.String("path", renumberEmitMapping))
			}
			return out, nil
		},
		committed: func(resp *TransformResponse) error {
			written, err := emitMapping(renumberEmitMapping, plan, renumberDryRun)
			if written {
				resp.Mapping = renumberEmitMapping
			}
			return err
		},
	})
	return nil
}

// emitMapping writes the applied plan to path. Nothing is written for an
// empty path or a dry run, since the plan was never applied.
func emitMapping(path string, m citation.Mapping, dryRun bool) (bool, error) {
	if path == "" || dryRun {
		return false, nil
	}
	if err := writeMapping(path, m); err != nil {
		return false, err
	}
	return true, nil
}

// writeMapping saves m as a YAML mapping file.
func writeMapping(path string, m citation.Mapping) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing mapping: %w", err)
	}
	logger.Info("mapping written", zap.String("path", path), zap.Int("rules", len(m.Rules)))
	return nil
}
