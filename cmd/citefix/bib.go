package main

import (
	"os"

	"github.com/matsen/citefix/internal/citation"
	"github.com/spf13/cobra"
)

var (
	bibFrom     string
	bibDryRun   bool
	bibNoBackup bool
)

func init() {
	rootCmd.AddCommand(bibCmd)
	bibCmd.AddCommand(bibReplaceCmd)
	bibReplaceCmd.Flags().StringVar(&bibFrom, "from", "", "File holding the new \\bibitem entries (required)")
	bibReplaceCmd.Flags().BoolVar(&bibDryRun, "dry-run", false, "Report the result without writing")
	bibReplaceCmd.Flags().BoolVar(&bibNoBackup, "no-backup", false, "Skip the numbered backup")
	bibReplaceCmd.MarkFlagRequired("from")
}

var bibCmd = &cobra.Command{
	Use:   "bib",
	Short: "Bibliography block commands",
}

var bibReplaceCmd = &cobra.Command{
	Use:   "replace [document.tex] --from entries.tex",
	Short: "Replace the thebibliography block",
	Long: `Replace everything between \begin{thebibliography}{...} and
\end{thebibliography} with the contents of --from. Entries are not merged;
the new block is taken as already ordered. A --from file that contains the
environment markers itself is unwrapped first.

The document must contain exactly one bibliography block.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBibReplace,
}

func runBibReplace(cmd *cobra.Command, args []string) error {
	ws := loadWorkspace()
	docPath := ws.documentPath(args)

	entries, err := os.ReadFile(bibFrom)
	if err != nil {
		exitWithError(ExitError, "reading %s: %v", bibFrom, err)
	}

	runTransform(ws, docPath, transform{
		command:  "bib replace",
		dryRun:   bibDryRun,
		noBackup: bibNoBackup,
		apply: func(text string, resp *TransformResponse) (string, error) {
			return citation.ReplaceBibliography(text, ws.block(), string(entries))
		},
	})
	return nil
}
