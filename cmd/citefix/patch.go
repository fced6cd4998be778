package main

import (
	"github.com/matsen/citefix/internal/patch"
	"github.com/spf13/cobra"
)

var (
	patchPlanPath string
	patchDryRun   bool
	patchNoBackup bool
)

func init() {
	rootCmd.AddCommand(patchCmd)
	patchCmd.Flags().StringVarP(&patchPlanPath, "plan", "p", "", "YAML edit plan (required)")
	patchCmd.Flags().BoolVar(&patchDryRun, "dry-run", false, "Report outcomes without writing")
	patchCmd.Flags().BoolVar(&patchNoBackup, "no-backup", false, "Skip the numbered backup")
	patchCmd.MarkFlagRequired("plan")
}

var patchCmd = &cobra.Command{
	Use:   "patch [document.tex] --plan edits.yml",
	Short: "Apply anchor-based text edits",
	Long: `Apply a declarative plan of anchor-based edits, in order.

Each edit finds its anchor (or the first of its alternatives that occurs)
and replaces it, inserts text before or after it, or deletes it. A missing
anchor skips that edit with a warning. An anchor found more than once aborts
the whole plan unless the edit sets all: true. Edits already in place are
reported as already_applied, so a plan can be re-run safely.

Edit plan:
  edits:
    - name: python-version
      op: replace            # replace | insert_after | insert_before | delete
      anchor: "Python 3.14.1[42]"
      alternatives: ["Python 3.14.1 [42]"]
      text: 'Python~3.14.1~\cite{r47}'
    - name: add-entry
      op: insert_before
      anchor: '\end{thebibliography}'
      text: "\\bibitem{r53} Kaur, P. ...\n"
      skip_if_present: '\bibitem{r53}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPatch,
}

func runPatch(cmd *cobra.Command, args []string) error {
	ws := loadWorkspace()
	docPath := ws.documentPath(args)

	plan, err := patch.LoadPlan(patchPlanPath)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	runTransform(ws, docPath, transform{
		command:  "patch",
		dryRun:   patchDryRun,
		noBackup: patchNoBackup,
		apply: func(text string, resp *TransformResponse) (string, error) {
			out, outcomes, err := patch.Apply(text, plan.Edits)
			resp.Edits = outcomes
			return out, err
		},
	})
	return nil
}
