package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/matsen/citefix/internal/journal"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRun   string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", DefaultHistoryLimit, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show one run and its change log (ID or unique prefix)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the run journal",
	Long: `Show recorded runs of mutating commands, newest first.

With --run, show one run with its full change log.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

// HistoryResponse is the response for history.
type HistoryResponse struct {
	Runs []journal.Run `json:"runs"`
}

// RunDetailResponse is the response for history --run.
type RunDetailResponse struct {
	Run     journal.Run      `json:"run"`
	Changes []journal.Change `json:"changes"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	root := mustFindProject()
	db := mustOpenJournal(root)
	defer db.Close()

	if historyRun != "" {
		return showRun(db, historyRun)
	}

	runs, err := db.List(historyLimit)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if !humanOutput {
		outputJSON(HistoryResponse{Runs: runs})
		return nil
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-14s %-12s %s\n",
			shortID(r.ID), r.StartedAt.Format("2006-01-02 15:04:05"), r.Command, filepath.Base(r.Document), runStatus(r))
	}
	return nil
}

func showRun(db *journal.DB, id string) error {
	run, err := db.Get(id)
	if err != nil {
		if errors.Is(err, journal.ErrRunNotFound) {
			exitWithError(ExitError, "%v\n\nRun 'citefix history' to list recorded runs.", err)
		}
		exitWithError(ExitError, "%v", err)
	}
	changes, err := db.Changes(run.ID)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if !humanOutput {
		outputJSON(RunDetailResponse{Run: run, Changes: changes})
		return nil
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Command:  %s\n", run.Command)
	fmt.Printf("Document: %s\n", run.Document)
	fmt.Printf("Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Status:   %s\n", runStatus(run))
	if run.Backup != "" {
		fmt.Printf("Backup:   %s\n", run.Backup)
	}
	if run.GitCommit != "" {
		fmt.Printf("Commit:   %s\n", run.GitCommit)
	}
	if len(run.Summary) > 0 {
		fmt.Printf("Summary:  %s\n", formatSummary(run.Summary))
	}
	if len(changes) > 0 {
		fmt.Println("\nChanges:")
		for _, c := range changes {
			fmt.Printf("  %3d  %s\n", c.Seq, formatJournalChange(c))
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// runStatus is a one-word summary of how a run ended.
func runStatus(r journal.Run) string {
	switch {
	case r.Error != "":
		return "failed: " + truncateString(oneLine(r.Error), AnchorMaxLen)
	case r.DryRun:
		return "dry-run"
	case r.Written:
		return "written"
	default:
		return "unchanged"
	}
}

// formatSummary renders summary counts in stable key order.
func formatSummary(summary map[string]int) string {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := ""
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%d", k, summary[k])
	}
	return s
}

func formatJournalChange(c journal.Change) string {
	s := fmt.Sprintf("%-16s", c.Action)
	if c.Kind != "" {
		s += " [" + c.Kind + "]"
	}
	switch {
	case c.Old != "" && c.New != "":
		s += fmt.Sprintf(" %s -> %s", c.Old, c.New)
	case c.Old != "":
		s += " " + truncateString(oneLine(c.Old), AnchorMaxLen)
	}
	if c.Detail != "" {
		s += " (" + c.Detail + ")"
	}
	if c.Line > 0 {
		s += fmt.Sprintf(" line %d", c.Line)
	}
	return s
}
