package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/matsen/citefix/internal/citation"
	"github.com/matsen/citefix/internal/document"
	"github.com/matsen/citefix/internal/git"
	"github.com/matsen/citefix/internal/journal"
	"github.com/matsen/citefix/internal/patch"
	"go.uber.org/zap"
)

// TransformResponse is the response for commands that rewrite the document.
type TransformResponse struct {
	Command    string            `json:"command"`
	Document   string            `json:"document"`
	DryRun     bool              `json:"dry_run"`
	Written    bool              `json:"written"`
	Backup     string            `json:"backup,omitempty"`
	RunID      string            `json:"run_id,omitempty"`
	TempPrefix string            `json:"temp_prefix,omitempty"`
	GitCommit  string            `json:"git_commit,omitempty"`
	Summary    map[string]int    `json:"summary"`           // Counts by action or edit status
	Changes    []citation.Change `json:"changes,omitempty"` // Key remap log
	Edits      []patch.Outcome   `json:"edits,omitempty"`   // Anchor edit outcomes
	Order      []string          `json:"order,omitempty"`   // Key order applied by renumber
	Mapping    string            `json:"mapping,omitempty"` // Mapping file written by renumber
	Report     citation.Report   `json:"report"`            // Consistency of the resulting text
}

// transform is one document rewrite. apply receives the loaded text and
// returns the new text, filling in the response as it goes. committed, if
// set, runs only after a successful non-dry-run commit.
type transform struct {
	command   string
	dryRun    bool
	noBackup  bool
	apply     func(text string, resp *TransformResponse) (string, error)
	committed func(resp *TransformResponse) error
}

// runTransform loads the document, applies t, commits unless dry-run,
// records the run, and prints the response. Exits on error.
func runTransform(ws *workspace, docPath string, t transform) {
	doc, err := document.Load(docPath)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	resp := &TransformResponse{
		Command:  t.command,
		Document: docPath,
		DryRun:   t.dryRun,
		Summary:  map[string]int{},
	}
	run := journal.Run{
		Command:    t.command,
		Document:   docPath,
		DryRun:     t.dryRun,
		HashBefore: doc.Hash(),
	}

	logger.Debug("applying transform", zap.String("command", t.command), zap.String("document", docPath))
	text, err := t.apply(doc.Text, resp)
	if err != nil {
		run.Error = err.Error()
		recordRun(ws, run, resp)
		exitWithError(exitCodeFor(err), "%s aborted, document not modified: %v", t.command, err)
	}
	summarize(resp)
	resp.Report = citation.Check(citation.Scan(text, ws.markers()))

	if state, err := git.State(docPath); err == nil {
		run.GitCommit = state.Commit
		resp.GitCommit = state.Commit
		if state.Dirty && !t.dryRun && text != doc.Text {
			logger.Warn("document has uncommitted changes, relying on the backup", zap.String("document", docPath))
		}
	} else {
		logger.Debug("no git state for document", zap.String("document", docPath), zap.Error(err))
	}

	if !t.dryRun {
		res, err := doc.Commit(text, document.CommitOptions{
			NoBackup:  t.noBackup,
			BackupDir: ws.backupDir(),
			Logger:    logger,
		})
		if err != nil {
			run.Error = err.Error()
			recordRun(ws, run, resp)
			exitWithError(exitCodeFor(err), "%v", err)
		}
		resp.Written = res.Written
		resp.Backup = res.Backup
		run.Written = res.Written
		run.Backup = res.Backup
		run.HashAfter = res.Hash

		if t.committed != nil {
			if err := t.committed(resp); err != nil {
				run.Error = err.Error()
				recordRun(ws, run, resp)
				exitWithError(ExitError, "%s written but follow-up failed: %v", t.command, err)
			}
		}
	} else if text != doc.Text {
		run.HashAfter = document.Hash([]byte(text))
	}

	resp.RunID = recordRun(ws, run, resp)

	if humanOutput {
		printTransformHuman(resp)
	} else {
		outputJSON(resp)
	}
}

// summarize counts changes by action and edits by status.
func summarize(resp *TransformResponse) {
	for _, c := range resp.Changes {
		resp.Summary[string(c.Action)]++
	}
	for _, e := range resp.Edits {
		resp.Summary[string(e.Status)]++
	}
}

// recordRun stores the run in the journal and returns its ID, or "" when
// there is no journal. resp may be nil for runs without a change log.
func recordRun(ws *workspace, run journal.Run, resp *TransformResponse) string {
	db := ws.openJournal()
	if db == nil {
		return ""
	}
	defer db.Close()

	var changes []journal.Change
	if resp != nil {
		run.Summary = resp.Summary
		changes = journalChanges(resp)
	}
	stored, err := db.Record(run, changes)
	if err != nil {
		logger.Warn("recording run failed", zap.Error(err))
		return ""
	}
	logger.Debug("run recorded", zap.String("run_id", stored.ID))
	return stored.ID
}

// journalChanges flattens the key changes and edit outcomes of a response.
func journalChanges(resp *TransformResponse) []journal.Change {
	changes := make([]journal.Change, 0, len(resp.Changes)+len(resp.Edits))
	for _, c := range resp.Changes {
		changes = append(changes, journal.Change{
			Action: string(c.Action),
			Kind:   string(c.Kind),
			Old:    c.Old,
			New:    c.New,
			Line:   c.Line,
		})
	}
	for _, e := range resp.Edits {
		changes = append(changes, journal.Change{
			Action: string(e.Status),
			Kind:   "edit:" + string(e.Op),
			Old:    e.Anchor,
			Line:   e.Line,
			Detail: e.Name,
		})
	}
	return changes
}

// exitCodeFor maps integrity and input errors to ExitDataError.
func exitCodeFor(err error) int {
	var mappingErr citation.MappingError
	switch {
	case errors.Is(err, citation.ErrAmbiguousAnchor),
		errors.Is(err, citation.ErrAnchorNotFound),
		errors.Is(err, citation.ErrMappingCollisionRisk),
		errors.Is(err, document.ErrModifiedOnDisk),
		errors.Is(err, document.ErrBackupFailed),
		errors.As(err, &mappingErr):
		return ExitDataError
	default:
		return ExitError
	}
}

func printTransformHuman(resp *TransformResponse) {
	mode := ""
	if resp.DryRun {
		mode = " (dry run)"
	}
	fmt.Printf("%s %s%s\n", resp.Command, filepath.Base(resp.Document), mode)

	for _, c := range resp.Changes {
		fmt.Printf("  %s\n", formatChange(c))
	}
	for _, e := range resp.Edits {
		fmt.Printf("  %s\n", formatOutcome(e))
	}
	if len(resp.Changes) == 0 && len(resp.Edits) == 0 {
		fmt.Println("  nothing to do")
	}

	switch {
	case resp.Written && resp.Backup != "":
		fmt.Printf("\nWrote %s (backup: %s)\n", resp.Document, resp.Backup)
	case resp.Written:
		fmt.Printf("\nWrote %s (no backup)\n", resp.Document)
	case resp.DryRun:
		fmt.Println("\nDry run: document not modified")
	default:
		fmt.Println("\nDocument unchanged")
	}
	if resp.Mapping != "" {
		fmt.Printf("Mapping: %s\n", resp.Mapping)
	}
	if resp.RunID != "" {
		fmt.Printf("Run: %s\n", resp.RunID)
	}
	printReportSummary(resp.Report)
}

func formatChange(c citation.Change) string {
	loc := ""
	if c.Line > 0 {
		loc = fmt.Sprintf(" (line %d)", c.Line)
	}
	switch c.Action {
	case citation.ActionRenamed, citation.ActionMerged:
		return fmt.Sprintf("%-13s %s -> %s%s", c.Action, c.Old, c.New, loc)
	case citation.ActionNotFound:
		return fmt.Sprintf("%-13s %s (skipped: key not in document)", c.Action, c.Old)
	default:
		return fmt.Sprintf("%-13s %s%s", c.Action, c.Old, loc)
	}
}

func formatOutcome(o patch.Outcome) string {
	switch o.Status {
	case patch.StatusApplied:
		s := fmt.Sprintf("%-16s %s (%s, line %d)", o.Status, o.Name, o.Op, o.Line)
		if o.Count > 1 {
			s += fmt.Sprintf(" x%d", o.Count)
		}
		return s
	case patch.StatusAnchorNotFound:
		return fmt.Sprintf("%-16s %s (skipped: %s)", o.Status, o.Name, truncateString(oneLine(o.Message), AnchorMaxLen))
	default:
		return fmt.Sprintf("%-16s %s", o.Status, o.Name)
	}
}

func printReportSummary(r citation.Report) {
	fmt.Printf("Consistency: %d cited, %d defined, %d missing, %d unused, %d duplicate, %d malformed\n",
		r.Cited, r.Defined, len(r.Missing), len(r.Unused), len(r.Duplicates), len(r.Malformed))
}
