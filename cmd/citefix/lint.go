package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/matsen/citefix/internal/citation"
	"github.com/matsen/citefix/internal/document"
	"github.com/matsen/citefix/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	lintLabels  bool
	lintFigures bool
	lintStrict  bool
	lintWatch   bool
)

func init() {
	rootCmd.AddCommand(lintCmd)
	lintCmd.Flags().BoolVar(&lintLabels, "labels", false, "Also check \\ref against \\label")
	lintCmd.Flags().BoolVar(&lintFigures, "figures", false, "Also check that \\includegraphics files exist")
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "Exit with code 3 when any issue is found")
	lintCmd.Flags().BoolVarP(&lintWatch, "watch", "w", false, "Re-run whenever the document changes")
}

var lintCmd = &cobra.Command{
	Use:   "lint [document.tex]",
	Short: "Report citation consistency",
	Long: `Report citation consistency without modifying the document.

  missing     cited with \cite but never defined by \bibitem
  unused      defined by \bibitem but never cited
  duplicates  defined by more than one \bibitem
  malformed   citation sites with empty, stray or invalid keys`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLint,
}

// LintResult is the response for the lint command.
type LintResult struct {
	Document  string           `json:"document"`
	OK        bool             `json:"ok"`
	Citations citation.Report  `json:"citations"`
	Labels    *citation.Report `json:"labels,omitempty"`
	Figures   *FigureReport    `json:"figures,omitempty"`
}

// FigureReport lists \includegraphics paths that do not resolve to a file.
type FigureReport struct {
	Referenced int           `json:"referenced"`
	Missing    []FigureIssue `json:"missing"`
}

// FigureIssue is one unresolved figure path.
type FigureIssue struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// lintOptions selects the optional checks.
type lintOptions struct {
	labels  bool
	figures bool
}

// graphicsExtensions are tried, in order, for paths given without one.
var graphicsExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".eps"}

func runLint(cmd *cobra.Command, args []string) error {
	ws := loadWorkspace()
	docPath := ws.documentPath(args)
	opts := lintOptions{labels: lintLabels, figures: lintFigures}

	result, err := lintDocument(ws, docPath, opts)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	printLint(result)

	if lintWatch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := watch.New(docPath, watch.DefaultDebounce, logger)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		return w.Run(ctx, func(context.Context) error {
			result, err := lintDocument(ws, docPath, opts)
			if err != nil {
				return err
			}
			if humanOutput {
				fmt.Printf("\n--- %s ---\n", time.Now().Format("15:04:05"))
			}
			printLint(result)
			return nil
		})
	}

	if lintStrict && !result.OK {
		logger.Debug("lint issues found in strict mode", zap.String("document", docPath))
		for _, s := range result.Citations.Malformed {
			logger.Warn("malformed citation", zap.Error(s.Err()))
		}
		os.Exit(ExitDataError)
	}
	return nil
}

// lintDocument runs the requested checks on the document at docPath.
func lintDocument(ws *workspace, docPath string, opts lintOptions) (LintResult, error) {
	doc, err := document.Load(docPath)
	if err != nil {
		return LintResult{}, err
	}

	result := LintResult{
		Document:  docPath,
		Citations: citation.Check(citation.Scan(doc.Text, ws.markers())),
	}
	result.OK = result.Citations.OK()

	if opts.labels {
		labels := citation.Check(citation.Scan(doc.Text, citation.LabelMarkers()))
		result.Labels = &labels
		// Unreferenced labels are normal; only dangling refs count.
		if len(labels.Missing) > 0 || len(labels.Duplicates) > 0 || len(labels.Malformed) > 0 {
			result.OK = false
		}
	}

	if opts.figures {
		figures := checkFigures(doc.Text, filepath.Dir(docPath))
		result.Figures = &figures
		if len(figures.Missing) > 0 {
			result.OK = false
		}
	}

	return result, nil
}

// checkFigures resolves every \includegraphics path against dir.
func checkFigures(text, dir string) FigureReport {
	report := FigureReport{Missing: []FigureIssue{}}
	for _, site := range citation.Scan(text, citation.FigureMarkers()).Sites {
		for _, path := range site.Keys {
			report.Referenced++
			if !figureExists(dir, path) {
				report.Missing = append(report.Missing, FigureIssue{Path: path, Line: site.Line})
			}
		}
	}
	return report
}

func figureExists(dir, path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if fileExists(path) {
		return true
	}
	if filepath.Ext(path) != "" {
		return false
	}
	for _, ext := range graphicsExtensions {
		if fileExists(path + ext) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func printLint(r LintResult) {
	if !humanOutput {
		outputJSON(r)
		return
	}

	fmt.Printf("%s\n", r.Document)
	printReportSummary(r.Citations)
	printReportDetails(r.Citations, "cited but not defined", "defined but never cited")

	if r.Labels != nil {
		fmt.Printf("Labels: %d referenced, %d defined\n", r.Labels.Cited, r.Labels.Defined)
		printReportDetails(*r.Labels, "referenced but no \\label", "labels never referenced")
	}
	if r.Figures != nil {
		fmt.Printf("Figures: %d referenced, %d missing\n", r.Figures.Referenced, len(r.Figures.Missing))
		for _, f := range r.Figures.Missing {
			fmt.Printf("  line %d: %s\n", f.Line, f.Path)
		}
	}

	if r.OK {
		fmt.Println("OK")
	}
}

func printReportDetails(r citation.Report, missingLabel, unusedLabel string) {
	if len(r.Missing) > 0 {
		fmt.Printf("  %s: %s\n", missingLabel, formatIDList(r.Missing))
	}
	if len(r.Unused) > 0 {
		fmt.Printf("  %s: %s\n", unusedLabel, formatIDList(r.Unused))
	}
	if len(r.Duplicates) > 0 {
		fmt.Printf("  defined more than once: %s\n", formatIDList(r.Duplicates))
	}
	for _, s := range r.Malformed {
		fmt.Printf("  %v\n", s.Err())
	}
}
