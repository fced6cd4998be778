package main

import (
	"fmt"
	"os"

	"github.com/matsen/citefix/internal/pdftext"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// FindContextLen is the context shown around each --find match.
const FindContextLen = 60

var (
	pdftextOutput string
	pdftextFind   []string
	pdftextPages  int
)

func init() {
	rootCmd.AddCommand(pdftextCmd)
	pdftextCmd.Flags().StringVarP(&pdftextOutput, "output", "o", "", "Write the extracted text to this file")
	pdftextCmd.Flags().StringArrayVar(&pdftextFind, "find", nil, "Report where this text occurs (repeatable)")
	pdftextCmd.Flags().IntVar(&pdftextPages, "pages", 0, "Only read the first n pages (0 for all)")
}

var pdftextCmd = &cobra.Command{
	Use:   "pdftext <file.pdf>",
	Short: "Extract text from a compiled PDF",
	Long: `Extract the text of a compiled manuscript PDF.

Use --find to confirm that a phrase (for example a corrected sentence or a
reference number) made it into the compiled output. Whitespace differences
are ignored when matching.

Examples:
  citefix pdftext paper.pdf -o paper.txt
  citefix pdftext paper.pdf --find "Python 3.14.1" --human`,
	Args: cobra.ExactArgs(1),
	RunE: runPdftext,
}

// PdftextResponse is the response for pdftext.
type PdftextResponse struct {
	PDF     string            `json:"pdf"`
	Pages   int               `json:"pages"`
	Output  string            `json:"output,omitempty"`
	Text    string            `json:"text,omitempty"`
	Matches []PdftextFindings `json:"matches,omitempty"`
}

// PdftextFindings are the matches of one --find needle.
type PdftextFindings struct {
	Needle  string          `json:"needle"`
	Found   bool            `json:"found"`
	Matches []pdftext.Match `json:"matches"`
}

func runPdftext(cmd *cobra.Command, args []string) error {
	path := args[0]
	pages, err := pdftext.ExtractFile(path, pdftextPages)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	logger.Debug("pdf text extracted", zap.String("pdf", path), zap.Int("pages", len(pages)))

	resp := PdftextResponse{PDF: path, Pages: len(pages)}
	text := pdftext.Join(pages)

	if pdftextOutput != "" {
		if err := os.WriteFile(pdftextOutput, []byte(text), 0644); err != nil {
			exitWithError(ExitError, "writing %s: %v", pdftextOutput, err)
		}
		resp.Output = pdftextOutput
	}

	missing := 0
	for _, needle := range pdftextFind {
		matches := pdftext.Find(pages, needle, FindContextLen)
		resp.Matches = append(resp.Matches, PdftextFindings{Needle: needle, Found: len(matches) > 0, Matches: matches})
		if len(matches) == 0 {
			missing++
		}
	}

	// Print the text itself only when it has nowhere else to go.
	if pdftextOutput == "" && len(pdftextFind) == 0 {
		resp.Text = text
	}

	if humanOutput {
		printPdftextHuman(resp)
	} else {
		outputJSON(resp)
	}

	if missing > 0 {
		_ = logger.Sync()
		os.Exit(ExitDataError)
	}
	return nil
}

func printPdftextHuman(resp PdftextResponse) {
	if resp.Text != "" {
		fmt.Print(resp.Text)
		return
	}
	if resp.Output != "" {
		fmt.Printf("Extracted %d pages to %s\n", resp.Pages, resp.Output)
	}
	for _, f := range resp.Matches {
		if !f.Found {
			fmt.Printf("NOT FOUND  %q\n", f.Needle)
			continue
		}
		fmt.Printf("found      %q (%d)\n", f.Needle, len(f.Matches))
		for _, m := range f.Matches {
			fmt.Printf("  p%d: %s\n", m.Page, m.Context)
		}
	}
}
