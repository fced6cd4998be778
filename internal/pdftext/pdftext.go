// Package pdftext extracts plain text from rendered PDFs so that anchors for
// edit plans can be checked against what a reader actually sees.
package pdftext

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// Page is the text of one PDF page.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Match is one occurrence of a needle in extracted text.
type Match struct {
	Page    int    `json:"page"`
	Context string `json:"context"`
}

// ExtractFile extracts the text of the first maxPages pages of a PDF file.
// A maxPages of zero or less means every page.
func ExtractFile(path string, maxPages int) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()
	return extract(r, maxPages), nil
}

// Extract extracts text from a PDF held in r.
func Extract(r io.ReaderAt, size int64, maxPages int) ([]Page, error) {
	pdfReader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}
	return extract(pdfReader, maxPages), nil
}

func extract(r *pdf.Reader, maxPages int) []Page {
	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	pages := make([]Page, 0, maxPages)
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // Unreadable pages are skipped, not fatal
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages
}

// Join concatenates page texts, one page per block.
func Join(pages []Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Find reports where needle occurs. Runs of whitespace are treated as equal
// to a single space on both sides, since PDF extraction rarely preserves the
// source's line breaks.
func Find(pages []Page, needle string, contextLen int) []Match {
	n := normalize(needle)
	if n == "" {
		return []Match{}
	}

	matches := []Match{}
	for _, p := range pages {
		text := normalize(p.Text)
		for pos := 0; ; {
			i := strings.Index(text[pos:], n)
			if i < 0 {
				break
			}
			start := pos + i
			matches = append(matches, Match{
				Page:    p.Number,
				Context: excerpt(text, start, start+len(n), contextLen),
			})
			pos = start + len(n)
		}
	}
	return matches
}

// normalize collapses whitespace runs to a single space and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// excerpt returns text[start:end] with up to n bytes of context on each
// side, widened to rune boundaries.
func excerpt(text string, start, end, n int) string {
	from := start - n
	if from < 0 {
		from = 0
	}
	to := end + n
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !isRuneStart(text[from]) {
		from--
	}
	for to < len(text) && !isRuneStart(text[to]) {
		to++
	}

	out := text[from:to]
	if from > 0 {
		out = "..." + out
	}
	if to < len(text) {
		out += "..."
	}
	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
