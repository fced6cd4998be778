package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/matsen/citefix/internal/config"
	"github.com/matsen/citefix/internal/journal"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"temp-prefix", "temp-prefix"},
		{"temp_prefix", "temp-prefix"},
		{"TEMP_PREFIX", "temp-prefix"},
		{"Document", "document"},
	}
	for _, tt := range tests {
		if got := normalizeKey(tt.in); got != tt.want {
			t.Errorf("normalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"cite,citep", []string{"cite", "citep"}},
		{` \cite , \citet ,`, []string{"cite", "citet"}},
		{"", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitList(tt.in)); diff != "" {
			t.Errorf("splitList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestSetGetConfigValue(t *testing.T) {
	cfg := &config.Config{}
	for _, key := range configKeys {
		if !validConfigKey(key) {
			t.Errorf("validConfigKey(%q) = false", key)
		}
	}
	if validConfigKey("pdf-root") {
		t.Error("validConfigKey(pdf-root) = true")
	}

	setConfigValue(cfg, "cite-commands", "cite,parencite")
	setConfigValue(cfg, "document", "paper.tex")
	setConfigValue(cfg, "bib-begin", `\begin{references}`)
	setConfigValue(cfg, "bib-end", `\end{references}`)

	if got := getConfigValue(cfg, "cite-commands"); got != "cite,parencite" {
		t.Errorf("cite-commands = %q", got)
	}
	if got := getConfigValue(cfg, "document"); got != "paper.tex" {
		t.Errorf("document = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got := cfg.Block().End; got != `\end{references}` {
		t.Errorf("Block().End = %q", got)
	}
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name string
		run  journal.Run
		want string
	}{
		{"written", journal.Run{Written: true}, "written"},
		{"dry run", journal.Run{DryRun: true}, "dry-run"},
		{"unchanged", journal.Run{}, "unchanged"},
		{"failed", journal.Run{Written: true, Error: "ambiguous anchor:\n  x"}, "failed: ambiguous anchor: x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runStatus(tt.run); got != tt.want {
				t.Errorf("runStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatSummary(t *testing.T) {
	got := formatSummary(map[string]int{"renamed": 3, "dropped": 1, "not_found": 2})
	want := "dropped=1, not_found=2, renamed=3"
	if got != want {
		t.Errorf("formatSummary() = %q, want %q", got, want)
	}
}

func TestFormatJournalChange(t *testing.T) {
	tests := []struct {
		name   string
		change journal.Change
		want   string
	}{
		{
			name:   "rename",
			change: journal.Change{Action: "renamed", Kind: "cite", Old: "r42", New: "r47", Line: 3},
			want:   "renamed          [cite] r42 -> r47 line 3",
		},
		{
			name:   "edit",
			change: journal.Change{Action: "applied", Kind: "edit:replace", Old: "3.14.1[42]", Detail: "fix"},
			want:   "applied          [edit:replace] 3.14.1[42] (fix)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatJournalChange(tt.change); got != tt.want {
				t.Errorf("formatJournalChange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID() = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(short) = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("truncateString(short) = %q", got)
	}
	if got := truncateString("abcdefghijkl", 8); got != "abcde..." {
		t.Errorf("truncateString(long) = %q", got)
	}

	prefix := strings.Repeat("a", 56)
	got := truncateString(prefix+"ó de la regulación", AnchorMaxLen)
	if !utf8.ValidString(got) {
		t.Fatalf("truncateString split a rune: %q", got)
	}
	if want := prefix + "..."; got != want {
		t.Errorf("truncateString(multibyte) = %q, want %q", got, want)
	}
}

func TestStartsWithDotDot(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"paper.tex", false},
		{"sub/paper.tex", false},
		{"../paper.tex", true},
		{"..", true},
		{"..foo/paper.tex", false},
	}
	for _, tt := range tests {
		if got := startsWithDotDot(tt.in); got != tt.want {
			t.Errorf("startsWithDotDot(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
