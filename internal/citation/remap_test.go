package citation

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleDoc = `\section{Intro}
Remote labs \cite{r1,r10} extend access~\cite{r11}. Older work \cite{r2, r1}.

\begin{thebibliography}{99}

\bibitem{r1}
First, A. One.

\bibitem{r2}
Second, B. Two.

\bibitem{r10}
Tenth, C. Ten.

\bibitem{r11}
Eleventh, D. Eleven.

\end{thebibliography}
`

func remap(t *testing.T, text string, rules ...Rule) *RemapResult {
	t.Helper()
	res, err := RemapText(text, DefaultMarkers(), Mapping{Rules: rules}, RemapOptions{})
	if err != nil {
		t.Fatalf("RemapText: %v", err)
	}
	return res
}

func citeKeys(t *testing.T, text string) [][]string {
	t.Helper()
	var out [][]string
	for _, s := range Scan(text, DefaultMarkers()).SitesOf(KindCite) {
		out = append(out, s.Keys)
	}
	return out
}

func TestRemap_PrefixCollisionScenario(t *testing.T) {
	text := `... \cite{r1,r10} ... \bibitem{r1} ... \bibitem{r10}`
	res := remap(t, text, Rule{Old: "r1", New: "r100"})

	want := `... \cite{r100,r10} ... \bibitem{r100} ... \bibitem{r10}`
	if res.Text != want {
		t.Errorf("got  %q\nwant %q", res.Text, want)
	}
}

func TestRemap_SubstringKeysUntouched(t *testing.T) {
	res := remap(t, sampleDoc, Rule{Old: "r1", New: "X"})

	if strings.Count(res.Text, "r10") != strings.Count(sampleDoc, "r10") {
		t.Error("occurrences of r10 changed")
	}
	if strings.Count(res.Text, "r11") != strings.Count(sampleDoc, "r11") {
		t.Error("occurrences of r11 changed")
	}
	want := [][]string{{"X", "r10"}, {"r11"}, {"r2", "X"}}
	if diff := cmp.Diff(want, citeKeys(t, res.Text)); diff != "" {
		t.Errorf("cite keys (-want +got):\n%s", diff)
	}
	if !strings.Contains(res.Text, `\bibitem{X}`) {
		t.Error("bibitem r1 was not renamed")
	}
}

func TestRemap_PassThroughIsIdentity(t *testing.T) {
	docs := []string{
		sampleDoc,
		`\cite{a , b,a} \cite{a,,b} \bibitem{a} x`,
		`\cite{  a  }`,
	}
	for _, doc := range docs {
		res := remap(t, doc, Rule{Old: "a", New: "a"}, Rule{Old: "r1", New: "r1"}, Rule{Old: "b", New: "b"})
		if res.Text != doc {
			t.Errorf("pass-through changed text:\n got %q\nwant %q", res.Text, doc)
		}
	}
}

func TestRemap_RoundTrip(t *testing.T) {
	m := Mapping{Rules: []Rule{
		{Old: "r1", New: "r2"},
		{Old: "r2", New: "r10"},
		{Old: "r10", New: "r1"},
		{Old: "r11", New: "smith2020"},
	}}
	first, err := RemapText(sampleDoc, DefaultMarkers(), m, RemapOptions{})
	if err != nil {
		t.Fatalf("RemapText: %v", err)
	}
	if first.Text == sampleDoc {
		t.Fatal("expected the forward mapping to change the text")
	}

	inv, err := m.Invert()
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	back, err := RemapText(first.Text, DefaultMarkers(), inv, RemapOptions{})
	if err != nil {
		t.Fatalf("RemapText inverse: %v", err)
	}
	if back.Text != sampleDoc {
		t.Errorf("round trip mismatch:\n%s", cmp.Diff(sampleDoc, back.Text))
	}
}

func TestRemap_ChainedRenamesAreNotReapplied(t *testing.T) {
	// r42 becomes r47 while r47 becomes r48: without the temporary namespace
	// the new r47 would be rewritten again.
	text := `\cite{r42} \cite{r47} \bibitem{r42} x \bibitem{r47} y`
	res := remap(t, text, Rule{Old: "r42", New: "r47"}, Rule{Old: "r47", New: "r48"})

	want := `\cite{r47} \cite{r48} \bibitem{r47} x \bibitem{r48} y`
	if res.Text != want {
		t.Errorf("got  %q\nwant %q", res.Text, want)
	}
}

func TestRemap_RenameAndDropInOneSite(t *testing.T) {
	res := remap(t, `see \cite{a, b, c}.`, Rule{Old: "a", New: "z"}, DropRule("c"))

	if res.Text != `see \cite{z, b}.` {
		t.Errorf("got %q", res.Text)
	}
	if res.Count(ActionDropped) != 1 || res.Count(ActionRenamed) != 1 || res.Count(ActionUnchanged) != 1 {
		t.Errorf("unexpected log: %+v", res.Changes)
	}
}

func TestRemap_DropFirstKeepsFormatting(t *testing.T) {
	res := remap(t, `\cite{ a, b }`, DropRule("a"))
	if res.Text != `\cite{ b }` {
		t.Errorf("got %q", res.Text)
	}
}

func TestRemap_MergeDeduplicates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"both renamed", `\cite{a,b}`, `\cite{x}`},
		{"first position kept", `\cite{c,b,a}`, `\cite{c,x}`},
		{"onto existing key", `\cite{x, a}`, `\cite{x}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := remap(t, tt.text, Rule{Old: "a", New: "x"}, Rule{Old: "b", New: "x"})
			if res.Text != tt.want {
				t.Errorf("got %q, want %q", res.Text, tt.want)
			}
			if res.Count(ActionMerged) != 1 {
				t.Errorf("expected one merge, got %+v", res.Changes)
			}
		})
	}
}

func TestRemap_MergedEntriesReported(t *testing.T) {
	text := "\\cite{a} \\cite{b}\n\\bibitem{a} A.\n\\bibitem{b} B.\n"
	res := remap(t, text, Rule{Old: "a", New: "x"}, Rule{Old: "b", New: "x"})

	want := "\\cite{x} \\cite{x}\n\\bibitem{x} A.\n\\bibitem{x} B.\n"
	if res.Text != want {
		t.Errorf("got  %q\nwant %q", res.Text, want)
	}

	var merged []Change
	for _, c := range res.Changes {
		if c.Action == ActionMerged {
			merged = append(merged, c)
		}
	}
	wantMerged := []Change{{Action: ActionMerged, Old: "b", New: "x", Kind: KindEntry, Line: 3}}
	if diff := cmp.Diff(wantMerged, merged); diff != "" {
		t.Errorf("merged changes (-want +got):\n%s", diff)
	}
	if got := Check(Scan(res.Text, DefaultMarkers())).Duplicates; len(got) != 1 || got[0] != "x" {
		t.Errorf("expected x reported as duplicate, got %v", got)
	}
}

func TestRemap_RenameOntoExistingEntryReported(t *testing.T) {
	res := remap(t, "\\bibitem{x} X.\n\\bibitem{a} A.\n", Rule{Old: "a", New: "x"})
	if res.Count(ActionMerged) != 1 {
		t.Errorf("expected one entry merge, got %+v", res.Changes)
	}
}

func TestRemap_ExistingDuplicateEntryNotMerged(t *testing.T) {
	res := remap(t, "\\bibitem{a} A.\n\\bibitem{a} A again.\n", Rule{Old: "a", New: "r1"})
	if res.Count(ActionMerged) != 0 {
		t.Errorf("expected no merge for a pre-existing duplicate, got %+v", res.Changes)
	}
}

func TestRemap_UnmappedDuplicatesPreserved(t *testing.T) {
	res := remap(t, `\cite{a,b,b}`, Rule{Old: "a", New: "z"})
	if res.Text != `\cite{z,b,b}` {
		t.Errorf("got %q", res.Text)
	}
}

func TestRemap_EmptySiteRemoved(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"tie", `Lab~\cite{a,b}.`, `Lab.`},
		{"space before period", `Lab \cite{a}.`, `Lab.`},
		{"space between words", `Lab \cite{a} works`, `Lab works`},
		{"start of text", `\cite{a} works`, ` works`},
		{"optional argument", `Lab~\citep[p.~2]{a}.`, `Lab.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := remap(t, tt.text, DropRule("a"), DropRule("b"))
			if res.Text != tt.want {
				t.Errorf("got %q, want %q", res.Text, tt.want)
			}
			if res.Count(ActionSiteRemoved) != 1 {
				t.Errorf("expected site_removed, got %+v", res.Changes)
			}
			if strings.Contains(res.Text, "{}") {
				t.Error("empty key list left behind")
			}
		})
	}
}

func TestRemap_DroppedEntryRemovedWithText(t *testing.T) {
	res := remap(t, sampleDoc, DropRule("r2"))

	if strings.Contains(res.Text, "Second, B.") {
		t.Error("entry text of dropped key remains")
	}
	if !strings.Contains(res.Text, "\\bibitem{r1}\nFirst, A. One.\n\n\\bibitem{r10}") {
		t.Errorf("neighbouring entries damaged:\n%s", res.Text)
	}
	if diff := cmp.Diff([][]string{{"r1", "r10"}, {"r11"}, {"r1"}}, citeKeys(t, res.Text)); diff != "" {
		t.Errorf("cite keys (-want +got):\n%s", diff)
	}
	if res.Count(ActionEntryRemoved) != 1 {
		t.Errorf("expected entry_removed, got %+v", res.Changes)
	}
}

func TestRemap_NotFoundIsNoOp(t *testing.T) {
	res := remap(t, sampleDoc, Rule{Old: "r99", New: "r1"})
	if res.Text != sampleDoc {
		t.Error("text changed for a rule whose key is absent")
	}
	want := []Change{{Action: ActionNotFound, Old: "r99", New: "r1"}}
	if diff := cmp.Diff(want, res.Changes); diff != "" {
		t.Errorf("changes (-want +got):\n%s", diff)
	}
}

func TestRemap_RerunIsNoOp(t *testing.T) {
	m := Mapping{Rules: []Rule{{Old: "r1", New: "a1"}, {Old: "r2", New: "a2"}}}
	first, err := RemapText(sampleDoc, DefaultMarkers(), m, RemapOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := RemapText(first.Text, DefaultMarkers(), m, RemapOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if second.Text != first.Text {
		t.Error("second run changed the text")
	}
	if second.Count(ActionNotFound) != 2 {
		t.Errorf("expected two not_found diagnostics, got %+v", second.Changes)
	}
}

func TestRemap_CollisionRisk(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		rules  []Rule
		prefix string
	}{
		{"prefix in document", `ZZZtmp \cite{a}`, []Rule{{Old: "a", New: "b"}}, ""},
		{"prefix in new key", `\cite{a}`, []Rule{{Old: "a", New: "tmp_1"}}, "tmp_"},
		{"prefix in old key", `\cite{tmp_a}`, []Rule{{Old: "tmp_a", New: "b"}}, "tmp_"},
		{"unusable prefix", `\cite{a}`, []Rule{{Old: "a", New: "b"}}, "has space"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RemapText(tt.text, DefaultMarkers(), Mapping{Rules: tt.rules}, RemapOptions{TempPrefix: tt.prefix})
			if !errors.Is(err, ErrMappingCollisionRisk) {
				t.Errorf("expected ErrMappingCollisionRisk, got %v", err)
			}
		})
	}
}

func TestRemap_TempPrefixPrecedence(t *testing.T) {
	m := Mapping{TempPrefix: "Q_", Rules: []Rule{{Old: "a", New: "b"}}}

	res, err := RemapText(`\cite{a}`, DefaultMarkers(), m, RemapOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.TempPrefix != "Q_" {
		t.Errorf("expected mapping prefix, got %q", res.TempPrefix)
	}

	res, err = RemapText(`\cite{a}`, DefaultMarkers(), m, RemapOptions{TempPrefix: "W_"})
	if err != nil {
		t.Fatal(err)
	}
	if res.TempPrefix != "W_" {
		t.Errorf("expected option prefix, got %q", res.TempPrefix)
	}
}

func TestRemap_InvalidMapping(t *testing.T) {
	_, err := RemapText(`\cite{a}`, DefaultMarkers(), Mapping{Rules: []Rule{{Old: "a", New: ""}}}, RemapOptions{})
	var me MappingError
	if !errors.As(err, &me) {
		t.Fatalf("expected MappingError, got %v", err)
	}
}

func TestRemap_NoDropSentinelRemains(t *testing.T) {
	res := remap(t, sampleDoc, DropRule("r1"), DropRule("r10"), Rule{Old: "r11", New: "r1"})
	for _, s := range Scan(res.Text, DefaultMarkers()).Sites {
		if s.Malformed() {
			t.Errorf("malformed site after remap at line %d: %v", s.Line, s.Problems)
		}
		for _, k := range s.Keys {
			if strings.HasPrefix(k, res.TempPrefix) {
				t.Errorf("temporary key %q left in output", k)
			}
		}
	}
}

func TestApplyEdits_SkipsNested(t *testing.T) {
	got := applyEdits("0123456789", []edit{
		{start: 6, end: 7, text: "x"},
		{start: 2, end: 8},
	})
	if got != "0189" {
		t.Errorf("got %q", got)
	}
}
