package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const testURI = protocol.DocumentUri("file:///test.men")

const testSource = "count := 3\nflag := true\nprint count"

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "print cou"
	pos := protocol.Position{Line: 0, Character: 9}
	prefix := extractPrefix(text, pos)
	if prefix != "cou" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "cou")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "x := 1\ny := 2\nwhi"
	pos := protocol.Position{Line: 2, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "whi" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "whi")
	}
}

func TestExtractPrefix_AfterOperator(t *testing.T) {
	text := "x := total+sub"
	pos := protocol.Position{Line: 0, Character: 14}
	prefix := extractPrefix(text, pos)
	if prefix != "sub" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "sub")
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "hello"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

// ---------------------------------------------------------------------------
// extractWord
// ---------------------------------------------------------------------------

func TestExtractWord_SimpleWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_AtEnd(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 5}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_SecondWord(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 8}
	word := extractWord(text, pos)
	if word != "world" {
		t.Errorf("extractWord = %q, want %q", word, "world")
	}
}

func TestExtractWord_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	word := extractWord(text, pos)
	if word != "" {
		t.Errorf("extractWord = %q, want empty string", word)
	}
}

func TestExtractWord_MultiLine(t *testing.T) {
	text := "first\nprint total"
	pos := protocol.Position{Line: 1, Character: 8}
	word := extractWord(text, pos)
	if word != "total" {
		t.Errorf("extractWord = %q, want %q", word, "total")
	}
}

func TestExtractWord_WithUnderscore(t *testing.T) {
	text := "my_var"
	pos := protocol.Position{Line: 0, Character: 3}
	word := extractWord(text, pos)
	if word != "my_var" {
		t.Errorf("extractWord = %q, want %q", word, "my_var")
	}
}

func TestExtractWord_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	word := extractWord(text, pos)
	if word != "" {
		t.Errorf("extractWord beyond doc = %q, want empty string", word)
	}
}

// ---------------------------------------------------------------------------
// Analysis and diagnostics
// ---------------------------------------------------------------------------

func TestAnalyze_Clean(t *testing.T) {
	doc := analyze(testSource)
	if len(doc.diags) != 0 {
		t.Fatalf("diagnostics = %v, want none", doc.diags)
	}
	if doc.root == nil || doc.symbols == nil {
		t.Fatal("clean document should keep its tree and symbols")
	}
	if n := doc.symbols.Len(); n != 2 {
		t.Errorf("symbols = %d, want 2", n)
	}
}

func TestAnalyze_SemanticError(t *testing.T) {
	doc := analyze("x := 1\ninc y")
	diags := diagnostics(doc)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	d := diags[0]
	if !strings.Contains(d.Message, `undeclared variable "y"`) {
		t.Errorf("message = %q", d.Message)
	}
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 0 {
		t.Errorf("range start = %+v, want line 1 character 0", d.Range.Start)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("severity should be error")
	}
	if d.Source == nil || *d.Source != "invmc-lsp/semantic" {
		t.Errorf("source = %v, want invmc-lsp/semantic", d.Source)
	}
}

func TestAnalyze_ParseError(t *testing.T) {
	doc := analyze("x := \nprint x")
	if doc.root != nil || doc.symbols != nil {
		t.Error("unparsable document should not keep a tree")
	}
	diags := diagnostics(doc)
	if len(diags) == 0 {
		t.Fatal("expected parse diagnostics")
	}
	if *diags[0].Source != "invmc-lsp/parse" {
		t.Errorf("source = %q, want invmc-lsp/parse", *diags[0].Source)
	}
}

func TestDiagnostics_EmptyIsNotNil(t *testing.T) {
	if diags := diagnostics(analyze(testSource)); diags == nil {
		t.Error("clean diagnostics should be an empty slice so clients clear markers")
	}
}

// ---------------------------------------------------------------------------
// Completion, hover, definition, references
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func TestComplete(t *testing.T) {
	doc := analyze(testSource)

	tests := []struct {
		prefix string
		want   []string
	}{
		{"c", []string{"count"}},
		{"F", []string{"flag", "false"}},
		{"pr", []string{"print"}},
		{"zzz", nil},
	}
	for _, tc := range tests {
		got := labels(complete(doc, tc.prefix))
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Errorf("complete(%q) = %v, want %v", tc.prefix, got, tc.want)
		}
	}

	if n := len(complete(doc, "")); n != 2+11 {
		t.Errorf("complete(\"\") = %d items, want 13", n)
	}
}

func TestComplete_ItemKinds(t *testing.T) {
	items := complete(analyze(testSource), "count")
	if len(items) != 1 {
		t.Fatalf("items = %v", labels(items))
	}
	if *items[0].Kind != protocol.CompletionItemKindVariable {
		t.Errorf("kind = %v, want variable", *items[0].Kind)
	}
	if *items[0].Detail != "int" {
		t.Errorf("detail = %q, want int", *items[0].Detail)
	}
}

func TestComplete_UnparsableDocumentOffersKeywords(t *testing.T) {
	got := labels(complete(analyze("count := \n"), "in"))
	if len(got) != 1 || got[0] != "inc" {
		t.Errorf("complete = %v, want [inc]", got)
	}
}

func TestHover_Variable(t *testing.T) {
	h := hover(analyze(testSource), "flag")
	if h == nil {
		t.Fatal("expected hover for declared variable")
	}
	value := h.Contents.(protocol.MarkupContent).Value
	for _, want := range []string{"**flag** : bool", "slot `*1`", "line 2"} {
		if !strings.Contains(value, want) {
			t.Errorf("hover %q missing %q", value, want)
		}
	}
}

func TestHover_Keyword(t *testing.T) {
	h := hover(analyze(testSource), "while")
	if h == nil {
		t.Fatal("expected hover for keyword")
	}
	if v := h.Contents.(protocol.MarkupContent).Value; v != "keyword `while`" {
		t.Errorf("hover = %q", v)
	}
}

func TestHover_UnknownWord(t *testing.T) {
	if h := hover(analyze(testSource), "nope"); h != nil {
		t.Errorf("hover for unknown word = %+v, want nil", h)
	}
}

func TestDefinition(t *testing.T) {
	locs := definition(testURI, analyze(testSource), "flag")
	if len(locs) != 1 {
		t.Fatalf("locations = %d, want 1", len(locs))
	}
	r := locs[0].Range
	if locs[0].URI != testURI {
		t.Errorf("uri = %q", locs[0].URI)
	}
	if r.Start.Line != 1 || r.Start.Character != 0 || r.End.Character != 4 {
		t.Errorf("range = %+v, want line 1 characters 0-4", r)
	}
}

func TestDefinition_UnknownWord(t *testing.T) {
	if locs := definition(testURI, analyze(testSource), "nope"); locs != nil {
		t.Errorf("definition = %v, want nil", locs)
	}
}

func TestReferences(t *testing.T) {
	locs := references(testURI, analyze(testSource), "count")
	if len(locs) != 2 {
		t.Fatalf("references = %d, want 2", len(locs))
	}
	if s := locs[0].Range.Start; s.Line != 0 || s.Character != 0 {
		t.Errorf("first reference = %+v, want declaration at 0:0", s)
	}
	if s := locs[1].Range.Start; s.Line != 2 || s.Character != 6 {
		t.Errorf("second reference = %+v, want use at 2:6", s)
	}
}

func TestReferences_IncDecTargets(t *testing.T) {
	src := "count := 3\ninc count\nwhile count > 0 {\n\tdec   count # down\n}"
	locs := references(testURI, analyze(src), "count")
	want := []protocol.Position{
		{Line: 0, Character: 0},
		{Line: 1, Character: 4},
		{Line: 2, Character: 6},
		{Line: 3, Character: 7},
	}
	if len(locs) != len(want) {
		t.Fatalf("references = %+v, want %d locations", locs, len(want))
	}
	for i, w := range want {
		r := locs[i].Range
		if r.Start != w {
			t.Errorf("reference %d starts at %+v, want %+v", i, r.Start, w)
		}
		if r.End.Character-r.Start.Character != protocol.UInteger(len("count")) {
			t.Errorf("reference %d range = %+v, want the width of the name", i, r)
		}
	}
}

func TestReferences_UnparsableDocument(t *testing.T) {
	if locs := references(testURI, analyze("x := "), "x"); locs != nil {
		t.Errorf("references = %v, want nil", locs)
	}
}

// ---------------------------------------------------------------------------
// Document store
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	lsp := NewLSP()

	lsp.mu.Lock()
	lsp.docs[string(testURI)] = analyze(testSource)
	lsp.mu.Unlock()

	doc, ok := lsp.lookup(testURI)
	if !ok {
		t.Fatal("document should be stored after open")
	}
	if doc.text != testSource {
		t.Errorf("document text = %q, want %q", doc.text, testSource)
	}

	lsp.mu.Lock()
	delete(lsp.docs, string(testURI))
	lsp.mu.Unlock()

	if _, ok := lsp.lookup(testURI); ok {
		t.Error("document should be removed after close")
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil || *p != true {
		t.Errorf("boolPtr(true) = %v, want true", p)
	}
}
