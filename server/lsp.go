// Package server is the invmc language server. Each open document is
// parsed and analyzed in its own compilation unit on every change.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/invmc/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "invmc-lsp"

var log = commonlog.GetLogger("invmc.server")

// document is one open text and the result of analyzing it.
type document struct {
	text    string
	root    *compiler.Node        // nil when the text did not parse
	symbols *compiler.SymbolTable // nil when the text did not parse
	diags   []compiler.Diagnostic
}

// analyze parses text and, when it parses cleanly, validates and checks it
// in a fresh unit.
func analyze(text string) *document {
	doc := &document{text: text}
	p := compiler.NewParser(text)
	root := p.ParseProgram()
	if diags := p.Diagnostics(); len(diags) > 0 {
		doc.diags = diags
		return doc
	}
	u := compiler.NewUnit("lsp")
	doc.diags = u.Analyze(root)
	doc.root = root
	doc.symbols = u.Symbols
	return doc
}

// LspServer serves editor features for .men documents.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → latest analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new language server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	log.Info("shutting down")
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	doc := analyze(text)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	log.Debugf("%s: %d diagnostic(s)", uri, len(doc.diags))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(doc),
	})
}

func (s *LspServer) lookup(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(doc, extractPrefix(doc.text, params.Position)), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc, ok := s.lookup(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	if loc := definition(uri, doc, word); loc != nil {
		return loc, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	doc, ok := s.lookup(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return references(uri, doc, word), nil
}

// --- Analysis-backed logic ---

func complete(doc *document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	if doc.symbols != nil {
		for _, sym := range doc.symbols.Symbols() {
			if !strings.HasPrefix(strings.ToLower(sym.Name), lowerPrefix) {
				continue
			}
			kind := protocol.CompletionItemKindVariable
			detail := sym.Type.String()
			name := sym.Name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	for _, kw := range compiler.Keywords() {
		if !strings.HasPrefix(kw, lowerPrefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		detail := "keyword"
		name := kw
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	return items
}

func hover(doc *document, word string) *protocol.Hover {
	var b strings.Builder
	if sym, ok := lookupSymbol(doc, word); ok {
		fmt.Fprintf(&b, "**%s** : %s\n\n", sym.Name, sym.Type)
		fmt.Fprintf(&b, "slot `*%d`", sym.Slot)
		if sym.Pos.IsValid() {
			fmt.Fprintf(&b, ", declared on line %d", sym.Pos.Line)
		}
	} else if compiler.IsReserved(word) {
		fmt.Fprintf(&b, "keyword `%s`", word)
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func definition(uri protocol.DocumentUri, doc *document, word string) []protocol.Location {
	sym, ok := lookupSymbol(doc, word)
	if !ok || !sym.Pos.IsValid() {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: wordRange(sym.Pos, sym.Name)}}
}

// references lists the declaration and every use of name, including the
// targets of inc and dec, in source order.
func references(uri protocol.DocumentUri, doc *document, name string) []protocol.Location {
	if doc.root == nil {
		return nil
	}
	var positions []compiler.Position
	var walk func(n *compiler.Node)
	walk = func(n *compiler.Node) {
		if n.Name == name && n.Pos.IsValid() {
			switch n.Kind {
			case compiler.KindIdentifier, compiler.KindDecl:
				positions = append(positions, n.Pos)
			case compiler.KindInc, compiler.KindDec:
				if pos, ok := operandPos(doc.text, n.Pos, name); ok {
					positions = append(positions, pos)
				}
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(doc.root)

	sort.Slice(positions, func(i, j int) bool { return positions[i].Offset < positions[j].Offset })
	locations := make([]protocol.Location, len(positions))
	for i, pos := range positions {
		locations[i] = protocol.Location{URI: uri, Range: wordRange(pos, name)}
	}
	return locations
}

// operandPos finds name after the inc or dec keyword at kw. Only blanks may
// separate the two on a line.
func operandPos(text string, kw compiler.Position, name string) (compiler.Position, bool) {
	off := kw.Offset + len("inc")
	if off > len(text) {
		return compiler.Position{}, false
	}
	for off < len(text) && (text[off] == ' ' || text[off] == '\t' || text[off] == '\r') {
		off++
	}
	if !strings.HasPrefix(text[off:], name) {
		return compiler.Position{}, false
	}
	return compiler.Position{
		Offset: off,
		Line:   kw.Line,
		Column: kw.Column + off - kw.Offset,
	}, true
}

func lookupSymbol(doc *document, name string) (compiler.Symbol, bool) {
	if doc.symbols == nil {
		return compiler.Symbol{}, false
	}
	sym, ok := doc.symbols.Lookup(name)
	if !ok {
		return compiler.Symbol{}, false
	}
	return *sym, true
}

// --- Diagnostics ---

func diagnostics(doc *document) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(doc.diags))
	for _, d := range doc.diags {
		severity := protocol.DiagnosticSeverityError
		source := lspName + "/" + d.Stage
		out = append(out, protocol.Diagnostic{
			Range:    pointRange(d.Pos),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// --- Positions ---

// toPosition converts a 1-based compiler position to a 0-based LSP one.
func toPosition(pos compiler.Position) protocol.Position {
	if !pos.IsValid() {
		return protocol.Position{}
	}
	return protocol.Position{
		Line:      protocol.UInteger(pos.Line - 1),
		Character: protocol.UInteger(pos.Column - 1),
	}
}

func pointRange(pos compiler.Position) protocol.Range {
	p := toPosition(pos)
	return protocol.Range{Start: p, End: p}
}

func wordRange(pos compiler.Position, word string) protocol.Range {
	start := toPosition(pos)
	end := start
	end.Character += protocol.UInteger(len(word))
	return protocol.Range{Start: start, End: end}
}

// --- Text extraction helpers ---

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
