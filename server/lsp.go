package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/jbasic"
	"github.com/chazu/jbasic/compiler"
	"github.com/chazu/jbasic/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "jbasic-lsp"

// wordOperatorDocs describes the operators spelled with letters.
var wordOperatorDocs = map[string]string{
	"AND": "a AND b is true when both are true. b is not evaluated when a is false.",
	"OR":  "a OR b is true when either is true. b is not evaluated when a is true.",
	"NOT": "NOT a negates the truth of a.",
}

// LspServer provides editor features for jbasic sources. Symbol values
// shown on hover come from the interpreter behind the worker.
type LspServer struct {
	worker *EnvWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server around interp.
func NewLSP(interp *jbasic.Interpreter) *LspServer {
	s := &LspServer{
		worker:  NewEnvWorker(interp),
		docs:    make(map[string]string),
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
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run serves on stdio until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- Lifecycle ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("jbasic LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

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
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// Full sync: the last change holds the whole document.
	whole, ok := params.ContentChanges[len(params.ContentChanges)-1].(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	uri := params.TextDocument.URI

	s.mu.Lock()
	s.docs[string(uri)] = whole.Text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, whole.Text)
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(interp *jbasic.Interpreter) interface{} {
		return s.complete(interp.Env(), text, prefix)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(interp *jbasic.Interpreter) interface{} {
		return s.hover(interp.Env(), word)
	})
	if err != nil || result == nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	pos, ok := firstAssignment(text, word)
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: wordRange(pos, len(word)),
	}}, nil
}

// --- Environment-backed logic (called on the worker goroutine) ---

func (s *LspServer) complete(e *vm.Env, text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		upper := strings.ToUpper(label)
		if seen[upper] || !strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			return
		}
		seen[upper] = true
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, kw := range vm.Keywords() {
		add(kw.Str, protocol.CompletionItemKindKeyword, "keyword")
	}
	for _, op := range vm.Operators() {
		if op.IsWord() {
			add(op.Str, protocol.CompletionItemKindOperator, "operator")
		}
	}
	for _, sym := range e.Natives() {
		add(sym.String(), protocol.CompletionItemKindFunction, "native function")
	}
	for _, sym := range e.Symbols.All() {
		detail := "unbound"
		if sym.Res != nil {
			detail = vm.ResourceValue(sym.Res).TypeName()
		}
		add(sym.String(), protocol.CompletionItemKindVariable, detail)
	}
	for _, lx := range compiler.Tokenize(text) {
		if lx.Type == compiler.TokenIdentifier && vm.LookupKeyword(lx.Literal) == nil {
			add(lx.Literal, protocol.CompletionItemKindVariable, "symbol")
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func (s *LspServer) hover(e *vm.Env, word string) *protocol.Hover {
	var b strings.Builder
	switch {
	case vm.LookupKeyword(word) != nil:
		kw := vm.LookupKeyword(word)
		fmt.Fprintf(&b, "**%s**", kw.Str)
		if kw.Alias != nil {
			fmt.Fprintf(&b, " (same as %s)", kw.Resolve().Str)
		}
		if doc := kw.Resolve().Doc; doc != "" {
			fmt.Fprintf(&b, "\n\n%s", doc)
		}

	case wordOperatorDocs[strings.ToUpper(word)] != "":
		fmt.Fprintf(&b, "**%s** operator\n\n%s", strings.ToUpper(word), wordOperatorDocs[strings.ToUpper(word)])

	default:
		sym := e.Symbols.Lookup(word)
		if sym == nil {
			return nil
		}
		if sym.Res == nil {
			fmt.Fprintf(&b, "**%s** (unbound)", sym)
			break
		}
		v := vm.ResourceValue(sym.Res)
		if v.Kind == vm.ValueNative {
			fmt.Fprintf(&b, "**%s** native function", sym)
			break
		}
		fmt.Fprintf(&b, "**%s** = `%s`\n\n%s, %d refs", sym, v, v.TypeName(), sym.Res.RefCount)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnose(text)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose converts the problems found by the lexer and block matcher to
// LSP diagnostics.
func diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, err := range compiler.Check(text) {
		pos, _ := vm.PositionOf(err)
		msg := err.Error()
		var verr *vm.Error
		if errors.As(err, &verr) {
			msg = verr.Err.Error()
			if verr.Msg != "" {
				msg += ": " + verr.Msg
			}
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    wordRange(pos, 1),
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}
	return diagnostics
}

// firstAssignment finds the first "word =" in text.
func firstAssignment(text, word string) (vm.Position, bool) {
	tokens := compiler.Tokenize(text)
	for i, lx := range tokens {
		if lx.Type != compiler.TokenIdentifier || !strings.EqualFold(lx.Literal, word) {
			continue
		}
		if i+1 < len(tokens) && tokens[i+1].Type == compiler.TokenOperator && tokens[i+1].Literal == "=" {
			return lx.Pos.VM(), true
		}
	}
	return vm.Position{}, false
}

// wordRange converts a 1-based source position to an LSP range n
// characters wide. An unknown position maps to the start of the document.
func wordRange(pos vm.Position, n int) protocol.Range {
	if !pos.IsValid() {
		return protocol.Range{}
	}
	start := protocol.Position{
		Line:      protocol.UInteger(pos.Line - 1),
		Character: protocol.UInteger(max(pos.Column-1, 0)),
	}
	end := start
	end.Character += protocol.UInteger(n)
	return protocol.Range{Start: start, End: end}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(line[end]) {
		end++
	}
	return line[start:end]
}

func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := lines[pos.Line]
	return line, min(int(pos.Character), len(line)), true
}

func isWordChar(c byte) bool {
	ch := rune(c)
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
