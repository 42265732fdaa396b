package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Inspector: debug dumps and snapshots of an environment
// ---------------------------------------------------------------------------

// ANSI colours used by the dumps.
const (
	ansiReset   = "\x1b[0m"
	ansiBold    = "\x1b[1m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiGray    = "\x1b[90m"
)

func paint(color bool, code, s string) string {
	if !color {
		return s
	}
	return code + s + ansiReset
}

// DumpTokens writes the list containing list in source-like form. Paren
// groups are shown as ( ) and tuples as { }.
func (e *Env) DumpTokens(w io.Writer, list Handle, color bool) error {
	var b strings.Builder
	e.dumpList(&b, e.Arena.Begin(list), color)
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

func (e *Env) dumpList(b *strings.Builder, h Handle, color bool) {
	a := e.Arena
	first := true
	for ; !h.IsNil(); h = a.Right(h) {
		t := a.Get(h)
		if t.Kind == TokenDelimiter {
			b.WriteString(paint(color, ansiGray, ";"))
			b.WriteByte('\n')
			first = true
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		first = false
		e.dumpToken(b, t, color)
	}
}

func (e *Env) dumpToken(b *strings.Builder, t *Token, color bool) {
	switch t.Kind {
	case TokenSymbol:
		b.WriteString(paint(color, ansiCyan, t.Sym.String()))
	case TokenKeyword:
		b.WriteString(paint(color, ansiBold+ansiBlue, t.Kw.Str))
	case TokenOperator:
		b.WriteString(paint(color, ansiMagenta, t.Operator().Str))
	case TokenNumber:
		b.WriteString(paint(color, ansiYellow, t.Num.String()))
	case TokenString:
		b.WriteString(paint(color, ansiGreen, fmt.Sprintf("%q", t.Text.String())))
	case TokenResource:
		b.WriteString(paint(color, ansiRed, "<"+ResourceValue(t.Res).String()+">"))
	case TokenParen, TokenTuple:
		lb, rb := "(", ")"
		if t.Kind == TokenTuple {
			lb, rb = "{", "}"
		}
		b.WriteString(lb)
		if !t.Children.IsNil() {
			b.WriteByte(' ')
			e.dumpList(b, e.Arena.Begin(t.Children), color)
			b.WriteByte(' ')
		}
		b.WriteString(rb)
	}
}

// DumpSymbols writes one line per symbol with its binding.
func (e *Env) DumpSymbols(w io.Writer, color bool) error {
	for _, s := range e.Symbols.All() {
		name := paint(color, ansiCyan, s.String())
		var line string
		if s.Res == nil {
			line = fmt.Sprintf("%s %s\n", name, paint(color, ansiGray, "(unbound)"))
		} else {
			v := ResourceValue(s.Res)
			line = fmt.Sprintf("%s = %s %s\n", name, v, paint(color, ansiGray, fmt.Sprintf("[%s, refs %d]", v.TypeName(), s.Res.RefCount)))
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// SymbolInfo describes one symbol in a Snapshot.
type SymbolInfo struct {
	Name  string `cbor:"name"`
	Type  string `cbor:"type"`
	Value string `cbor:"value,omitempty"`
	Refs  int    `cbor:"refs,omitempty"`
}

// Snapshot is a point-in-time diagnostic view of an environment. It
// cannot be loaded back.
type Snapshot struct {
	Symbols   []SymbolInfo  `cbor:"symbols"`
	Resources ResourceStats `cbor:"resources"`
	Arena     ArenaStats    `cbor:"arena"`
	Texts     int           `cbor:"texts"`
	Steps     int           `cbor:"steps"`
}

// Snapshot captures the symbols and pool statistics of e.
func (e *Env) Snapshot() Snapshot {
	s := Snapshot{
		Resources: e.Resources.Stats(),
		Arena:     e.Arena.Stats(),
		Texts:     e.Texts.Len(),
		Steps:     e.steps,
	}
	for _, sym := range e.Symbols.All() {
		info := SymbolInfo{Name: sym.String(), Type: ValueNone.String()}
		if sym.Res != nil {
			v := ResourceValue(sym.Res)
			info.Type = v.TypeName()
			info.Value = v.String()
			info.Refs = sym.Res.RefCount
		}
		s.Symbols = append(s.Symbols, info)
	}
	return s
}

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// EncodeSnapshot serializes s to canonical CBOR.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return snapshotEncMode.Marshal(s)
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return s, nil
}
