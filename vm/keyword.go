package vm

import "strings"

// ---------------------------------------------------------------------------
// Keyword descriptors
// ---------------------------------------------------------------------------

// KeywordID identifies a canonical keyword.
type KeywordID uint8

const (
	KwAlias KeywordID = iota
	KwNop
	KwEnd
	KwIf
	KwElse
	KwWhile
	KwPrint
)

// KeywordHandler runs the statement introduced by the keyword token kw and
// returns the token where execution continues. end bounds the enclosing
// block.
type KeywordHandler func(e *Env, kw, end Handle) (Handle, error)

// Keyword is an immutable keyword descriptor. An alias carries only Str
// and Alias; everything else comes from the keyword it resolves to.
type Keyword struct {
	ID      KeywordID
	Str     string
	Level   int
	Handler KeywordHandler
	Alias   *Keyword
	Doc     string
}

// Resolve follows the alias chain to the canonical descriptor.
func (kw *Keyword) Resolve() *Keyword {
	for kw.Alias != nil {
		kw = kw.Alias
	}
	return kw
}

var (
	kwNop = &Keyword{ID: KwNop, Str: "NOP", Doc: "Does nothing."}
	kwEnd = &Keyword{ID: KwEnd, Str: "END", Level: -1, Doc: "Closes an IF or WHILE block."}
)

var keywords = []*Keyword{
	kwNop,
	kwEnd,
	{ID: KwWhile, Str: "WHILE", Level: 1, Handler: runWhile,
		Doc: "WHILE cond [DO] ... ENDWHILE repeats the body while cond is true."},
	{ID: KwIf, Str: "IF", Level: 1, Handler: runIf,
		Doc: "IF cond [THEN] ... [ELSE ...] ENDIF runs one branch."},
	{ID: KwElse, Str: "ELSE", Doc: "Starts the branch of an IF taken when the condition is false."},
	{ID: KwPrint, Str: "PRINT", Handler: runPrint,
		Doc: "PRINT expr writes the value of expr; tuple elements are tab-separated."},
	{Str: "THEN", Alias: kwNop},
	{Str: "DO", Alias: kwNop},
	{Str: "ENDIF", Alias: kwEnd},
	{Str: "ENDWHILE", Alias: kwEnd},
}

// Keywords returns the keyword table, aliases included.
func Keywords() []*Keyword {
	out := make([]*Keyword, len(keywords))
	copy(out, keywords)
	return out
}

// LookupKeyword returns the keyword spelled s, ignoring case. The result
// may be an alias; call Resolve for its behaviour.
func LookupKeyword(s string) *Keyword {
	for _, kw := range keywords {
		if strings.EqualFold(kw.Str, s) {
			return kw
		}
	}
	return nil
}
