package vm

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jbasic.vm")

// ---------------------------------------------------------------------------
// Env: one interpreter environment
// ---------------------------------------------------------------------------

// Default pool sizes.
const (
	DefaultTokens    = 10000
	DefaultText      = 1000
	DefaultSymbols   = 1000
	DefaultResources = 1000
	DefaultArrayLen  = 1 << 20
)

// Config sizes the pools of an environment and wires its I/O.
type Config struct {
	Tokens    int
	Text      int
	Symbols   int
	Resources int

	// ArrayLen caps the length of arrays created by natives.
	ArrayLen int

	// MaxSteps bounds the number of WHILE iterations per run. Zero means
	// no bound.
	MaxSteps int

	Output io.Writer
	Input  io.Reader
}

// DefaultConfig returns the standard pool sizes with no step budget.
func DefaultConfig() Config {
	return Config{
		Tokens:    DefaultTokens,
		Text:      DefaultText,
		Symbols:   DefaultSymbols,
		Resources: DefaultResources,
		ArrayLen:  DefaultArrayLen,
	}
}

// Env owns every pool used to run a program. An Env must be driven by a
// single goroutine.
type Env struct {
	Arena     *Arena
	Texts     *TextPool
	Symbols   *SymbolTable
	Resources *ResourceManager

	program  Handle
	out      io.Writer
	in       *bufio.Reader
	maxSteps int
	arrayLen int
	steps    int
	ctx      context.Context
	lastErr  error
}

// NewEnv creates an environment. Zero sizes in cfg take the defaults.
func NewEnv(cfg Config) (*Env, error) {
	def := DefaultConfig()
	if cfg.Tokens <= 0 {
		cfg.Tokens = def.Tokens
	}
	if cfg.Text <= 0 {
		cfg.Text = def.Text
	}
	if cfg.Symbols <= 0 {
		cfg.Symbols = def.Symbols
	}
	if cfg.Resources <= 0 {
		cfg.Resources = def.Resources
	}
	if cfg.ArrayLen <= 0 {
		cfg.ArrayLen = def.ArrayLen
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}

	res := NewResourceManager(cfg.Resources)
	texts := NewTextPool(cfg.Text)
	e := &Env{
		Arena:     NewArena(cfg.Tokens, res),
		Texts:     texts,
		Symbols:   NewSymbolTable(cfg.Symbols, texts),
		Resources: res,
		out:       cfg.Output,
		in:        bufio.NewReader(cfg.Input),
		maxSteps:  cfg.MaxSteps,
		arrayLen:  cfg.ArrayLen,
	}

	// The program list starts with a delimiter so its head never moves.
	head, err := e.Arena.InsertAfter(Nil, DelimiterToken(Position{}))
	if err != nil {
		return nil, err
	}
	e.program = head
	return e, nil
}

// Output returns the writer used by PRINT and the native library.
func (e *Env) Output() io.Writer {
	return e.out
}

// SetOutput redirects PRINT output.
func (e *Env) SetOutput(w io.Writer) {
	e.out = w
}

// Input returns the reader used by the native library.
func (e *Env) Input() *bufio.Reader {
	return e.in
}

// SetInput replaces the input reader.
func (e *Env) SetInput(r io.Reader) {
	e.in = bufio.NewReader(r)
}

// MaxSteps returns the WHILE iteration budget; zero means unbounded.
func (e *Env) MaxSteps() int {
	return e.maxSteps
}

// SetMaxSteps changes the WHILE iteration budget.
func (e *Env) SetMaxSteps(n int) {
	e.maxSteps = n
}

// Steps returns the WHILE iterations performed by the last run.
func (e *Env) Steps() int {
	return e.steps
}

// LastError returns the error that aborted the most recent run, if any.
func (e *Env) LastError() error {
	return e.lastErr
}

// Program returns the head of the program list. The head is a delimiter;
// the program proper starts at its right neighbour.
func (e *Env) Program() Handle {
	return e.program
}

// AppendProgram moves the list containing list onto the end of the
// program. The environment owns the tokens afterwards.
func (e *Env) AppendProgram(list Handle) {
	e.Arena.Concat(e.program, list)
}

// ClearProgram destroys every program token.
func (e *Env) ClearProgram() {
	for r := e.Arena.Right(e.program); !r.IsNil(); r = e.Arena.Right(e.program) {
		e.Arena.unlink(r)
		e.Arena.Release(r)
	}
}

// Run executes the program.
func (e *Env) Run() error {
	return e.RunContext(context.Background())
}

// RunContext executes the program, stopping between instructions once ctx
// is done.
func (e *Env) RunContext(ctx context.Context) error {
	return e.RunList(ctx, e.Arena.Right(e.program))
}

// RunList executes the list starting at begin with the same bookkeeping as
// Run. The list is left intact.
func (e *Env) RunList(ctx context.Context, begin Handle) (err error) {
	e.start(ctx)
	defer func() { e.finish(err) }()
	return e.RunBlock(begin, Nil)
}

// EvalList runs the list starting at begin like RunList and returns the
// value of its last instruction. A list ending in a statement yields the
// zero Value.
func (e *Env) EvalList(ctx context.Context, begin Handle) (v Value, err error) {
	e.start(ctx)
	defer func() { e.finish(err) }()

	last := e.lastInstruction(begin)
	if last.IsNil() || e.Arena.Get(last).Kind == TokenKeyword {
		return Value{}, e.RunBlock(begin, Nil)
	}
	if err := e.RunBlock(begin, last); err != nil {
		return Value{}, err
	}
	if err := e.checkContext(); err != nil {
		return Value{}, err
	}
	res, scratch, _, err := e.evalInstruction(last, Nil)
	if err != nil {
		return Value{}, err
	}
	defer e.Arena.DestroyList(scratch)
	return e.ValueOf(res)
}

// lastInstruction returns the first token of the last top-level
// instruction of the list, or Nil when the list ends inside a block or
// holds only delimiters. An instruction starts after a delimiter or after
// a keyword that takes no operands, such as END.
func (e *Env) lastInstruction(begin Handle) Handle {
	last := Nil
	level := 0
	atStart := true
	for h := begin; !h.IsNil(); h = e.Arena.Right(h) {
		t := e.Arena.Get(h)
		if t.Kind == TokenDelimiter {
			atStart = true
			continue
		}
		if atStart {
			last = Nil
			if level == 0 {
				last = h
			}
			atStart = false
		}
		if t.Kind == TokenKeyword {
			kw := t.Kw.Resolve()
			level += kw.Level
			atStart = kw.Handler == nil
		}
	}
	return last
}

func (e *Env) start(ctx context.Context) {
	e.ctx = ctx
	e.steps = 0
	e.lastErr = nil
	log.Debugf("run started (%d tokens in use)", e.Arena.Stats().Used)
}

func (e *Env) finish(err error) {
	e.ctx = nil
	if err != nil {
		e.lastErr = err
		log.Debugf("run aborted: %s", err)
		return
	}
	log.Debugf("run finished after %d loop iterations", e.steps)
}

// checkContext reports cancellation of the current run.
func (e *Env) checkContext() error {
	if e.ctx == nil {
		return nil
	}
	return e.ctx.Err()
}

// step charges one WHILE iteration against the budget.
func (e *Env) step(pos Position) error {
	e.steps++
	if e.maxSteps > 0 && e.steps > e.maxSteps {
		return NewError(ErrStepBudget, pos, "more than %d loop iterations", e.maxSteps)
	}
	return nil
}

// Close releases every token, symbol, resource and string of e.
func (e *Env) Close() {
	e.ClearProgram()
	e.Symbols.Clear(e.Resources)
	e.Resources.Clear()
	e.Texts.Clear()
}
