// Package jbasic is an embeddable interpreter for a small BASIC dialect.
//
// An Interpreter owns one environment: fixed-size pools for tokens,
// strings, symbols and resources, sized from a jbasic.toml manifest.
// Source is tokenized straight into the token pool and executed in place.
//
//	interp, err := jbasic.New(nil, jbasic.WithOutput(os.Stdout))
//	if err != nil { ... }
//	defer interp.Close()
//	if err := interp.Exec(ctx, "A = 2 + 3 * 4\nPRINT A"); err != nil { ... }
//
// An Interpreter must be used from a single goroutine; see the server
// package for a worker that serializes access.
package jbasic

import (
	"context"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/jbasic/compiler"
	"github.com/chazu/jbasic/lib/stdlib"
	"github.com/chazu/jbasic/manifest"
	"github.com/chazu/jbasic/vm"
)

// Interpreter runs jbasic programs in one environment.
type Interpreter struct {
	env      *vm.Env
	manifest *manifest.Manifest
	log      commonlog.Logger
	out      io.Writer
	in       io.Reader
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithOutput sets where PRINT and the output natives write.
func WithOutput(w io.Writer) Option {
	return func(i *Interpreter) { i.out = w }
}

// WithInput sets where GETCHAR reads from.
func WithInput(r io.Reader) Option {
	return func(i *Interpreter) { i.in = r }
}

// WithLogger replaces the interpreter's logger.
func WithLogger(l commonlog.Logger) Option {
	return func(i *Interpreter) { i.log = l }
}

// New creates an interpreter configured by m. A nil manifest means the
// defaults.
func New(m *manifest.Manifest, opts ...Option) (*Interpreter, error) {
	if m == nil {
		m = manifest.Default()
	}
	i := &Interpreter{
		manifest: m,
		log:      commonlog.GetLogger("jbasic"),
	}
	for _, opt := range opts {
		opt(i)
	}

	cfg := m.EnvConfig()
	cfg.Output = i.out
	cfg.Input = i.in
	env, err := vm.NewEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating environment: %w", err)
	}
	if m.Libs.Std {
		if err := stdlib.Register(env); err != nil {
			env.Close()
			return nil, err
		}
	}
	i.env = env
	i.log.Debugf("interpreter ready: %d tokens, %d symbols, %d resources, max steps %d",
		cfg.Tokens, cfg.Symbols, cfg.Resources, cfg.MaxSteps)
	return i, nil
}

// Env returns the underlying environment.
func (i *Interpreter) Env() *vm.Env {
	return i.env
}

// Manifest returns the configuration the interpreter was built from.
func (i *Interpreter) Manifest() *manifest.Manifest {
	return i.manifest
}

// Load tokenizes src and appends it to the program.
func (i *Interpreter) Load(src string) error {
	head, err := compiler.Build(i.env, src)
	if err != nil {
		return err
	}
	i.env.AppendProgram(head)
	i.log.Debugf("loaded %d bytes", len(src))
	return nil
}

// Run executes the loaded program.
func (i *Interpreter) Run(ctx context.Context) error {
	return i.env.RunContext(ctx)
}

// Exec runs src once without adding it to the program. Symbols it
// assigns stay bound.
func (i *Interpreter) Exec(ctx context.Context, src string) error {
	head, err := compiler.Build(i.env, src)
	if err != nil {
		return err
	}
	defer i.env.Arena.DestroyList(head)
	return i.env.RunList(ctx, head)
}

// Eval runs src like Exec and returns the value of its last instruction.
func (i *Interpreter) Eval(ctx context.Context, src string) (vm.Value, error) {
	head, err := compiler.Build(i.env, src)
	if err != nil {
		return vm.Value{}, err
	}
	defer i.env.Arena.DestroyList(head)
	return i.env.EvalList(ctx, head)
}

// Check reports the syntax problems in src without running it.
func Check(src string) []error {
	return compiler.Check(src)
}

// Close releases the environment.
func (i *Interpreter) Close() {
	i.env.Close()
}
