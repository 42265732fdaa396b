// jbi runs jbasic programs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"
	"golang.org/x/term"

	"github.com/chazu/jbasic"
	"github.com/chazu/jbasic/manifest"
	"github.com/chazu/jbasic/server"
	"github.com/chazu/jbasic/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("jbasic.cli")

// errUsage reports bad command-line arguments; usage has been printed.
var errUsage = errors.New("usage")

type options struct {
	debug    bool
	snapshot string
	config   string
	maxSteps int
	verbose  int
	serve    bool
	port     int
	lsp      bool
	file     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	color := term.IsTerminal(int(os.Stderr.Fd()))
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, color)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, color bool) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	m, err := loadManifest(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	commonlog.Configure(m.Log.Verbosity, m.LogPath())

	interp, err := jbasic.New(m, jbasic.WithOutput(stdout), jbasic.WithInput(stdin))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer interp.Close()

	switch {
	case opts.lsp:
		err = server.NewLSP(interp).Run()
	case opts.serve:
		err = serve(ctx, interp, opts)
	default:
		err = runFile(ctx, interp, opts, stderr, color)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("jbi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.debug, "debug", false, "Dump the token list and symbol table after the run")
	fs.StringVar(&opts.snapshot, "snapshot", "", "Write a CBOR snapshot of the environment to `PATH` after the run")
	fs.StringVar(&opts.config, "config", ".", "Directory where the search for "+manifest.FileName+" starts")
	fs.IntVar(&opts.maxSteps, "max-steps", -1, "Loop iteration budget per run, 0 for unbounded (overrides run.max-steps)")
	fs.IntVar(&opts.verbose, "v", -1, "Log verbosity, 0 for none (overrides log.verbosity)")
	fs.BoolVar(&opts.serve, "serve", false, "Start the evaluation service (Connect, gRPC and gRPC-Web)")
	fs.IntVar(&opts.port, "port", 0, "Evaluation service port (overrides server.port)")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: jbi [options] FILE\n\n")
		fmt.Fprintf(stderr, "Runs a jbasic program. Settings are read from the nearest %s.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  jbi prog.bas                     # Run prog.bas\n")
		fmt.Fprintf(stderr, "  jbi -debug -max-steps 1000 prog.bas\n")
		fmt.Fprintf(stderr, "  jbi -serve -port 8080            # Serve evaluations on :8080\n")
		fmt.Fprintf(stderr, "  jbi -serve prog.bas              # Run prog.bas, then serve its environment\n")
		fmt.Fprintf(stderr, "  jbi -lsp                         # Language server for editors\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case fs.NArg() > 1:
		fs.Usage()
		return nil, errUsage
	case fs.NArg() == 1:
		opts.file = fs.Arg(0)
	case !opts.serve && !opts.lsp:
		fs.Usage()
		return nil, errUsage
	}
	return opts, nil
}

// loadManifest finds the configuration and applies flag overrides.
func loadManifest(opts *options) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(opts.config)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	if opts.maxSteps >= 0 {
		m.Run.MaxSteps = opts.maxSteps
	}
	if opts.verbose >= 0 {
		m.Log.Verbosity = opts.verbose
	}
	if opts.port > 0 {
		m.Server.Port = opts.port
	}
	return m, nil
}

// runFile loads and runs opts.file, then writes the requested dumps. The
// dumps are written even when the run fails.
func runFile(ctx context.Context, interp *jbasic.Interpreter, opts *options, stderr io.Writer, color bool) error {
	src, err := os.ReadFile(opts.file)
	if err != nil {
		return err
	}
	if err := interp.Load(string(src)); err != nil {
		return fmt.Errorf("%s: %w", opts.file, err)
	}
	log.Infof("running %s", opts.file)

	runErr := interp.Run(ctx)
	if runErr != nil {
		runErr = fmt.Errorf("%s: %w", opts.file, runErr)
	}

	env := interp.Env()
	if opts.debug {
		fmt.Fprintln(stderr, "--- tokens ---")
		if err := env.DumpTokens(stderr, env.Program(), color); err != nil {
			return err
		}
		fmt.Fprintln(stderr, "--- symbols ---")
		if err := env.DumpSymbols(stderr, color); err != nil {
			return err
		}
	}
	if opts.snapshot != "" {
		if err := writeSnapshot(env, opts.snapshot); err != nil {
			return err
		}
	}
	return runErr
}

func writeSnapshot(env *vm.Env, path string) error {
	data, err := vm.EncodeSnapshot(env.Snapshot())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	log.Infof("snapshot written to %s (%d bytes)", path, len(data))
	return nil
}

// serve optionally runs opts.file, then serves the environment until ctx
// is cancelled.
func serve(ctx context.Context, interp *jbasic.Interpreter, opts *options) error {
	if opts.file != "" {
		src, err := os.ReadFile(opts.file)
		if err != nil {
			return err
		}
		if err := interp.Exec(ctx, string(src)); err != nil {
			return fmt.Errorf("%s: %w", opts.file, err)
		}
	}

	srv := server.New(interp)
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()
	return srv.ListenAndServe(fmt.Sprintf(":%d", interp.Manifest().Server.Port))
}
