// Command z3trace dispatches Z3 trace logs to a statistics backend. It can
// analyze files from the command line or serve an HTTP API that records runs.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/smt-log-parser/internal/application/dispatcher"
	"github.com/garyjia/smt-log-parser/internal/application/service"
	"github.com/garyjia/smt-log-parser/internal/config"
	"github.com/garyjia/smt-log-parser/internal/diagnostics"
	"github.com/garyjia/smt-log-parser/internal/dump"
	httpapi "github.com/garyjia/smt-log-parser/internal/interfaces/http"
	"github.com/garyjia/smt-log-parser/internal/repository"
	"github.com/garyjia/smt-log-parser/internal/runner"
	"github.com/garyjia/smt-log-parser/pkg/database"
	"github.com/garyjia/smt-log-parser/pkg/utils"
)

// Version can be injected at build time via -ldflags
var Version = "dev"

const usage = `Usage: z3trace <command> [flags]

Commands:
  parse    analyze trace logs and print a report
  dump     print every event of a trace log
  serve    serve the trace analysis HTTP API
  version  print the version

Run "z3trace <command> --help" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "parse":
		return parseCmd(args[1:], stdin, stdout, stderr)
	case "dump":
		return dumpCmd(args[1:], stdin, stdout, stderr)
	case "serve":
		return serveCmd(args[1:], stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "z3trace %s\n", Version)
		return 0
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

// commonFlags registers the flags shared by every command
func commonFlags(fs *pflag.FlagSet) *string {
	configPath := fs.StringP("config", "c", "", "path to a YAML configuration file")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "console", "log format: json or console")
	fs.String("log-output", "stderr", "log output: stdout, stderr or a file path")
	fs.Bool("store", false, "record runs in the SQLite store")
	fs.String("db", "data/z3trace.db", "path of the SQLite store")
	fs.Int("max-line-bytes", 16<<20, "longest accepted trace line")
	fs.Int("diagnostic-sample", 20, "diagnostics kept in a report, 0 keeps all")
	fs.Int("top", 10, "quantifiers listed by instance count")
	fs.Bool("persist-diagnostics", true, "store diagnostics of recorded runs")
	fs.Bool("log-diagnostics", true, "log every diagnostic as a warning")
	return configPath
}

// app holds what every command builds from the configuration
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *database.DB
	service service.TraceService
}

func setup(fs *pflag.FlagSet, configPath string) (*app, error) {
	cfg, err := config.Load(configPath, fs)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	var runs service.RunStore
	var diags service.DiagnosticStore
	if cfg.Database.Enabled {
		db, err := database.New(database.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		a.db = db
		runs = repository.NewRunRepository(db.DB, logger)
		diags = repository.NewDiagnosticRepository(db.DB, logger)
	}

	var extra dispatcher.Reporter
	if cfg.Parser.LogDiagnostics {
		extra = diagnostics.NewZapReporter(logger)
	}

	a.service = service.NewTraceService(runs, diags, service.Options{
		MaxLineBytes:       cfg.Parser.MaxLineBytes,
		DiagnosticSample:   cfg.Parser.DiagnosticSample,
		PersistDiagnostics: cfg.Parser.PersistDiagnostics,
		TopQuantifiers:     cfg.Parser.TopQuantifiers,
		Reporter:           extra,
	}, logger)

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}

func parseCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("parse", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := commonFlags(fs)
	output := fs.StringP("output", "o", "text", "report format: text, json or yaml")
	jobs := fs.IntP("jobs", "j", 4, "traces analyzed in parallel")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: z3trace parse [flags] [trace.log ...]")
		fmt.Fprintln(stderr, "Reads standard input when no file, or \"-\", is given.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	switch *output {
	case "text", "json", "yaml":
	default:
		fmt.Fprintf(stderr, "unknown output format %q\n", *output)
		return 2
	}

	sources := fs.Args()
	if len(sources) == 0 {
		sources = []string{"-"}
	}
	if stdinCount(sources) > 1 {
		fmt.Fprintln(stderr, `standard input ("-") can be given only once`)
		return 2
	}

	a, err := setup(fs, *configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := analyzeAll(ctx, a, sources, stdin, *jobs)
	if err != nil {
		a.logger.Error("Trace analysis failed", zap.Error(err))
	}

	if werr := writeReports(stdout, *output, reports, len(sources) > 1); werr != nil {
		fmt.Fprintf(stderr, "failed to write report: %v\n", werr)
		return 1
	}
	if err != nil {
		return 1
	}
	return 0
}

// analyzeAll analyzes sources with at most jobs traces in flight. Each
// trace is independent: a failure is joined into the returned error and
// never stops the others. reports keeps the order of sources and holds the
// partial reports of failed traces.
func analyzeAll(ctx context.Context, a *app, sources []string, stdin io.Reader, jobs int) ([]*service.Report, error) {
	reports := make([]*service.Report, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, source := range sources {
		g.Go(func() error {
			reports[i], errs[i] = analyzeSource(ctx, a, source, stdin)
			return nil
		})
	}
	_ = g.Wait()

	// drop the slots of traces that never produced a report
	out := reports[:0]
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, errors.Join(errs...)
}

func analyzeSource(ctx context.Context, a *app, source string, stdin io.Reader) (*service.Report, error) {
	if source == "-" {
		return a.service.Analyze(ctx, "stdin", stdin)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()
	return a.service.Analyze(ctx, source, f)
}

func stdinCount(sources []string) int {
	n := 0
	for _, s := range sources {
		if s == "-" {
			n++
		}
	}
	return n
}

// dumpCmd streams the events of one trace to stdout. Rejected lines are
// counted and, with log-diagnostics, logged.
func dumpCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := commonFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: z3trace dump [flags] [trace.log]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "dump reads a single trace")
		return 2
	}

	a, err := setup(fs, *configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.close()

	r := stdin
	if source := fs.Arg(0); source != "" && source != "-" {
		f, err := os.Open(source)
		if err != nil {
			fmt.Fprintf(stderr, "failed to open trace: %v\n", err)
			return 1
		}
		defer f.Close()
		r = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(stdout)
	rejected := 0
	reporters := []dispatcher.Reporter{dispatcher.ReporterFunc(func(dispatcher.Diagnostic) { rejected++ })}
	if a.cfg.Parser.LogDiagnostics {
		reporters = append(reporters, diagnostics.NewZapReporter(a.logger))
	}
	d := dispatcher.NewDispatcher(dump.New(out), dispatcher.WithReporter(diagnostics.Multi(reporters...)))

	result, err := runner.Run(ctx, r, d, runner.Options{MaxLineBytes: a.cfg.Parser.MaxLineBytes})
	if ferr := out.Flush(); ferr != nil {
		fmt.Fprintf(stderr, "failed to write events: %v\n", ferr)
		return 1
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	a.logger.Info("Trace dumped",
		zap.Int("lines", result.Lines),
		zap.Int("events", d.Handler().Events()),
		zap.Int("diagnostics", rejected),
		zap.Bool("terminated", result.Terminated))
	return 0
}

func serveCmd(args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := commonFlags(fs)
	fs.String("host", "127.0.0.1", "listen host")
	fs.IntP("port", "p", 8080, "listen port")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	a, err := setup(fs, *configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.close()

	a.logger.Info("Starting z3trace server",
		zap.String("version", Version),
		zap.Bool("store", a.cfg.Database.Enabled),
		zap.Int("port", a.cfg.Server.Port))

	httpapi.Version = Version
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         a.cfg.Server.Host,
		Port:         a.cfg.Server.Port,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
	}, a.service, utils.NewKVLogger(a.logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("Server stopped with error", zap.Error(err))
		return 1
	}
	a.logger.Info("Server exited")
	return 0
}
