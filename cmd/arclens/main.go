// ABOUTME: arclens command that drives the ownership scenarios against a store
// ABOUTME: Prints finalizer narration, audit verdicts and optional snapshot dumps

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prateek/arclens"
	"github.com/prateek/arclens/audit"
	"github.com/prateek/arclens/config"
	"github.com/prateek/arclens/dump"
	"github.com/prateek/arclens/internal/demo"
	"github.com/prateek/arclens/store"
)

var errLeaked = errors.New("leaked cycles found")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "arclens: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	scenario   string
	dump       bool
	format     string
	strict     bool
	verbose    bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("arclens", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to arclens.yaml (default: ./"+config.FileName+" if present)")
	fs.StringVar(&opts.scenario, "scenario", "all", "scenario to run: "+strings.Join(scenarioNames(), ", ")+" or all")
	fs.BoolVar(&opts.dump, "dump", false, "write a snapshot dump of each scenario's store before cleanup")
	fs.StringVar(&opts.format, "format", "", "dump format: json or yaml (default from config)")
	fs.BoolVar(&opts.strict, "strict", false, "exit non-zero if any scenario leaks")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging with stack traces")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: arclens [flags]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return &opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "arclens version %s\n", arclens.Version)
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Verbose = true
	}
	if opts.format != "" {
		cfg.Dump.Format = opts.format
	}
	format, err := dump.ParseFormat(cfg.Dump.Format)
	if err != nil {
		return err
	}

	scenarios, err := selectScenarios(opts.scenario)
	if err != nil {
		return err
	}

	logger := cfg.Logger(stderr)
	leaked := false
	for _, sc := range scenarios {
		s := store.New(
			store.WithName(cfg.Store.Name+"/"+sc.Name),
			store.WithLogger(logger),
			store.WithErrorHandler(&store.LogHandler{Logger: logger, Verbose: cfg.Log.Verbose}),
		)

		fmt.Fprintf(stdout, "== %s: %s\n", sc.Name, sc.Description)
		result, err := sc.Run(s, stdout)
		if err != nil {
			return err
		}

		auditor := audit.New(s, audit.WithLogger(logger))
		report, err := auditor.Audit(ctx, result.Roots)
		if err != nil {
			return errors.Join(err, result.Close())
		}
		printReport(stdout, report, auditor, cfg.Audit.MaxPaths)
		leaked = leaked || report.Leaked()

		if opts.dump {
			doc := dump.FromGraph(auditor.Graph(result.Roots))
			doc.Store = s.Name()
			if err := dump.Encode(stdout, format, doc); err != nil {
				return errors.Join(err, result.Close())
			}
		}

		if err := result.Close(); err != nil {
			return err
		}
		if stats := s.Stats(); stats.ContractViolations > 0 {
			return fmt.Errorf("scenario %s: %d contract violations", sc.Name, stats.ContractViolations)
		}
		fmt.Fprintln(stdout)
	}

	if leaked && opts.strict {
		return errLeaked
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOptional(".")
}

func selectScenarios(name string) ([]demo.Scenario, error) {
	if name == "all" {
		return demo.Scenarios(), nil
	}
	sc, ok := demo.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (want %s or all)", name, strings.Join(scenarioNames(), ", "))
	}
	return []demo.Scenario{sc}, nil
}

func scenarioNames() []string {
	var names []string
	for _, sc := range demo.Scenarios() {
		names = append(names, sc.Name)
	}
	return names
}

func printReport(w io.Writer, report *audit.Report, auditor *audit.Auditor, maxPaths int) {
	if !report.Leaked() {
		fmt.Fprintf(w, "audit: no leaks (%d live, %d tracked)\n", report.Live, report.Tracked)
	}
	for _, c := range report.Cycles {
		parts := make([]string, len(c))
		for i, id := range c {
			parts[i] = fmt.Sprintf("%d (%s)", id, report.Types[id])
		}
		fmt.Fprintf(w, "audit: leaked cycle %s\n", strings.Join(parts, " <-> "))
	}

	var members []store.SlotID
	for _, c := range report.Cycles {
		members = append(members, c...)
	}
	for _, id := range report.Stranded {
		fmt.Fprintf(w, "audit: stranded %d (%s)\n", id, report.Types[id])
		for _, path := range auditor.WhyAlive(id, members, maxPaths) {
			fmt.Fprintf(w, "  owned via %v\n", path)
		}
	}

	for _, root := range report.Roots {
		if ids := auditor.WouldFinalize(root); len(ids) > 0 {
			fmt.Fprintf(w, "audit: dropping root %d would finalize %v\n", root, ids)
		}
	}
}
