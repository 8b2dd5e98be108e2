package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/robert-at-pretension-io/hdlgen/internal/config"
	"github.com/robert-at-pretension-io/hdlgen/internal/designs"
	"github.com/robert-at-pretension-io/hdlgen/internal/facts"
	"github.com/robert-at-pretension-io/hdlgen/internal/pipeline"
	"github.com/robert-at-pretension-io/hdlgen/internal/policy"
)

var (
	initCommand = cli.Command{
		Action:    runInit,
		Name:      "init",
		Usage:     "Create a configuration file and a sample vendor descriptor",
		ArgsUsage: "[hdlgen.json|hdlgen.toml]",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "force", Usage: "overwrite existing files"},
		},
	}
	listCommand = cli.Command{
		Action: runList,
		Name:   "list",
		Usage:  "List the registered designs",
	}
	buildCommand = cli.Command{
		Action:    runBuild,
		Name:      "build",
		Usage:     "Compile designs to Verilog",
		ArgsUsage: "[design...]",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "out, o", Usage: "output directory (overrides config)"},
			cli.BoolFlag{Name: "json", Usage: "print the build report as JSON"},
			cli.BoolFlag{Name: "verbose, v", Usage: "print generator trace and phase timings"},
			cli.BoolFlag{Name: "split", Usage: "write one file per module"},
			cli.BoolFlag{Name: "dry-run", Usage: "compile and check without writing"},
			cli.BoolFlag{Name: "timing", Usage: "write phase timings to timing.jsonl"},
			cli.BoolFlag{Name: "clear-policy-cache", Usage: "re-evaluate design rules instead of reusing the cached result"},
		},
		Description: `The build command compiles the named designs, or every configured
design when none are named, and writes one Verilog file per design.`,
	}
	factsCommand = cli.Command{
		Action:    runFacts,
		Name:      "facts",
		Usage:     "Print the fact tables of a design as JSON",
		ArgsUsage: "<design>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "output, o", Usage: "write facts JSON to file (default: stdout)"},
			cli.StringFlag{Name: "delta-from", Usage: "previous facts JSON to compute delta from"},
			cli.StringFlag{Name: "delta-out", Usage: "write delta JSON to file (requires --delta-from)"},
			cli.StringFlag{Name: "module", Usage: "only facts of this module and the modules below it"},
		},
	}
	lintCommand = cli.Command{
		Action:    runLint,
		Name:      "lint",
		Usage:     "Check designs against the design rules",
		ArgsUsage: "[design...]",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "json", Usage: "print violations as JSON"},
		},
	}
	statsCommand = cli.Command{
		Action:    runStats,
		Name:      "stats",
		Usage:     "Show per-module statistics of a design",
		ArgsUsage: "<design>",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "impact", Usage: "also list the modules that instantiate this module"},
		},
	}
)

const sampleDescriptor = `{
  "name": "IOBUF",
  "parameters": {
    "IOSTANDARD": "LVCMOS33",
    "DRIVE": {"value": 12, "width": 4}
  },
  "inputs": {"I": 1, "T": 1},
  "outputs": {"O": 1},
  "inouts": {"IO": 1}
}
`

func rootPath(ctx *cli.Context) string {
	root := ctx.GlobalString("root")
	if root == "" {
		root = "."
	}
	return root
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	if path := ctx.GlobalString("config"); path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.Load(rootPath(ctx))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runInit(ctx *cli.Context) error {
	root := rootPath(ctx)
	configPath := filepath.Join(root, "hdlgen.json")
	if ctx.NArg() > 0 {
		configPath = filepath.Join(root, ctx.Args().Get(0))
	}
	descriptorPath := filepath.Join(root, "vendor", "iobuf.json")

	force := ctx.Bool("force")
	for _, path := range []string{configPath, descriptorPath} {
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(descriptorPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(descriptorPath, []byte(sampleDescriptor), 0644); err != nil {
		return fmt.Errorf("creating vendor descriptor: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Printf("Created %s\n", descriptorPath)
	fmt.Println("\nEdit the config to choose:")
	fmt.Println("  - Designs to build and the output directory")
	fmt.Println("  - Vendor descriptor patterns")
	fmt.Println("  - Design rule severities")
	return nil
}

func runList(ctx *cli.Context) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Design", "Vendor cores", "Description"})
	for _, name := range designs.Names() {
		d, _ := designs.Lookup(name)
		table.Append([]string{d.Name, strings.Join(d.Vendor, ", "), d.Description})
	}
	table.Render()
	return nil
}

func newPipeline(ctx *cli.Context) (*pipeline.Pipeline, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if out := ctx.String("out"); out != "" {
		cfg.Output.Dir = out
	}
	if ctx.Bool("split") {
		cfg.Output.Split = true
	}
	p := pipeline.NewWithConfig(cfg)
	p.Verbose = ctx.Bool("verbose")
	p.JSONOutput = ctx.Bool("json")
	p.DryRun = ctx.Bool("dry-run")
	p.Timing = ctx.Bool("timing")
	return p, nil
}

func runBuild(ctx *cli.Context) error {
	p, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	if ctx.Bool("clear-policy-cache") {
		if err := pipeline.ClearPolicyCache(p.Config.CacheDir(rootPath(ctx))); err != nil {
			return err
		}
	}
	report, runErr := p.Run(context.Background(), rootPath(ctx), ctx.Args())
	if report == nil {
		return runErr
	}

	if p.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, d := range report.Designs {
			printViolations(d.Violations)
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.Summary.Errors > 0 {
		return fmt.Errorf("%d design rule errors", report.Summary.Errors)
	}
	return nil
}

// checkDesigns compiles without writing and returns the report.
func checkDesigns(ctx *cli.Context, names []string) (*pipeline.Report, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	p := pipeline.NewWithConfig(cfg)
	p.JSONOutput = true
	p.DryRun = true
	return p.Run(context.Background(), rootPath(ctx), names)
}

func singleDesign(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one design name, got %d", ctx.NArg())
	}
	return ctx.Args().Get(0), nil
}

func runFacts(ctx *cli.Context) error {
	name, err := singleDesign(ctx)
	if err != nil {
		return err
	}
	deltaFrom, deltaOut := ctx.String("delta-from"), ctx.String("delta-out")
	if (deltaFrom == "") != (deltaOut == "") {
		return fmt.Errorf("--delta-from and --delta-out must be used together")
	}

	report, err := checkDesigns(ctx, []string{name})
	if err != nil {
		return err
	}
	tables := report.Tables
	var keep map[string]bool
	if module := ctx.String("module"); module != "" {
		res := report.Results[name]
		if res.Module(module) == nil {
			return fmt.Errorf("design %s has no module %s", name, module)
		}
		below := facts.ComputeImpact(module, facts.BuildHierarchy(res))
		keep = map[string]bool{module: true}
		for _, level := range below.Levels {
			for _, m := range level {
				keep[m] = true
			}
		}
		tables = facts.FilterTablesByModules(tables, keep)
	}

	if output := ctx.String("output"); output != "" {
		if err := writeJSON(output, tables); err != nil {
			return fmt.Errorf("writing facts: %w", err)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tables); err != nil {
			return fmt.Errorf("encoding facts: %w", err)
		}
	}

	if deltaFrom != "" {
		prev, err := readTables(deltaFrom)
		if err != nil {
			return fmt.Errorf("reading delta-from: %w", err)
		}
		delta := facts.ComputeDelta(prev, report.Tables)
		if keep != nil {
			delta = facts.FilterDeltaByModules(delta, keep)
		}
		if err := writeJSON(deltaOut, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
	}
	return nil
}

func runLint(ctx *cli.Context) error {
	report, runErr := checkDesigns(ctx, ctx.Args())
	if report == nil {
		return runErr
	}

	var all []policy.Violation
	for _, d := range report.Designs {
		all = append(all, d.Violations...)
	}
	if ctx.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(all); err != nil {
			return err
		}
	} else {
		printViolations(all)
		summary := policy.Summarize(all)
		fmt.Printf("%d errors, %d warnings, %d info\n", summary.Errors, summary.Warnings, summary.Info)
	}
	if runErr != nil {
		return runErr
	}
	if report.Summary.Errors > 0 {
		return fmt.Errorf("%d design rule errors", report.Summary.Errors)
	}
	return nil
}

func runStats(ctx *cli.Context) error {
	name, err := singleDesign(ctx)
	if err != nil {
		return err
	}
	report, err := checkDesigns(ctx, []string{name})
	if err != nil {
		return err
	}
	res := report.Results[name]

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Module", "Ports", "Internals", "Memories", "Processes", "Instances", "Drivers", "Hoisted"})
	for _, m := range res.Modules {
		table.Append([]string{
			m.Name,
			strconv.Itoa(len(m.Ports)),
			strconv.Itoa(len(m.Internals)),
			strconv.Itoa(len(m.Memories)),
			strconv.Itoa(len(m.Processes)),
			strconv.Itoa(len(m.Instances)),
			strconv.Itoa(len(m.Drivers)),
			strconv.Itoa(len(m.Hoisted)),
		})
	}
	table.Render()

	if module := ctx.String("impact"); module != "" {
		if res.Module(module) == nil {
			return fmt.Errorf("design %s has no module %s", name, module)
		}
		users := facts.BuildHierarchy(res).Users()
		fmt.Println("\nRegenerate when it changes:")
		fmt.Print(facts.FormatImpactReport(facts.ComputeImpact(module, users)))
	}
	return nil
}

func printViolations(violations []policy.Violation) {
	errorColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow)
	infoColor := color.New(color.FgCyan)
	for _, v := range violations {
		label := infoColor.Sprint("info")
		switch v.Severity {
		case "error":
			label = errorColor.Sprint("error")
		case "warning":
			label = warnColor.Sprint("warning")
		}
		fmt.Printf("%s/%s: %s [%s] %s\n", v.Design, v.Module, label, v.Rule, v.Message)
	}
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
