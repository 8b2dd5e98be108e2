// Package pipeline builds a set of registered designs: it loads vendor
// descriptors, compiles the designs concurrently, checks their facts and
// design rules, and writes the Verilog through a content-hash cache.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/hdlgen/internal/config"
	"github.com/robert-at-pretension-io/hdlgen/internal/designs"
	"github.com/robert-at-pretension-io/hdlgen/internal/facts"
	"github.com/robert-at-pretension-io/hdlgen/internal/policy"
	"github.com/robert-at-pretension-io/hdlgen/internal/validator"
	"github.com/robert-at-pretension-io/hdlgen/internal/vendor"
	"github.com/robert-at-pretension-io/hdlgen/internal/verilog"
)

// Pipeline orchestrates one build of several designs.
type Pipeline struct {
	// Configuration loaded from hdlgen.json / hdlgen.toml
	Config *config.Config

	// Verbose output (per-design progress, generator trace, phase timings)
	Verbose bool

	// JSON output mode suppresses all text output
	JSONOutput bool

	// DryRun compiles and checks without writing outputs
	DryRun bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// Out receives text output; defaults to stdout
	Out io.Writer

	// Optional design lookup (for tests)
	lookup func(name string) (*designs.Design, bool)

	// Descriptor loader shared by every Run so unchanged descriptors are
	// parsed once per process.
	loaderMu sync.Mutex
	loader   *vendor.Loader
}

// Report is the outcome of a build. It is what `hdlgen build --json` prints.
type Report struct {
	Designs []DesignReport `json:"designs"`
	Summary Summary        `json:"summary"`

	// Tables holds the merged facts of every design that compiled.
	Tables facts.Tables `json:"-"`
	// Delta is the change in facts since the previous cached build.
	Delta facts.Delta `json:"-"`
	// Results holds the compile result per design name.
	Results map[string]*verilog.Result `json:"-"`
	// PolicyCached is set when the rule result came from the policy cache.
	PolicyCached bool `json:"-"`
}

// DesignReport is the outcome for one design.
type DesignReport struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	Top        string             `json:"top,omitempty"`
	Modules    int                `json:"modules"`
	Outputs    []string           `json:"outputs"`
	Unchanged  int                `json:"unchanged"`
	Error      string             `json:"error,omitempty"`
	Violations []policy.Violation `json:"violations"`
}

// Summary provides aggregate counts
type Summary struct {
	Built     int `json:"built"`
	Failed    int `json:"failed"`
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
	Warnings  int `json:"warnings"`
}

// New creates a pipeline with default configuration
func New() *Pipeline {
	return &Pipeline{
		Config: config.DefaultConfig(),
		Out:    os.Stdout,
	}
}

// NewWithConfig creates a pipeline with the given configuration
func NewWithConfig(cfg *config.Config) *Pipeline {
	p := New()
	p.Config = cfg
	return p
}

func (p *Pipeline) printf(format string, args ...interface{}) {
	if p.JSONOutput {
		return
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

func (p *Pipeline) findDesign(name string) (*designs.Design, bool) {
	if p.lookup != nil {
		return p.lookup(name)
	}
	return designs.Lookup(name)
}

// SelectDesigns returns the designs to build: names if given, else the
// configured designs, else every registered design.
func (p *Pipeline) SelectDesigns(names []string) ([]*designs.Design, error) {
	if len(names) == 0 {
		for _, name := range p.Config.Designs {
			if _, ok := p.findDesign(name); !ok {
				return nil, fmt.Errorf("configured design %q is not registered", name)
			}
		}
		for _, name := range designs.Names() {
			if p.Config.WantsDesign(name) {
				names = append(names, name)
			}
		}
	}
	var selected []*designs.Design
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		d, ok := p.findDesign(name)
		if !ok {
			return nil, fmt.Errorf("unknown design %q (registered: %s)", name, strings.Join(designs.Names(), ", "))
		}
		selected = append(selected, d)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Name < selected[j].Name })
	return selected, nil
}

// LoadVendor loads every configured vendor descriptor under rootPath.
func (p *Pipeline) LoadVendor(rootPath string) (*vendor.Catalog, error) {
	paths, err := p.Config.ResolveDescriptors(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve vendor descriptors: %w", err)
	}
	loader, err := p.vendorLoader()
	if err != nil {
		return nil, err
	}
	return loader.LoadAll(paths)
}

func (p *Pipeline) vendorLoader() (*vendor.Loader, error) {
	p.loaderMu.Lock()
	defer p.loaderMu.Unlock()
	if p.loader == nil {
		loader, err := vendor.NewLoader()
		if err != nil {
			return nil, err
		}
		p.loader = loader
	}
	return p.loader, nil
}

type compiled struct {
	design *designs.Design
	result *verilog.Result
	trace  string
	err    error
}

// Run builds the named designs under rootPath. Design failures are recorded
// in the report; the returned error lists everything that went wrong.
func (p *Pipeline) Run(ctx context.Context, rootPath string, names []string) (*Report, error) {
	runStart := time.Now()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}

	// 0. Load configuration if not already loaded
	if p.Config == nil {
		cfg, err := config.Load(rootPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		p.Config = cfg
	}

	timingPath := p.resolveTimingPath(rootPath)
	timing := openTimingLog(runStart, timingPath)
	if err := timing.Err(); err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()
	endTotal := timing.stage("total")

	// 1. Resolve designs and vendor cores
	endStage := timing.stage("resolve")
	selected, err := p.SelectDesigns(names)
	if err != nil {
		return nil, err
	}
	catalog, err := p.LoadVendor(rootPath)
	if err != nil {
		return nil, err
	}
	p.printf("Building %d designs (%d vendor cores)\n", len(selected), len(catalog.Names()))
	resolveDuration := endStage("")

	// 2. Compile concurrently; every design gets its own generator run
	endStage = timing.stage("compile")
	results := make([]compiled, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	limit := p.Config.Build.MaxParallel
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g.SetLimit(limit)
	for i, d := range selected {
		i, d := i, d
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			endDesign := timing.design("compile", d.Name)
			results[i] = p.compile(d, catalog)
			status := "ok"
			if results[i].err != nil {
				status = "failed"
			}
			endDesign(status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	compileDuration := endStage("")

	report := &Report{Designs: []DesignReport{}, Results: make(map[string]*verilog.Result)}
	var tables []facts.Tables
	for _, c := range results {
		dr := DesignReport{Name: c.design.Name, Status: "ok", Outputs: []string{}, Violations: []policy.Violation{}}
		if p.Verbose && c.trace != "" {
			p.printf("%s", c.trace)
		}
		if c.err != nil {
			dr.Status = "failed"
			dr.Error = c.err.Error()
			report.Summary.Failed++
			recordPipelineErr(fmt.Errorf("%s: %w", c.design.Name, c.err))
			p.printf("  %s: FAILED: %v\n", c.design.Name, c.err)
		} else {
			dr.Top = c.result.Top
			dr.Modules = len(c.result.Modules)
			report.Summary.Built++
			report.Results[c.design.Name] = c.result
			tables = append(tables, facts.BuildTables(c.design.Name, c.result))
			p.printf("  %s: %d modules\n", c.design.Name, dr.Modules)
		}
		report.Designs = append(report.Designs, dr)
	}
	report.Tables = facts.Merge(tables...)

	// 3. Validate facts against the CUE contract
	endStage = timing.stage("facts")
	factsValidator, err := validator.NewFactsValidator()
	if err != nil {
		return nil, err
	}
	if err := factsValidator.Validate(report.Tables); err != nil {
		recordPipelineErr(fmt.Errorf("facts contract violated: %w", err))
	}
	factsDuration := endStage("")

	// 4. Design rules
	endStage = timing.stage("policy")
	policyDir := p.Config.Policy.Dir
	if policyDir != "" && !filepath.IsAbs(policyDir) {
		policyDir = filepath.Join(rootPath, policyDir)
	}
	engine, err := policy.New(policyDir)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	cacheDir := p.Config.CacheDir(rootPath)
	policyCacheDir := ""
	if p.Config.CacheEnabled() && !p.DryRun {
		policyCacheDir = cacheDir
	}
	policyResult, cached, err := evaluatePolicies(engine, report.Tables, policyCacheDir)
	if err != nil {
		if policyResult == nil {
			return nil, fmt.Errorf("evaluate policies: %w", err)
		}
		recordPipelineErr(err)
	}
	report.PolicyCached = cached
	policyResult = policy.ApplyConfig(policyResult, p.Config)
	applyPolicyResult(report, policyResult)
	policyDuration := endStage("")

	// 5. Write outputs through the cache
	endStage = timing.stage("write")
	var cache *outputCache
	if p.Config.CacheEnabled() && !p.DryRun {
		cache = newOutputCache(cacheDir)
		if err := cache.Load(); err != nil {
			recordPipelineErr(fmt.Errorf("cache disabled: %w", err))
			cache = nil
		}
	}
	if !p.DryRun {
		outDir := p.Config.OutputDir(rootPath)
		for i := range report.Designs {
			dr := &report.Designs[i]
			res, ok := report.Results[dr.Name]
			if !ok {
				continue
			}
			for _, out := range p.outputs(outDir, dr.Name, res) {
				wrote, err := writeOutput(cache, dr.Name, out.path, out.data)
				if err != nil {
					recordPipelineErr(fmt.Errorf("%s: %w", dr.Name, err))
					continue
				}
				dr.Outputs = append(dr.Outputs, out.path)
				if wrote {
					report.Summary.Written++
				} else {
					dr.Unchanged++
					report.Summary.Unchanged++
				}
			}
		}
	}
	writeDuration := endStage("")

	// 6. Fact delta against the previous build
	if p.Config.CacheEnabled() && !p.DryRun {
		if prev, ok, err := LoadPreviousTables(cacheDir); err != nil {
			recordPipelineErr(err)
		} else if ok {
			report.Delta = facts.ComputeDelta(prev, report.Tables)
		} else {
			report.Delta = facts.ComputeDelta(facts.Tables{}, report.Tables)
		}
		if err := saveFactTablesCache(cacheDir, report.Tables); err != nil {
			recordPipelineErr(err)
		}
		if cache != nil {
			if err := cache.Save(); err != nil {
				recordPipelineErr(fmt.Errorf("save cache: %w", err))
			}
		}
	}

	// 7. Validate the report we are about to hand out
	reportValidator, err := validator.NewReportValidator()
	if err != nil {
		return nil, err
	}
	if err := reportValidator.Validate(report); err != nil {
		recordPipelineErr(fmt.Errorf("report contract violated: %w", err))
	}

	if p.Verbose {
		p.printf("\n=== Phase Timing ===\n")
		p.printf("  resolve:     %s\n", formatDuration(resolveDuration))
		p.printf("  compile:     %s\n", formatDuration(compileDuration))
		p.printf("  facts:       %s\n", formatDuration(factsDuration))
		if report.PolicyCached {
			p.printf("  policy:      %s (cached)\n", formatDuration(policyDuration))
		} else {
			p.printf("  policy:      %s\n", formatDuration(policyDuration))
		}
		p.printf("  write:       %s\n", formatDuration(writeDuration))
		p.printf("  total:       %s\n", formatDuration(time.Since(runStart)))
		if timing.Enabled() {
			p.printf("  timing log:  %s\n", timingPath)
		}
		if !report.Delta.Empty() {
			p.printf("  facts delta: +%d -%d rows\n", report.Delta.Added.Len(), report.Delta.Removed.Len())
		}
	}
	p.printf("Built %d, failed %d, written %d, unchanged %d, %d errors, %d warnings\n",
		report.Summary.Built, report.Summary.Failed, report.Summary.Written,
		report.Summary.Unchanged, report.Summary.Errors, report.Summary.Warnings)
	endTotal("")

	if len(pipelineErrs) > 0 {
		return report, fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return report, nil
}

func (p *Pipeline) compile(d *designs.Design, catalog *vendor.Catalog) compiled {
	c := compiled{design: d}
	top, err := d.Build(catalog)
	if err != nil {
		c.err = err
		return c
	}
	var trace bytes.Buffer
	gen := verilog.New()
	if p.Verbose {
		gen.Trace = &trace
	}
	c.result, c.err = gen.Build(top)
	c.trace = trace.String()
	return c
}

type output struct {
	path string
	data []byte
}

// outputs lays out the files of one design: <design>.v, or with split
// output one <module>.v per module under <design>/.
func (p *Pipeline) outputs(outDir, design string, res *verilog.Result) []output {
	if !p.Config.Output.Split {
		return []output{{path: filepath.Join(outDir, design+".v"), data: []byte(res.Text)}}
	}
	outs := make([]output, 0, len(res.Modules))
	for _, m := range res.Modules {
		outs = append(outs, output{
			path: filepath.Join(outDir, design, m.Name+".v"),
			data: []byte(res.Header() + "\n" + m.Text),
		})
	}
	return outs
}

// writeOutput writes data to path unless the cache shows it is unchanged.
func writeOutput(cache *outputCache, design, path string, data []byte) (bool, error) {
	hash := hashBytes(data)
	if cache != nil && cache.Fresh(path, hash) {
		return false, nil
	}
	if err := writeFileAtomic(path, data); err != nil {
		return false, err
	}
	if cache != nil {
		cache.Put(path, design, hash)
	}
	return true, nil
}

func applyPolicyResult(report *Report, result *policy.Result) {
	if report == nil || result == nil {
		return
	}
	byDesign := make(map[string]int)
	for i, d := range report.Designs {
		byDesign[d.Name] = i
	}
	for _, v := range result.Violations {
		if i, ok := byDesign[v.Design]; ok {
			report.Designs[i].Violations = append(report.Designs[i].Violations, v)
		}
	}
	report.Summary.Errors = result.Summary.Errors
	report.Summary.Warnings = result.Summary.Warnings
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func envBool(key string) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return val == "1" || val == "true" || val == "yes" || val == "on"
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.2fm", d.Minutes())
	}
}
