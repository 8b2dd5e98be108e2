package policy

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/hdlgen/internal/config"
	"github.com/robert-at-pretension-io/hdlgen/internal/facts"
)

//go:embed rules/*.rego
var builtinRules embed.FS

const (
	violationsQuery = "data.hdlgen.rules.all_violations"
	summaryQuery    = "data.hdlgen.rules.summary"
)

// Engine evaluates design-rule policies against design facts
type Engine struct {
	queries     map[string]rego.PreparedEvalQuery
	fingerprint string
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Design   string `json:"design"`
	Module   string `json:"module"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// New creates a policy engine from the built-in rules plus every .rego file
// in extraDir. extraDir may be empty.
func New(extraDir string) (*Engine, error) {
	engine := &Engine{
		queries: make(map[string]rego.PreparedEvalQuery),
	}

	var modules []func(*rego.Rego)
	hasher := sha256.New()
	addModule := func(name string, content []byte) {
		hasher.Write([]byte(filepath.Base(name)))
		hasher.Write([]byte{0})
		hasher.Write(content)
		hasher.Write([]byte{0})
		modules = append(modules, rego.Module(name, string(content)))
	}
	builtin, err := fs.Glob(builtinRules, "rules/*.rego")
	if err != nil {
		return nil, fmt.Errorf("finding built-in policies: %w", err)
	}
	for _, f := range builtin {
		content, err := builtinRules.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		addModule(f, content)
	}

	if extraDir != "" {
		files, err := filepath.Glob(filepath.Join(extraDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding policy files: %w", err)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			addModule(f, content)
		}
	}
	engine.fingerprint = hex.EncodeToString(hasher.Sum(nil))

	for name, q := range map[string]string{"violations": violationsQuery, "summary": summaryQuery} {
		opts := append(append([]func(*rego.Rego){}, modules...), rego.Query(q))
		query, err := rego.New(opts...).PrepareForEval(context.Background())
		if err != nil {
			return nil, fmt.Errorf("preparing %s query: %w", name, err)
		}
		engine.queries[name] = query
	}

	return engine, nil
}

// Fingerprint is a hash over the names and contents of every loaded rule
// file. Results for equal tables are equal while it stays the same.
func (e *Engine) Fingerprint() string {
	return e.fingerprint
}

// Evaluate runs the policies against the fact tables
func (e *Engine) Evaluate(tables facts.Tables) (*Result, error) {
	ctx := context.Background()

	// Convert input to map for OPA
	inputMap, err := structToMap(tables)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	result := &Result{}

	rs, err := e.queries["violations"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating violations: %w", err)
	}

	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					Design:   getString(vmap, "design"),
					Module:   getString(vmap, "module"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	sortViolations(result.Violations)

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}

	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		smap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
		if ok {
			result.Summary = Summary{
				TotalViolations: getInt(smap, "total_violations"),
				Errors:          getInt(smap, "errors"),
				Warnings:        getInt(smap, "warnings"),
				Info:            getInt(smap, "info"),
			}
		}
	}

	return result, nil
}

// ApplyConfig drops rules configured "off", applies configured severities and
// recounts the summary.
func ApplyConfig(result *Result, cfg *config.Config) *Result {
	out := &Result{Violations: []Violation{}}
	for _, v := range result.Violations {
		if !cfg.IsRuleEnabled(v.Rule) {
			continue
		}
		v.Severity = cfg.GetRuleSeverity(v.Rule, v.Severity)
		out.Violations = append(out.Violations, v)
	}
	out.Summary = Summarize(out.Violations)
	return out
}

// Summarize counts violations by severity.
func Summarize(violations []Violation) Summary {
	s := Summary{TotalViolations: len(violations)}
	for _, v := range violations {
		switch v.Severity {
		case "error":
			s.Errors++
		case "warning":
			s.Warnings++
		case "info":
			s.Info++
		}
	}
	return s
}

func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.Design != b.Design {
			return a.Design < b.Design
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
