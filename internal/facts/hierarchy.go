package facts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/hdlgen/internal/verilog"
)

// Hierarchy maps a module to the modules it instantiates. Vendor cores are
// leaves and are not listed.
type Hierarchy map[string]map[string]bool

// BuildHierarchy collects the instantiation edges of a compiled design.
func BuildHierarchy(res *verilog.Result) Hierarchy {
	h := make(Hierarchy)
	for _, m := range res.Modules {
		if h[m.Name] == nil {
			h[m.Name] = make(map[string]bool)
		}
		for _, inst := range m.Instances {
			if inst.Vendor || inst.Module == m.Name {
				continue
			}
			h[m.Name][inst.Module] = true
		}
	}
	return h
}

// Users inverts the hierarchy: for every module, the modules that instantiate it.
func (h Hierarchy) Users() Hierarchy {
	users := make(Hierarchy)
	for parent, children := range h {
		for child := range children {
			if users[child] == nil {
				users[child] = make(map[string]bool)
			}
			users[child][parent] = true
		}
	}
	return users
}

// ImpactReport lists, level by level, the modules reachable from Root.
type ImpactReport struct {
	Root   string
	Levels [][]string
}

// ComputeImpact walks edges breadth first from root. Walking Users() answers
// "which parents must be regenerated when root changes".
func ComputeImpact(root string, edges Hierarchy) ImpactReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, m := range frontier {
			for dep := range edges[m] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return ImpactReport{Root: root, Levels: levels}
}

// ModuleLevels returns each module's depth below top (top is level 0).
func ModuleLevels(top string, h Hierarchy) map[string]int {
	levels := map[string]int{top: 0}
	report := ComputeImpact(top, h)
	for i, level := range report.Levels {
		for _, m := range level {
			levels[m] = i + 1
		}
	}
	return levels
}

// FormatImpactReport renders a report the way the CLI prints it.
func FormatImpactReport(report ImpactReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", report.Root))
	for i, level := range report.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}
