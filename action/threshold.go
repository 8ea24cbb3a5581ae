package action

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/mohitkumar/govflow/governance"
	"github.com/mohitkumar/govflow/util"
	"github.com/oliveagle/jsonpath"
)

// ScriptRule is a javascript expression evaluated with the metric snapshot
// bound to $. It passes when the expression is truthy.
type ScriptRule struct {
	Name       string
	Expression string
}

// ThresholdRules decides whether an evaluation metric snapshot passes.
// Ceilings maps a jsonpath into the snapshot to the highest acceptable value.
type ThresholdRules struct {
	Ceilings map[string]float64
	Scripts  []ScriptRule
	programs []*goja.Program
}

type Breach struct {
	Metric  string `json:"metric"`
	Reason  string `json:"reason"`
	Value   any    `json:"value,omitempty"`
	Ceiling any    `json:"ceiling,omitempty"`
}

func DefaultCeilings() map[string]float64 {
	return map[string]float64{"toxicity": 0.07}
}

func NewThresholdRules(ceilings map[string]float64, scripts []ScriptRule) (*ThresholdRules, error) {
	r := &ThresholdRules{Ceilings: ceilings, Scripts: scripts}
	for path := range ceilings {
		if _, err := jsonpath.Compile(jsonpathOf(path)); err != nil {
			return nil, fmt.Errorf("invalid metric path %s: %w", path, err)
		}
	}
	for _, s := range scripts {
		if strings.TrimSpace(s.Expression) == "" {
			return nil, fmt.Errorf("rule %s, expression can not be empty", s.Name)
		}
		prog, err := goja.Compile(s.Name, s.Expression, false)
		if err != nil {
			return nil, fmt.Errorf("rule %s does not compile: %w", s.Name, err)
		}
		r.programs = append(r.programs, prog)
	}
	return r, nil
}

func jsonpathOf(path string) string {
	if strings.HasPrefix(path, "$") {
		return path
	}
	return "$." + path
}

// Evaluate returns every breach, ordered so the result is stable: required
// evaluations without a result first, then ceilings by path, then scripts.
func (r *ThresholdRules) Evaluate(metrics map[string]any, requiredEvaluations []string) []Breach {
	var breaches []Breach
	for _, ev := range requiredEvaluations {
		key := governance.MetricKey(ev)
		if _, ok := metrics[key]; !ok {
			breaches = append(breaches, Breach{Metric: key, Reason: "missing"})
			continue
		}
		if s, ok := metrics[key].(string); ok && strings.EqualFold(s, "FAIL") {
			breaches = append(breaches, Breach{Metric: key, Reason: "failed", Value: s})
		}
	}
	paths := make([]string, 0, len(r.Ceilings))
	for p := range r.Ceilings {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, path := range paths {
		ceiling := r.Ceilings[path]
		value, ok := util.LookupPath(metrics, path)
		if !ok {
			continue
		}
		f, err := util.ToFloat(value)
		if err != nil {
			breaches = append(breaches, Breach{Metric: path, Reason: "not_numeric", Value: value, Ceiling: ceiling})
			continue
		}
		if f > ceiling {
			breaches = append(breaches, Breach{Metric: path, Reason: "above_ceiling", Value: f, Ceiling: ceiling})
		}
	}
	for i, prog := range r.programs {
		ok, err := runScript(prog, metrics)
		name := r.Scripts[i].Name
		if err != nil {
			breaches = append(breaches, Breach{Metric: name, Reason: "script_error: " + err.Error()})
			continue
		}
		if !ok {
			breaches = append(breaches, Breach{Metric: name, Reason: "script_rule"})
		}
	}
	return breaches
}

func runScript(prog *goja.Program, metrics map[string]any) (bool, error) {
	data, err := json.Marshal(metrics)
	if err != nil {
		return false, err
	}
	vm := goja.New()
	if _, err := vm.RunString(fmt.Sprintf("var $ = %s;", data)); err != nil {
		return false, err
	}
	val, err := vm.RunProgram(prog)
	if err != nil {
		return false, fmt.Errorf("error executing javascript %w", err)
	}
	return val.ToBoolean(), nil
}

func breachesToAny(breaches []Breach) []any {
	out := make([]any, len(breaches))
	for i, b := range breaches {
		m := map[string]any{"metric": b.Metric, "reason": b.Reason}
		if b.Value != nil {
			m["value"] = b.Value
		}
		if b.Ceiling != nil {
			m["ceiling"] = b.Ceiling
		}
		out[i] = m
	}
	return out
}
