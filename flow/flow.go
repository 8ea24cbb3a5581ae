package flow

import (
	"fmt"

	"github.com/mohitkumar/govflow/action"
	"github.com/mohitkumar/govflow/model"
)

// Router picks the next node of a conditional edge. It must be pure and only
// return targets declared for the edge.
type Router func(state model.WorkflowState) (string, error)

type conditionalEdge struct {
	route   Router
	targets []string
}

// Flow is the static graph a run walks. Order is the declaration order of
// the nodes, used to merge fan-in deltas deterministically.
type Flow struct {
	Id          string
	Entry       string
	Actions     map[string]action.Action
	Order       []string
	Edges       map[string][]string
	Conditional map[string]conditionalEdge
	Terminal    map[string]model.RunStatus
}

func NewFlow(id string, entry string) *Flow {
	return &Flow{
		Id:          id,
		Entry:       entry,
		Actions:     make(map[string]action.Action),
		Edges:       make(map[string][]string),
		Conditional: make(map[string]conditionalEdge),
		Terminal:    make(map[string]model.RunStatus),
	}
}

func (f *Flow) AddAction(a action.Action) *Flow {
	if _, ok := f.Actions[a.GetName()]; !ok {
		f.Order = append(f.Order, a.GetName())
	}
	f.Actions[a.GetName()] = a
	return f
}

func (f *Flow) AddEdge(from string, to ...string) *Flow {
	f.Edges[from] = append(f.Edges[from], to...)
	return f
}

func (f *Flow) AddConditionalEdge(from string, route Router, targets ...string) *Flow {
	f.Conditional[from] = conditionalEdge{route: route, targets: targets}
	return f
}

func (f *Flow) SetTerminal(name string, status model.RunStatus) *Flow {
	f.Terminal[name] = status
	return f
}

func (f *Flow) Validate() error {
	if len(f.Id) == 0 {
		return fmt.Errorf("flow id can not be empty")
	}
	if _, ok := f.Actions[f.Entry]; !ok {
		return fmt.Errorf("flow %s, entry node %s not found", f.Id, f.Entry)
	}
	for name := range f.Terminal {
		if _, ok := f.Actions[name]; !ok {
			return fmt.Errorf("flow %s, terminal node %s not found", f.Id, name)
		}
		if len(f.Edges[name]) > 0 || f.Conditional[name].route != nil {
			return fmt.Errorf("flow %s, terminal node %s can not have outgoing edges", f.Id, name)
		}
	}
	if len(f.Terminal) == 0 {
		return fmt.Errorf("flow %s, at least one terminal node is required", f.Id)
	}
	for _, name := range f.Order {
		_, static := f.Edges[name]
		cond, conditional := f.Conditional[name]
		if _, terminal := f.Terminal[name]; terminal {
			continue
		}
		if static && conditional {
			return fmt.Errorf("flow %s, node %s has both static and conditional edges", f.Id, name)
		}
		if !static && !conditional {
			return fmt.Errorf("flow %s, node %s has no outgoing edge", f.Id, name)
		}
		targets := f.Edges[name]
		if conditional {
			if cond.route == nil || len(cond.targets) == 0 {
				return fmt.Errorf("flow %s, conditional edge of %s needs a router and targets", f.Id, name)
			}
			targets = cond.targets
		}
		for _, t := range targets {
			if _, ok := f.Actions[t]; !ok {
				return fmt.Errorf("flow %s, edge %s -> %s points to unknown node", f.Id, name, t)
			}
		}
	}
	for from := range f.Edges {
		if _, ok := f.Actions[from]; !ok {
			return fmt.Errorf("flow %s, edge from unknown node %s", f.Id, from)
		}
	}
	for from := range f.Conditional {
		if _, ok := f.Actions[from]; !ok {
			return fmt.Errorf("flow %s, edge from unknown node %s", f.Id, from)
		}
	}
	return nil
}

// Next returns the union of the targets of every completed node, in
// declaration order. Terminal nodes have no targets.
func (f *Flow) Next(state model.WorkflowState, completed []string) ([]string, error) {
	selected := make(map[string]bool)
	for _, name := range completed {
		if _, ok := f.Terminal[name]; ok {
			continue
		}
		if cond, ok := f.Conditional[name]; ok {
			target, err := cond.route(state)
			if err != nil {
				return nil, RoutingError{From: name, Err: err}
			}
			if !containsString(cond.targets, target) {
				return nil, RoutingError{From: name, Err: fmt.Errorf("undeclared target %q", target)}
			}
			selected[target] = true
			continue
		}
		targets, ok := f.Edges[name]
		if !ok {
			return nil, RoutingError{From: name, Err: fmt.Errorf("node has no outgoing edge")}
		}
		for _, t := range targets {
			selected[t] = true
		}
	}
	next := make([]string, 0, len(selected))
	for _, name := range f.Order {
		if selected[name] {
			next = append(next, name)
		}
	}
	return next, nil
}

// IsTerminal reports the run status a terminal node ends the run with.
func (f *Flow) IsTerminal(name string) (model.RunStatus, bool) {
	status, ok := f.Terminal[name]
	return status, ok
}

func (f *Flow) GetAction(name string) (action.Action, bool) {
	a, ok := f.Actions[name]
	return a, ok
}

type RoutingError struct {
	From string
	Err  error
}

func (e RoutingError) Error() string {
	return fmt.Sprintf("routing from %s failed: %v", e.From, e.Err)
}

func (e RoutingError) Unwrap() error {
	return e.Err
}

func containsString(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
