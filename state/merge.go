package state

import (
	"reflect"
	"sort"

	"github.com/mohitkumar/govflow/model"
)

// NodeDelta is a delta tagged with the node that produced it.
type NodeDelta struct {
	Node  string
	Delta model.Delta
}

// Merge folds one delta into current. current is never modified and the
// result shares no maps or slices with either argument.
func Merge(current model.WorkflowState, delta model.Delta) model.WorkflowState {
	next := current.Clone()
	apply(&next, delta)
	return next.Clone()
}

// MergeAll folds the deltas of one barrier step. Deltas are applied in the
// position their node has in order, so the result does not depend on the
// order in which the nodes finished. Nodes absent from order go last, by name.
func MergeAll(current model.WorkflowState, deltas []NodeDelta, order []string) model.WorkflowState {
	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[name] = i
	}
	sorted := make([]NodeDelta, len(deltas))
	copy(sorted, deltas)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, iok := rank[sorted[i].Node]
		rj, jok := rank[sorted[j].Node]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return sorted[i].Node < sorted[j].Node
		}
	})
	next := current.Clone()
	for _, nd := range sorted {
		apply(&next, nd.Delta)
	}
	return next.Clone()
}

func apply(next *model.WorkflowState, delta model.Delta) {
	sv := reflect.ValueOf(next).Elem()
	dv := reflect.ValueOf(delta)
	for _, p := range policies {
		src := dv.FieldByName(p.Field)
		if src.IsNil() {
			continue
		}
		dst := sv.FieldByName(p.Field)
		switch p.Policy {
		case LAST_WRITER_WINS:
			dst.Set(src.Elem())
		case SHALLOW_MERGE:
			if dst.IsNil() {
				dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
			}
			iter := src.MapRange()
			for iter.Next() {
				dst.SetMapIndex(iter.Key(), iter.Value())
			}
		case APPEND_ONLY:
			dst.Set(reflect.AppendSlice(dst, src))
		}
	}
}

// Fields returns the names of the fields a delta writes, in table order.
func Fields(delta model.Delta) []string {
	dv := reflect.ValueOf(delta)
	var out []string
	for _, p := range policies {
		if !dv.FieldByName(p.Field).IsNil() {
			out = append(out, p.Field)
		}
	}
	return out
}
