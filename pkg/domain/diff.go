package domain

import (
	"reflect"
	"sort"
)

// FormDiff represents the changes between two versions of a form.
// It is designed to be serialized to JSON for partial updates on the client.
type FormDiff struct {
	FormID string `json:"formId"`

	// Added, Removed and Updated hold node IDs.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Updated []string `json:"updated,omitempty"`

	// Reordered holds the IDs of parents whose children changed order.
	Reordered []string `json:"reordered,omitempty"`

	Settings      bool `json:"settings,omitempty"`
	BaseQuestions bool `json:"baseQuestions,omitempty"`
}

type nodeEntry struct {
	node     FlowNode // without children
	parentID string
	children []string
}

func indexTree(root FlowNode) map[string]nodeEntry {
	idx := make(map[string]nodeEntry)
	root.Walk(func(n FlowNode, parent *FlowNode) bool {
		e := nodeEntry{node: n}
		e.node.Children = nil
		if parent != nil {
			e.parentID = parent.ID
		}
		for _, c := range n.Children {
			e.children = append(e.children, c.ID)
		}
		idx[n.ID] = e
		return true
	})
	return idx
}

// Diff calculates the difference between oldData and newData.
// If oldData is nil, every node of newData is reported as added (initial load).
// It returns nil when nothing changed.
func Diff(oldData *BookingFlowData, newData BookingFlowData) *FormDiff {
	diff := &FormDiff{FormID: newData.ID}
	newIdx := indexTree(newData.ServiceTree)

	if oldData == nil {
		for id := range newIdx {
			diff.Added = append(diff.Added, id)
		}
		sort.Strings(diff.Added)
		diff.Settings = true
		diff.BaseQuestions = len(newData.BaseQuestions) > 0
		return diff
	}

	oldIdx := indexTree(oldData.ServiceTree)
	for id, n := range newIdx {
		o, ok := oldIdx[id]
		if !ok {
			diff.Added = append(diff.Added, id)
			continue
		}
		if o.parentID != n.parentID || !reflect.DeepEqual(o.node, n.node) {
			diff.Updated = append(diff.Updated, id)
		}
		if !sameRelativeOrder(o.children, n.children) {
			diff.Reordered = append(diff.Reordered, id)
		}
	}
	for id := range oldIdx {
		if _, ok := newIdx[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Updated)
	sort.Strings(diff.Reordered)

	diff.Settings = oldData.InternalName != newData.InternalName ||
		oldData.Theme != newData.Theme ||
		oldData.PrimaryColor != newData.PrimaryColor
	diff.BaseQuestions = !reflect.DeepEqual(oldData.BaseQuestions, newData.BaseQuestions)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// sameRelativeOrder compares the order of the children present in both lists.
func sameRelativeOrder(a, b []string) bool {
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	inA := make(map[string]bool, len(a))
	var common []string
	for _, id := range a {
		inA[id] = true
		if inB[id] {
			common = append(common, id)
		}
	}
	i := 0
	for _, id := range b {
		if !inA[id] {
			continue
		}
		if common[i] != id {
			return false
		}
		i++
	}
	return true
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *FormDiff) IsEmpty() bool {
	return len(d.Added) == 0 &&
		len(d.Removed) == 0 &&
		len(d.Updated) == 0 &&
		len(d.Reordered) == 0 &&
		!d.Settings &&
		!d.BaseQuestions
}
