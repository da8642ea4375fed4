package editor

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Reduce applies action to data and returns the resulting data.
//
// Reduce is pure: data is never mutated and subtrees that the action does not
// touch are shared between the input and the output. Actions that target
// unknown nodes, or that would break the tree shape, return data unchanged;
// use Check to find out why.
func Reduce(data domain.BookingFlowData, action Action) domain.BookingFlowData {
	switch a := normalize(action).(type) {
	case UpdateFormSettings:
		if a.InternalName != nil {
			data.InternalName = *a.InternalName
		}
		if a.Theme != nil {
			data.Theme = *a.Theme
		}
		if a.PrimaryColor != nil {
			data.PrimaryColor = *a.PrimaryColor
		}
		return data

	case UpdateNode:
		if tree, ok := updateNode(data.ServiceTree, a.NodeID, func(n domain.FlowNode) domain.FlowNode {
			return applyPatch(n, a.Patch)
		}); ok {
			data.ServiceTree = tree
		}
		return data

	case AddNode:
		if checkAdd(data.ServiceTree, a) != nil {
			return data
		}
		tree, _ := updateNode(data.ServiceTree, a.ParentID, func(n domain.FlowNode) domain.FlowNode {
			children := make([]domain.FlowNode, len(n.Children), len(n.Children)+1)
			copy(children, n.Children)
			n.Children = append(children, a.Node.Clone())
			return n
		})
		data.ServiceTree = tree
		return data

	case ReorderNodes:
		if tree, ok := updateNode(data.ServiceTree, a.ParentID, func(n domain.FlowNode) domain.FlowNode {
			n.Children = reorder(n.Children, a.NewOrder)
			return n
		}); ok {
			data.ServiceTree = tree
		}
		return data

	case UpdateBaseQuestions:
		data.BaseQuestions = append([]domain.FormFieldConfig{}, a.Questions...)
		return data

	case RemoveNode:
		if a.NodeID == data.ServiceTree.ID {
			return data
		}
		if tree, ok := removeNode(data.ServiceTree, a.NodeID); ok {
			data.ServiceTree = tree
		}
		return data

	case InitializeData:
		return a.Data

	default:
		return data
	}
}

// Apply reduces a sequence of actions.
func Apply(data domain.BookingFlowData, actions ...Action) domain.BookingFlowData {
	for _, a := range actions {
		data = Reduce(data, a)
	}
	return data
}

// Check reports why Reduce would ignore action on data, or nil if it applies.
func Check(data domain.BookingFlowData, action Action) error {
	tree := data.ServiceTree
	switch a := normalize(action).(type) {
	case UpdateFormSettings, UpdateBaseQuestions, InitializeData:
		return nil
	case UpdateNode:
		if !tree.Contains(a.NodeID) {
			return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, a.NodeID)
		}
		return nil
	case AddNode:
		return checkAdd(tree, a)
	case ReorderNodes:
		parent, ok := tree.Find(a.ParentID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, a.ParentID)
		}
		if !parent.CanHaveChildren() {
			return fmt.Errorf("%w: %s is a %s", domain.ErrInvalidParent, a.ParentID, parent.Type)
		}
		return nil
	case RemoveNode:
		if a.NodeID == tree.ID {
			return fmt.Errorf("%w: the start node cannot be removed", domain.ErrInvalidAction)
		}
		if !tree.Contains(a.NodeID) {
			return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, a.NodeID)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported action %T", domain.ErrInvalidAction, action)
	}
}

func normalize(action Action) Action {
	switch a := action.(type) {
	case *UpdateFormSettings:
		return *a
	case *UpdateNode:
		return *a
	case *AddNode:
		return *a
	case *ReorderNodes:
		return *a
	case *UpdateBaseQuestions:
		return *a
	case *RemoveNode:
		return *a
	case *InitializeData:
		return *a
	}
	return action
}

func checkAdd(tree domain.FlowNode, a AddNode) error {
	parent, ok := tree.Find(a.ParentID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, a.ParentID)
	}
	if !parent.CanHaveChildren() {
		return fmt.Errorf("%w: %s is a %s", domain.ErrInvalidParent, a.ParentID, parent.Type)
	}
	if a.Node.ID == "" {
		return fmt.Errorf("%w: node id is required", domain.ErrInvalidAction)
	}
	if a.Node.Type != domain.NodeTypeGroup && a.Node.Type != domain.NodeTypeService {
		return fmt.Errorf("%w: cannot add a %q node", domain.ErrInvalidAction, a.Node.Type)
	}
	var err error
	a.Node.Walk(func(n domain.FlowNode, _ *domain.FlowNode) bool {
		switch {
		case tree.Contains(n.ID):
			err = fmt.Errorf("%w: %s", domain.ErrDuplicateNode, n.ID)
		case n.IsLeaf() && len(n.Children) > 0:
			err = fmt.Errorf("%w: service %s has children", domain.ErrInvalidParent, n.ID)
		case n.Type == domain.NodeTypeStart:
			err = fmt.Errorf("%w: nested start node %s", domain.ErrInvalidAction, n.ID)
		}
		return err == nil
	})
	return err
}

func applyPatch(n domain.FlowNode, p NodePatch) domain.FlowNode {
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Service != nil && n.IsLeaf() {
		s := p.Service.Clone()
		n.Service = &s
	}
	return n
}

// updateNode rebuilds the path from root to the node id, replacing the node
// with fn(node). Only the slices along that path are copied.
func updateNode(root domain.FlowNode, id string, fn func(domain.FlowNode) domain.FlowNode) (domain.FlowNode, bool) {
	if root.ID == id {
		return fn(root), true
	}
	for i, c := range root.Children {
		if nc, ok := updateNode(c, id, fn); ok {
			children := make([]domain.FlowNode, len(root.Children))
			copy(children, root.Children)
			children[i] = nc
			root.Children = children
			return root, true
		}
	}
	return root, false
}

func removeNode(root domain.FlowNode, id string) (domain.FlowNode, bool) {
	for i, c := range root.Children {
		if c.ID == id {
			children := make([]domain.FlowNode, 0, len(root.Children)-1)
			children = append(children, root.Children[:i]...)
			children = append(children, root.Children[i+1:]...)
			if len(children) == 0 {
				children = nil
			}
			root.Children = children
			return root, true
		}
		if nc, ok := removeNode(c, id); ok {
			children := make([]domain.FlowNode, len(root.Children))
			copy(children, root.Children)
			children[i] = nc
			root.Children = children
			return root, true
		}
	}
	return root, false
}

// reorder puts the children listed in order first, in that order. Unknown IDs
// are ignored and unlisted children keep their relative order at the end.
func reorder(children []domain.FlowNode, order []string) []domain.FlowNode {
	if len(children) == 0 {
		return children
	}
	byID := make(map[string]int, len(children))
	for i, c := range children {
		byID[c.ID] = i
	}
	used := make([]bool, len(children))
	out := make([]domain.FlowNode, 0, len(children))
	for _, id := range order {
		if i, ok := byID[id]; ok && !used[i] {
			used[i] = true
			out = append(out, children[i])
		}
	}
	for i, c := range children {
		if !used[i] {
			out = append(out, c)
		}
	}
	return out
}
