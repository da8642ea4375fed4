package domain

// NodeType defines the role of a node in the service tree.
type NodeType string

const (
	// NodeTypeStart is the single root of every service tree.
	NodeTypeStart NodeType = "start"
	// NodeTypeGroup organises services (and nested groups) under a label.
	NodeTypeGroup NodeType = "group"
	// NodeTypeService is a bookable leaf.
	NodeTypeService NodeType = "service"
)

// RootNodeID is the ID given to the start node of newly created forms.
const RootNodeID = "root"

// FlowNode is a node of the service tree.
//
// Only start and group nodes may carry children; service nodes are leaves and
// hold their booking configuration in Service.
type FlowNode struct {
	ID          string         `json:"id" yaml:"id" validate:"required"`
	Type        NodeType       `json:"type" yaml:"type" validate:"required,oneof=start group service"`
	Label       string         `json:"label" yaml:"label"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Children    []FlowNode     `json:"children,omitempty" yaml:"children,omitempty" validate:"dive"`
	Service     *ServiceConfig `json:"service,omitempty" yaml:"service,omitempty"`
}

// ServiceConfig holds the fields that only make sense on a bookable service.
type ServiceConfig struct {
	DurationMinutes int                `json:"durationMinutes" yaml:"durationMinutes" validate:"gte=0"`
	Price           int64              `json:"price,omitempty" yaml:"price,omitempty" validate:"gte=0"` // minor units
	Currency        string             `json:"currency,omitempty" yaml:"currency,omitempty" validate:"omitempty,len=3"`
	EmployeeIDs     []string           `json:"employeeIds,omitempty" yaml:"employeeIds,omitempty"`
	Questions       []FormFieldConfig  `json:"questions,omitempty" yaml:"questions,omitempty" validate:"dive"`
	Scheduling      SchedulingSettings `json:"scheduling" yaml:"scheduling"`
}

// CanHaveChildren reports whether nodes may be nested under n.
func (n FlowNode) CanHaveChildren() bool {
	return n.Type == NodeTypeStart || n.Type == NodeTypeGroup
}

// IsLeaf reports whether the node is a bookable service.
func (n FlowNode) IsLeaf() bool {
	return n.Type == NodeTypeService
}

// NewStartNode returns the default tree root.
func NewStartNode() FlowNode {
	return FlowNode{ID: RootNodeID, Type: NodeTypeStart, Label: "Start"}
}

// Find returns the first node with the given ID in depth-first order.
func (n FlowNode) Find(id string) (FlowNode, bool) {
	if n.ID == id {
		return n, true
	}
	for _, c := range n.Children {
		if found, ok := c.Find(id); ok {
			return found, true
		}
	}
	return FlowNode{}, false
}

// Contains reports whether a node with the given ID exists in the subtree.
func (n FlowNode) Contains(id string) bool {
	_, ok := n.Find(id)
	return ok
}

// Walk visits every node depth-first, passing the parent (nil for n itself).
// Returning false from fn stops the walk.
func (n FlowNode) Walk(fn func(node FlowNode, parent *FlowNode) bool) {
	n.walk(nil, fn)
}

func (n FlowNode) walk(parent *FlowNode, fn func(FlowNode, *FlowNode) bool) bool {
	if !fn(n, parent) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(&n, fn) {
			return false
		}
	}
	return true
}

// Services returns every service leaf of the tree in depth-first order.
func (n FlowNode) Services() []FlowNode {
	var out []FlowNode
	n.Walk(func(node FlowNode, _ *FlowNode) bool {
		if node.IsLeaf() {
			out = append(out, node)
		}
		return true
	})
	return out
}

// IDs returns all node IDs of the subtree.
func (n FlowNode) IDs() []string {
	var ids []string
	n.Walk(func(node FlowNode, _ *FlowNode) bool {
		ids = append(ids, node.ID)
		return true
	})
	return ids
}
