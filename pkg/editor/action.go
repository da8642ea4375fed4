package editor

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/google/uuid"
)

// ActionType identifies an editor action on the wire.
type ActionType string

const (
	ActionUpdateFormSettings  ActionType = "UPDATE_FORM_SETTINGS"
	ActionUpdateNode          ActionType = "UPDATE_NODE"
	ActionAddNode             ActionType = "ADD_NODE"
	ActionReorderNodes        ActionType = "REORDER_NODES"
	ActionUpdateBaseQuestions ActionType = "UPDATE_BASE_QUESTIONS"
	ActionRemoveNode          ActionType = "REMOVE_NODE"
	ActionInitializeData      ActionType = "INITIALIZE_DATA"
)

// Action is a typed change to a BookingFlowData.
type Action interface {
	Type() ActionType
}

// UpdateFormSettings changes form-level settings. Nil fields are left untouched.
type UpdateFormSettings struct {
	InternalName *string `json:"internalName,omitempty"`
	Theme        *string `json:"theme,omitempty"`
	PrimaryColor *string `json:"primaryColor,omitempty"`
}

// NodePatch lists the node fields an UpdateNode may change.
type NodePatch struct {
	Label       *string               `json:"label,omitempty"`
	Description *string               `json:"description,omitempty"`
	Service     *domain.ServiceConfig `json:"service,omitempty"` // service nodes only
}

// UpdateNode applies Patch to the node NodeID.
type UpdateNode struct {
	NodeID string    `json:"nodeId"`
	Patch  NodePatch `json:"patch"`
}

// AddNode appends Node as the last child of ParentID.
type AddNode struct {
	ParentID string          `json:"parentId"`
	Node     domain.FlowNode `json:"node"`
}

// ReorderNodes sets the order of the children of ParentID.
type ReorderNodes struct {
	ParentID string   `json:"parentId"`
	NewOrder []string `json:"newOrder"`
}

// UpdateBaseQuestions replaces the form-level questions.
type UpdateBaseQuestions struct {
	Questions []domain.FormFieldConfig `json:"questions"`
}

// RemoveNode deletes NodeID and its subtree.
type RemoveNode struct {
	NodeID string `json:"nodeId"`
}

// InitializeData replaces the whole form data.
type InitializeData struct {
	Data domain.BookingFlowData `json:"data"`
}

func (UpdateFormSettings) Type() ActionType  { return ActionUpdateFormSettings }
func (UpdateNode) Type() ActionType          { return ActionUpdateNode }
func (AddNode) Type() ActionType             { return ActionAddNode }
func (ReorderNodes) Type() ActionType        { return ActionReorderNodes }
func (UpdateBaseQuestions) Type() ActionType { return ActionUpdateBaseQuestions }
func (RemoveNode) Type() ActionType          { return ActionRemoveNode }
func (InitializeData) Type() ActionType      { return ActionInitializeData }

type envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalAction encodes an action as {"type": ..., "payload": ...}.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil action", domain.ErrInvalidAction)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: a.Type(), Payload: payload})
}

// UnmarshalAction decodes an action envelope.
func UnmarshalAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAction, err)
	}

	var (
		a   Action
		err error
	)
	switch env.Type {
	case ActionUpdateFormSettings:
		a, err = decode[UpdateFormSettings](env.Payload)
	case ActionUpdateNode:
		a, err = decode[UpdateNode](env.Payload)
	case ActionAddNode:
		a, err = decode[AddNode](env.Payload)
	case ActionReorderNodes:
		a, err = decode[ReorderNodes](env.Payload)
	case ActionUpdateBaseQuestions:
		a, err = decode[UpdateBaseQuestions](env.Payload)
	case ActionRemoveNode:
		a, err = decode[RemoveNode](env.Payload)
	case ActionInitializeData:
		a, err = decode[InitializeData](env.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidAction, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", domain.ErrInvalidAction, env.Type, err)
	}
	return a, nil
}

func decode[T Action](raw json.RawMessage) (Action, error) {
	var v T
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// NewNode returns a node of the given type with a fresh random ID.
// Service nodes get an empty ServiceConfig.
func NewNode(typ domain.NodeType, label string) domain.FlowNode {
	n := domain.FlowNode{ID: uuid.NewString(), Type: typ, Label: label}
	if typ == domain.NodeTypeService {
		n.Service = &domain.ServiceConfig{}
	}
	return n
}
