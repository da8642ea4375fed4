package editor_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func service(id, label string) domain.FlowNode {
	return domain.FlowNode{ID: id, Type: domain.NodeTypeService, Label: label, Service: &domain.ServiceConfig{DurationMinutes: 30}}
}

func sampleData() domain.BookingFlowData {
	d := domain.NewBookingFlowData("form-1", "Salon")
	d.ServiceTree.Children = []domain.FlowNode{
		{ID: "hair", Type: domain.NodeTypeGroup, Label: "Hair", Children: []domain.FlowNode{
			service("cut", "Cut"),
			service("color", "Color"),
		}},
		{ID: "nails", Type: domain.NodeTypeGroup, Label: "Nails", Children: []domain.FlowNode{
			service("mani", "Manicure"),
		}},
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func childIDs(n domain.FlowNode) []string {
	var ids []string
	for _, c := range n.Children {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestReduce_EndToEndExample(t *testing.T) {
	d := domain.NewBookingFlowData("form-1", "Demo")
	d = editor.Reduce(d, editor.AddNode{ParentID: "root", Node: service("svc1", "One")})
	d = editor.Reduce(d, editor.AddNode{ParentID: "root", Node: service("svc2", "Two")})
	assert.Equal(t, []string{"svc1", "svc2"}, childIDs(d.ServiceTree))

	d = editor.Reduce(d, editor.ReorderNodes{ParentID: "root", NewOrder: []string{"svc2", "svc1"}})
	assert.Equal(t, []string{"svc2", "svc1"}, childIDs(d.ServiceTree))
}

func TestReduce_UpdateNodeSharesSiblings(t *testing.T) {
	orig := sampleData()
	origNails := &orig.ServiceTree.Children[1].Children[0]
	origCut := &orig.ServiceTree.Children[0].Children[0]

	next := editor.Reduce(orig, editor.UpdateNode{NodeID: "color", Patch: editor.NodePatch{Label: ptr("Colour")}})

	target, ok := next.ServiceTree.Find("color")
	require.True(t, ok)
	assert.Equal(t, "Colour", target.Label)

	// Untouched subtrees keep their backing arrays.
	assert.Same(t, origNails, &next.ServiceTree.Children[1].Children[0])
	assert.Same(t, origCut.Service, next.ServiceTree.Children[0].Children[0].Service)
	// The input is not mutated.
	old, _ := orig.ServiceTree.Find("color")
	assert.Equal(t, "Color", old.Label)
}

func TestReduce_UpdateNodeService(t *testing.T) {
	orig := sampleData()
	cfg := domain.ServiceConfig{DurationMinutes: 90, EmployeeIDs: []string{"e1"}}

	next := editor.Reduce(orig, editor.UpdateNode{NodeID: "cut", Patch: editor.NodePatch{Service: &cfg}})
	n, _ := next.ServiceTree.Find("cut")
	assert.Equal(t, 90, n.Service.DurationMinutes)

	// Service config is ignored on groups.
	next = editor.Reduce(orig, editor.UpdateNode{NodeID: "hair", Patch: editor.NodePatch{Service: &cfg}})
	g, _ := next.ServiceTree.Find("hair")
	assert.Nil(t, g.Service)
}

func TestReduce_UnknownIDsAreNoOps(t *testing.T) {
	orig := sampleData()
	actions := []editor.Action{
		editor.UpdateNode{NodeID: "missing", Patch: editor.NodePatch{Label: ptr("x")}},
		editor.AddNode{ParentID: "missing", Node: service("new", "New")},
		editor.ReorderNodes{ParentID: "missing", NewOrder: []string{"a"}},
		editor.RemoveNode{NodeID: "missing"},
	}
	for _, a := range actions {
		t.Run(string(a.Type()), func(t *testing.T) {
			assert.Equal(t, orig, editor.Reduce(orig, a))
			assert.ErrorIs(t, editor.Check(orig, a), domain.ErrNodeNotFound)
		})
	}
}

func TestReduce_AddThenRemoveRoundTrip(t *testing.T) {
	orig := sampleData()
	for _, parent := range []string{"root", "hair", "nails"} {
		added := editor.Reduce(orig, editor.AddNode{ParentID: parent, Node: service("new", "New")})
		require.True(t, added.ServiceTree.Contains("new"))

		removed := editor.Reduce(added, editor.RemoveNode{NodeID: "new"})
		assert.Equal(t, orig, removed, "parent %s", parent)
	}

	empty := domain.NewBookingFlowData("f", "Empty")
	round := editor.Apply(empty,
		editor.AddNode{ParentID: "root", Node: service("x", "X")},
		editor.RemoveNode{NodeID: "x"},
	)
	assert.Equal(t, empty, round)
}

func TestReduce_AddNodeGuards(t *testing.T) {
	orig := sampleData()
	tests := []struct {
		name    string
		action  editor.AddNode
		wantErr error
	}{
		{"under service", editor.AddNode{ParentID: "cut", Node: service("x", "X")}, domain.ErrInvalidParent},
		{"duplicate id", editor.AddNode{ParentID: "root", Node: service("cut", "Again")}, domain.ErrDuplicateNode},
		{"start node", editor.AddNode{ParentID: "root", Node: domain.FlowNode{ID: "s", Type: domain.NodeTypeStart}}, domain.ErrInvalidAction},
		{"empty id", editor.AddNode{ParentID: "root", Node: domain.FlowNode{Type: domain.NodeTypeGroup}}, domain.ErrInvalidAction},
		{"duplicate inside subtree", editor.AddNode{ParentID: "root", Node: domain.FlowNode{
			ID: "g", Type: domain.NodeTypeGroup, Children: []domain.FlowNode{service("mani", "Dup")},
		}}, domain.ErrDuplicateNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, orig, editor.Reduce(orig, tt.action))
			assert.ErrorIs(t, editor.Check(orig, tt.action), tt.wantErr)
		})
	}
}

func TestReduce_AddNodeDoesNotAliasInput(t *testing.T) {
	node := service("new", "New")
	next := editor.Reduce(sampleData(), editor.AddNode{ParentID: "root", Node: node})
	node.Service.DurationMinutes = 999

	got, _ := next.ServiceTree.Find("new")
	assert.Equal(t, 30, got.Service.DurationMinutes)
}

func TestReduce_Reorder(t *testing.T) {
	d := domain.NewBookingFlowData("f", "R")
	d = editor.Apply(d,
		editor.AddNode{ParentID: "root", Node: service("a", "A")},
		editor.AddNode{ParentID: "root", Node: service("b", "B")},
		editor.AddNode{ParentID: "root", Node: service("c", "C")},
	)

	got := editor.Reduce(d, editor.ReorderNodes{ParentID: "root", NewOrder: []string{"c", "ghost", "a"}})
	assert.Equal(t, []string{"c", "a", "b"}, childIDs(got.ServiceTree))
	assert.Equal(t, []string{"a", "b", "c"}, childIDs(d.ServiceTree), "input must not change")

	assert.ErrorIs(t, editor.Check(d, editor.ReorderNodes{ParentID: "a"}), domain.ErrInvalidParent)
}

func TestReduce_RemoveRootIsNoOp(t *testing.T) {
	orig := sampleData()
	assert.Equal(t, orig, editor.Reduce(orig, editor.RemoveNode{NodeID: "root"}))
	assert.ErrorIs(t, editor.Check(orig, editor.RemoveNode{NodeID: "root"}), domain.ErrInvalidAction)
}

func TestReduce_RemoveSubtree(t *testing.T) {
	next := editor.Reduce(sampleData(), editor.RemoveNode{NodeID: "hair"})
	assert.False(t, next.ServiceTree.Contains("cut"))
	assert.False(t, next.ServiceTree.Contains("color"))
	assert.True(t, next.ServiceTree.Contains("mani"))
}

func TestReduce_SettingsAndQuestions(t *testing.T) {
	orig := sampleData()
	next := editor.Apply(orig,
		editor.UpdateFormSettings{Theme: ptr(domain.ThemeDark), PrimaryColor: ptr("#112233")},
		editor.UpdateBaseQuestions{Questions: []domain.FormFieldConfig{{ID: "q1", Type: domain.FieldText, Label: "Notes"}}},
	)
	assert.Equal(t, "Salon", next.InternalName)
	assert.Equal(t, domain.ThemeDark, next.Theme)
	assert.Equal(t, "#112233", next.PrimaryColor)
	assert.Len(t, next.BaseQuestions, 1)
	assert.Empty(t, orig.BaseQuestions)
	// Tree untouched and shared.
	assert.Same(t, &orig.ServiceTree.Children[0], &next.ServiceTree.Children[0])
}

func TestReduce_InitializeData(t *testing.T) {
	replacement := domain.NewBookingFlowData("form-2", "Other")
	assert.Equal(t, replacement, editor.Reduce(sampleData(), editor.InitializeData{Data: replacement}))
}

func TestReduce_PointerActions(t *testing.T) {
	next := editor.Reduce(sampleData(), &editor.RemoveNode{NodeID: "nails"})
	assert.False(t, next.ServiceTree.Contains("nails"))
}

func TestReduce_NilActionIsNoOp(t *testing.T) {
	orig := sampleData()
	assert.Equal(t, orig, editor.Reduce(orig, nil))
	assert.ErrorIs(t, editor.Check(orig, nil), domain.ErrInvalidAction)
}
