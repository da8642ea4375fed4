package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/autosave"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const org = "org-a"

func newTestServer(t *testing.T) (*Server, *arbor.Service) {
	t.Helper()
	catalog, err := memory.NewCatalog(domain.Template{
		ID:   "salon",
		Name: "Hair salon",
		Data: domain.BookingFlowData{
			InternalName: "Hair salon",
			ServiceTree:  domain.FlowNode{ID: domain.RootNodeID, Type: domain.NodeTypeStart},
		},
	})
	require.NoError(t, err)
	svc, err := arbor.New(memory.NewStore(),
		arbor.WithCatalog(catalog),
		arbor.WithAutosave(autosave.WithDebounce(time.Hour)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return NewServer(svc), svc
}

func TestServer_ListTools(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.mcpServer.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"list_forms", "get_form", "apply_action", "save_draft", "compute_availability"} {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
}

func TestServer_FormTools(t *testing.T) {
	ctx := context.Background()
	s, svc := newTestServer(t)
	form, err := svc.CreateForm(ctx, org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	list, err := s.handleListForms(ctx, mcp.CallToolRequest{}, FormArgs{OrganizationID: org})
	require.NoError(t, err)
	require.Len(t, list.Forms, 1)
	assert.Equal(t, form.ID, list.Forms[0].ID)

	empty, err := s.handleListForms(ctx, mcp.CallToolRequest{}, FormArgs{OrganizationID: "org-b"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Forms)
	assert.Empty(t, empty.Forms)

	got, err := s.handleGetForm(ctx, mcp.CallToolRequest{}, FormArgs{OrganizationID: org, FormID: form.ID})
	require.NoError(t, err)
	assert.Equal(t, "Salon", got.Data.InternalName)

	_, err = s.handleGetForm(ctx, mcp.CallToolRequest{}, FormArgs{OrganizationID: "org-b", FormID: form.ID})
	assert.ErrorIs(t, err, domain.ErrFormNotFound)
}

func TestServer_ApplyActionAndSave(t *testing.T) {
	ctx := context.Background()
	s, svc := newTestServer(t)
	form, err := svc.CreateForm(ctx, org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	node := editor.NewNode(domain.NodeTypeService, "Haircut")
	raw, err := editor.MarshalAction(editor.AddNode{ParentID: domain.RootNodeID, Node: node})
	require.NoError(t, err)

	args := ActionArgs{FormArgs: FormArgs{OrganizationID: org, FormID: form.ID}, Action: string(raw)}
	data, err := s.handleApplyAction(ctx, mcp.CallToolRequest{}, args)
	require.NoError(t, err)
	assert.True(t, data.ServiceTree.Contains(node.ID))

	args.Action = `{"type":"NOPE"}`
	_, err = s.handleApplyAction(ctx, mcp.CallToolRequest{}, args)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	snap, err := s.handleSaveDraft(ctx, mcp.CallToolRequest{}, FormArgs{OrganizationID: org, FormID: form.ID})
	require.NoError(t, err)
	assert.False(t, snap.IsDirty)

	stored, err := svc.GetForm(ctx, org, form.ID)
	require.NoError(t, err)
	assert.True(t, stored.Data.ServiceTree.Contains(node.ID))
}

func TestServer_AvailabilityWithoutProvider(t *testing.T) {
	ctx := context.Background()
	s, svc := newTestServer(t)
	form, err := svc.CreateForm(ctx, org, arbor.CreateFormInput{InternalName: "Salon"})
	require.NoError(t, err)

	_, err = s.handleAvailability(ctx, mcp.CallToolRequest{}, AvailabilityArgs{
		FormArgs:  FormArgs{OrganizationID: org, FormID: form.ID},
		ServiceID: "cut",
		Year:      2026,
		Month:     3,
	})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestServer_TemplatesResource(t *testing.T) {
	s, _ := newTestServer(t)

	resp := s.mcpServer.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"arbor://templates"}}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `Hair salon`)
}
