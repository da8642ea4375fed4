/*
Package arbor is the backend of a booking-flow builder: organisations design booking forms as a tree of grouped services, and customers later book those services at times when employees are free.

# Concept

A form (domain.Form) holds a service tree rooted at a start node, form-level questions and theming. Forms are edited through editor actions applied by a pure reducer. The Service keeps an editable draft of every form being worked on and persists it in the background with debounced, retried autosave, so that a burst of edits results in one write.

Availability is computed per service and month by intersecting the free time reported by a field-service provider with the organisation's business hours, in the organisation's timezone.

# Key Features

  - Pure Reducer: Editor actions never mutate their input, and actions on unknown nodes leave the form untouched.
  - Autosave: Debounced saves with exponential backoff and validation before every write.
  - Soft Delete: Deleted forms stay restorable for a configurable window and are purged afterwards.
  - Multi-tenant: Every operation is scoped to an organisation.
  - Pluggable Storage: Memory, file, Redis, Postgres and Badger stores share one contract.

# Usage

	store := memory.NewStore()
	svc, err := arbor.New(store, arbor.WithProvider(provider))
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close(context.Background())

	form, err := svc.CreateForm(ctx, "org-1", arbor.CreateFormInput{InternalName: "Salon"})
	if err != nil {
		log.Fatal(err)
	}

	// Edits apply to the draft at once and are saved in the background.
	data, err := svc.Dispatch(ctx, "org-1", form.ID, editor.AddNode{
		ParentID: domain.RootNodeID,
		Node:     editor.NewNode(domain.NodeTypeService, "Haircut"),
	})

The HTTP server (pkg/adapters/http), the MCP server (pkg/adapters/mcp) and the arbor command expose the Service to other processes.
*/
package arbor
