package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/autosave"
	"github.com/aretw0/arbor/pkg/availability"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/editor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

// TemplatesURI is the resource listing the form templates.
const TemplatesURI = "arbor://templates"

// Service is the part of arbor.Service exposed to MCP clients.
type Service interface {
	GetForm(ctx context.Context, organizationID, formID string) (*domain.Form, error)
	ListForms(ctx context.Context, organizationID string) ([]*domain.Form, error)
	Dispatch(ctx context.Context, organizationID, formID string, action editor.Action) (domain.BookingFlowData, error)
	SaveDraft(ctx context.Context, organizationID, formID string) (autosave.Snapshot, error)
	Availability(ctx context.Context, organizationID string, q arbor.AvailabilityQuery) (availability.Result, error)
	Templates(ctx context.Context) ([]domain.Template, error)
}

var _ Service = (*arbor.Service)(nil)

// FormArgs identifies a form of an organisation.
type FormArgs struct {
	OrganizationID string `json:"organization_id"`
	FormID         string `json:"form_id"`
}

// ActionArgs carries an editor action envelope.
type ActionArgs struct {
	FormArgs
	Action string `json:"action"`
}

// AvailabilityArgs selects a service and a month.
type AvailabilityArgs struct {
	FormArgs
	ServiceID string `json:"service_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
}

// FormList wraps forms so the tool output is a JSON object.
type FormList struct {
	Forms []*domain.Form `json:"forms" jsonschema_description:"Forms of the organisation, most recently updated first"`
}

// Server exposes the booking-flow editor as an MCP server.
type Server struct {
	svc       Service
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(arbor.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	mux := http.NewServeMux()
	mux.Handle("/sse", c.Handler(sseServer.SSEHandler()))
	mux.Handle("/message", c.Handler(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_forms",
		mcp.WithDescription("List the booking-flow forms of an organisation."),
		mcp.WithString("organization_id", mcp.Required(), mcp.Description("Organisation that owns the forms")),
		mcp.WithOutputSchema[FormList](),
	), mcp.NewStructuredToolHandler(s.handleListForms))

	s.mcpServer.AddTool(mcp.NewTool("get_form",
		mcp.WithDescription("Get a stored form with its service tree."),
		mcp.WithString("organization_id", mcp.Required(), mcp.Description("Organisation that owns the form")),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form ID")),
		mcp.WithOutputSchema[domain.Form](),
	), mcp.NewStructuredToolHandler(s.handleGetForm))

	s.mcpServer.AddTool(mcp.NewTool("apply_action",
		mcp.WithDescription("Apply an editor action to the draft of a form. The draft is autosaved."),
		mcp.WithString("organization_id", mcp.Required(), mcp.Description("Organisation that owns the form")),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form ID")),
		mcp.WithString("action", mcp.Required(), mcp.Description(`JSON action envelope, e.g. {"type":"REMOVE_NODE","payload":{"nodeId":"n1"}}`)),
		mcp.WithOutputSchema[domain.BookingFlowData](),
	), mcp.NewStructuredToolHandler(s.handleApplyAction))

	s.mcpServer.AddTool(mcp.NewTool("save_draft",
		mcp.WithDescription("Persist the draft of a form now."),
		mcp.WithString("organization_id", mcp.Required(), mcp.Description("Organisation that owns the form")),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form ID")),
		mcp.WithOutputSchema[autosave.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleSaveDraft))

	s.mcpServer.AddTool(mcp.NewTool("compute_availability",
		mcp.WithDescription("Compute the free slots of a service for one month."),
		mcp.WithString("organization_id", mcp.Required(), mcp.Description("Organisation that owns the form")),
		mcp.WithString("form_id", mcp.Required(), mcp.Description("Form ID")),
		mcp.WithString("service_id", mcp.Required(), mcp.Description("ID of a service node")),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Calendar year")),
		mcp.WithNumber("month", mcp.Required(), mcp.Description("Month, 1 to 12")),
		mcp.WithOutputSchema[availability.Result](),
	), mcp.NewStructuredToolHandler(s.handleAvailability))
}

func (s *Server) handleListForms(ctx context.Context, request mcp.CallToolRequest, args FormArgs) (FormList, error) {
	forms, err := s.svc.ListForms(ctx, args.OrganizationID)
	if err != nil {
		return FormList{}, fmt.Errorf("list failed: %w", err)
	}
	if forms == nil {
		forms = []*domain.Form{}
	}
	return FormList{Forms: forms}, nil
}

func (s *Server) handleGetForm(ctx context.Context, request mcp.CallToolRequest, args FormArgs) (domain.Form, error) {
	form, err := s.svc.GetForm(ctx, args.OrganizationID, args.FormID)
	if err != nil {
		return domain.Form{}, fmt.Errorf("get failed: %w", err)
	}
	return *form, nil
}

func (s *Server) handleApplyAction(ctx context.Context, request mcp.CallToolRequest, args ActionArgs) (domain.BookingFlowData, error) {
	action, err := editor.UnmarshalAction([]byte(args.Action))
	if err != nil {
		s.logger.Warn("MCP apply_action: action rejected", "err", err, "size", len(args.Action))
		return domain.BookingFlowData{}, err
	}
	data, err := s.svc.Dispatch(ctx, args.OrganizationID, args.FormID, action)
	if err != nil {
		return domain.BookingFlowData{}, fmt.Errorf("action failed: %w", err)
	}
	return data, nil
}

func (s *Server) handleSaveDraft(ctx context.Context, request mcp.CallToolRequest, args FormArgs) (autosave.Snapshot, error) {
	snap, err := s.svc.SaveDraft(ctx, args.OrganizationID, args.FormID)
	if err != nil {
		return autosave.Snapshot{}, fmt.Errorf("save failed: %w", err)
	}
	return snap, nil
}

func (s *Server) handleAvailability(ctx context.Context, request mcp.CallToolRequest, args AvailabilityArgs) (availability.Result, error) {
	res, err := s.svc.Availability(ctx, args.OrganizationID, arbor.AvailabilityQuery{
		FormID:    args.FormID,
		ServiceID: args.ServiceID,
		Year:      args.Year,
		Month:     time.Month(args.Month),
	})
	if err != nil {
		return availability.Result{}, fmt.Errorf("availability failed: %w", err)
	}
	return res, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TemplatesURI, "Form templates",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		templates, err := s.svc.Templates(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		jsonBytes, err := json.Marshal(templates)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TemplatesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
