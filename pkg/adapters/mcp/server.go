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

	"github.com/aretw0/outline/internal/logging"
	"github.com/aretw0/outline/internal/presentation/document"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/exchange"
	"github.com/aretw0/outline/pkg/session"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// OutlineResponse is the structured result of tools that change or read the outline.
type OutlineResponse struct {
	ProjectID string               `json:"project_id" jsonschema_description:"The project the outline belongs to"`
	Version   string               `json:"version" jsonschema_description:"Latest committed version"`
	Dirty     bool                 `json:"dirty" jsonschema_description:"Whether there are unsaved changes"`
	Nodes     []domain.OutlineNode `json:"nodes" jsonschema_description:"Visible nodes in display order with computed codes"`
}

// ChangesResponse lists unsaved changes.
type ChangesResponse struct {
	ProjectID string   `json:"project_id"`
	Dirty     bool     `json:"dirty"`
	Changes   []string `json:"changes"`
}

// Engine is the part of outline.Engine the MCP server needs.
type Engine interface {
	Open(ctx context.Context, projectID string) (*session.Session, error)
	View(ctx context.Context, projectID string) (session.View, error)
	Projects(ctx context.Context) ([]string, error)
	History(ctx context.Context, projectID string) ([]domain.VersionRecord, error)
}

// Server exposes outline editing as MCP tools and resources.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("outline-mcp", strings.TrimSpace(version)),
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
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	corsHandler := cors.AllowAll().Handler
	mux := http.NewServeMux()
	mux.Handle("/sse", corsHandler(sseServer.SSEHandler()))
	mux.Handle("/message", corsHandler(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the ids of stored projects."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.engine.Projects(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("Get the visible outline with hierarchical codes and inherited data. Unknown projects start as a new draft."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("collapsed", mcp.Description("Comma separated node IDs whose descendants are hidden")),
		mcp.WithOutputSchema[OutlineResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetOutline))

	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the full hierarchy as nested entries, ignoring collapse."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v, err := s.view(ctx, request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		jsonBytes, _ := json.Marshal(v.Tree())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Render the outline as an indented document."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("format", mcp.Description("text or markdown")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		format, err := document.ParseFormat(stringArg(args, "format"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		v, err := s.view(ctx, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(document.Render(v.Snapshot(), nil, format)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Append a step under a parent node."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Parent node ID")),
		mcp.WithString("node_id", mcp.Description("ID for the new node (generated when omitted)")),
		mcp.WithString("label", mcp.Description("Step label")),
		mcp.WithString("description", mcp.Description("Step description")),
		mcp.WithString("payload", mcp.Description("JSON object of string key-value data")),
		mcp.WithOutputSchema[OutlineResponse](),
	), mcp.NewStructuredToolHandler(s.handleAddNode))

	s.mcpServer.AddTool(mcp.NewTool("update_node",
		mcp.WithDescription("Edit a step in place. Omitted fields are left untouched."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithString("label", mcp.Description("New label")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("jump_target_id", mcp.Description("Node to jump to; empty string clears it")),
		mcp.WithString("set_payload", mcp.Description("JSON object of keys to merge into the payload")),
		mcp.WithOutputSchema[OutlineResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateNode))

	s.mcpServer.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Remove a step. Without subtree its children become separate roots."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithBoolean("subtree", mcp.Description("Also remove descendants")),
		mcp.WithOutputSchema[OutlineResponse](),
	), mcp.NewStructuredToolHandler(s.handleDeleteNode))

	s.mcpServer.AddTool(mcp.NewTool("reorder_node",
		mcp.WithDescription("Move a step relative to another, as a drag and drop would."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("dragged_id", mcp.Required(), mcp.Description("Node being moved")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Node it is dropped on")),
		mcp.WithString("mode", mcp.Required(), mcp.Enum("onto", "before", "after"), mcp.Description("Drop position")),
		mcp.WithOutputSchema[OutlineResponse](),
	), mcp.NewStructuredToolHandler(s.handleReorder))

	s.mcpServer.AddTool(mcp.NewTool("get_changes",
		mcp.WithDescription("Describe unsaved changes since the last committed version."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithOutputSchema[ChangesResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetChanges))

	s.mcpServer.AddTool(mcp.NewTool("checkpoint",
		mcp.WithDescription("Commit the outline as a new version. publish forks a new project."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("kind", mcp.Required(), mcp.Enum("draft", "archive", "publish"), mcp.Description("Checkpoint kind")),
		mcp.WithString("remark", mcp.Description("Free text note stored with the version")),
		mcp.WithOutputSchema[domain.VersionRecord](),
	), mcp.NewStructuredToolHandler(s.handleCheckpoint))
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func payloadArg(args map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &domain.ValidationError{Field: key, Reason: err.Error()}
	}
	return out, nil
}

func (s *Server) respond(v session.View, collapsed domain.CollapseSet) OutlineResponse {
	return OutlineResponse{
		ProjectID: v.ID(),
		Version:   v.Snapshot().Meta.LatestVersion,
		Dirty:     v.Dirty(),
		Nodes:     v.Outline(collapsed),
	}
}

// view reads a project without opening an editing session.
func (s *Server) view(ctx context.Context, args map[string]interface{}) (session.View, error) {
	v, err := s.engine.View(ctx, stringArg(args, "project_id"))
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return v, nil
}

func (s *Server) open(ctx context.Context, args map[string]interface{}) (*session.Session, error) {
	sess, err := s.engine.Open(ctx, stringArg(args, "project_id"))
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return sess, nil
}

func (s *Server) handleGetOutline(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (OutlineResponse, error) {
	v, err := s.view(ctx, args)
	if err != nil {
		return OutlineResponse{}, err
	}
	var ids []string
	for _, id := range strings.Split(stringArg(args, "collapsed"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return s.respond(v, domain.NewCollapseSet(ids...)), nil
}

func (s *Server) handleAddNode(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (OutlineResponse, error) {
	payload, err := payloadArg(args, "payload")
	if err != nil {
		return OutlineResponse{}, err
	}
	sess, err := s.open(ctx, args)
	if err != nil {
		return OutlineResponse{}, err
	}
	node, err := exchange.SanitizeNode(domain.Node{
		ID:          stringArg(args, "node_id"),
		Label:       stringArg(args, "label"),
		Description: stringArg(args, "description"),
		Payload:     payload,
	})
	if err != nil {
		return OutlineResponse{}, err
	}
	if _, err := sess.AddChild(stringArg(args, "parent_id"), node); err != nil {
		return OutlineResponse{}, fmt.Errorf("add node failed: %w", err)
	}
	return s.respond(sess, nil), nil
}

func (s *Server) handleUpdateNode(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (OutlineResponse, error) {
	var patch domain.NodePatch
	for key, dst := range map[string]**string{
		"label":          &patch.Label,
		"description":    &patch.Description,
		"jump_target_id": &patch.JumpTargetID,
	} {
		if v, ok := args[key].(string); ok {
			*dst = &v
		}
	}
	set, err := payloadArg(args, "set_payload")
	if err != nil {
		return OutlineResponse{}, err
	}
	patch.SetPayload = set
	if patch, err = exchange.SanitizePatch(patch); err != nil {
		return OutlineResponse{}, err
	}

	sess, err := s.open(ctx, args)
	if err != nil {
		return OutlineResponse{}, err
	}
	if err := sess.UpdateNode(stringArg(args, "node_id"), patch); err != nil {
		return OutlineResponse{}, fmt.Errorf("update node failed: %w", err)
	}
	return s.respond(sess, nil), nil
}

func (s *Server) handleDeleteNode(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (OutlineResponse, error) {
	subtree, _ := args["subtree"].(bool)
	sess, err := s.open(ctx, args)
	if err != nil {
		return OutlineResponse{}, err
	}
	if err := sess.DeleteNode(stringArg(args, "node_id"), subtree); err != nil {
		return OutlineResponse{}, fmt.Errorf("delete node failed: %w", err)
	}
	return s.respond(sess, nil), nil
}

func (s *Server) handleReorder(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (OutlineResponse, error) {
	mode, err := domain.ParseDropMode(stringArg(args, "mode"))
	if err != nil {
		return OutlineResponse{}, err
	}
	sess, err := s.open(ctx, args)
	if err != nil {
		return OutlineResponse{}, err
	}
	intent := domain.DragIntent{
		DraggedID: stringArg(args, "dragged_id"),
		TargetID:  stringArg(args, "target_id"),
		Mode:      mode,
	}
	if err := sess.Reorder(intent); err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			s.logger.Warn("MCP Reorder: rejected", "err", err, "project_id", sess.ID())
		}
		return OutlineResponse{}, fmt.Errorf("reorder failed: %w", err)
	}
	return s.respond(sess, nil), nil
}

func (s *Server) handleGetChanges(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ChangesResponse, error) {
	v, err := s.view(ctx, args)
	if err != nil {
		return ChangesResponse{}, err
	}
	return ChangesResponse{
		ProjectID: v.ID(),
		Dirty:     v.Dirty(),
		Changes:   v.Changes(),
	}, nil
}

func (s *Server) handleCheckpoint(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.VersionRecord, error) {
	kind, err := domain.ParseCheckpointKind(stringArg(args, "kind"))
	if err != nil {
		return domain.VersionRecord{}, err
	}
	sess, err := s.open(ctx, args)
	if err != nil {
		return domain.VersionRecord{}, err
	}
	rec, err := sess.Checkpoint(ctx, kind, stringArg(args, "remark"))
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("checkpoint failed: %w", err)
	}
	return rec, nil
}

const (
	projectsURI       = "outline://projects"
	documentURIPrefix = "outline://projects/"
	documentURISuffix = "/document"
)

func (s *Server) registerResources() {
	// EXPOSE: outline://projects
	s.mcpServer.AddResource(mcp.NewResource(projectsURI, "Stored projects",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.engine.Projects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      projectsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	// EXPOSE: outline://projects/{id}/document
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(documentURIPrefix+"{id}"+documentURISuffix, "Outline document",
		mcp.WithTemplateMIMEType("text/markdown"),
	), s.readDocument)
}

func (s *Server) readDocument(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimSuffix(strings.TrimPrefix(uri, documentURIPrefix), documentURISuffix)
	if id == "" || id == uri {
		return nil, fmt.Errorf("invalid document uri %q", uri)
	}
	v, err := s.engine.View(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     document.Render(v.Snapshot(), nil, document.FormatMarkdown),
		},
	}, nil
}
