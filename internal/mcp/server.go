// Package mcp provides a Model Context Protocol server for Viewscope.
//
// It exposes the dynamic view engine's operations (create, list, get,
// delete, live-check, live-flag, rename) as MCP tools over stdio, and the
// current view list as an MCP resource.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/obliq-labs/viewscope/internal/store"
	"github.com/obliq-labs/viewscope/internal/view"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Engine  *view.Engine
	Version string
}

// dbMu serializes MCP tool calls that touch the database. The mcp-go library
// dispatches handlers concurrently via goroutines, and SQLite supports only
// one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all Viewscope tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Viewscope",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerCreateTool(s, cfg.Engine)
	registerListTool(s, cfg.Engine)
	registerGetTool(s, cfg.Engine)
	registerDeleteTool(s, cfg.Engine)
	registerCheckMessageTool(s, cfg.Engine)
	registerSetLiveTool(s, cfg.Engine)
	registerRenameTool(s, cfg.Engine)

	registerViewsResource(s, cfg.Engine)

	return s
}

// viewJSON is the wire shape for a view across tools and resources.
type viewJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Criteria     string   `json:"criteria"`
	Context      string   `json:"context"`
	Keywords     []string `json:"keywords"`
	Concepts     []string `json:"concepts"`
	IsLive       bool     `json:"is_live"`
	MessageCount int      `json:"message_count"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func toViewJSON(v *store.View) viewJSON {
	keywords := v.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	concepts := v.Concepts
	if concepts == nil {
		concepts = []string{}
	}
	return viewJSON{
		ID:           v.ID,
		Name:         v.Name,
		Criteria:     v.Criteria,
		Context:      v.Context,
		Keywords:     keywords,
		Concepts:     concepts,
		IsLive:       v.IsLive,
		MessageCount: v.MessageCount,
		CreatedAt:    v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    v.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func registerCreateTool(s *server.MCPServer, engine *view.Engine) {
	tool := mcp.NewTool("view_create",
		mcp.WithDescription("Create a dynamic view: describe what to collect in natural language (e.g. 'messages about the house sale') and the engine finds, scores, and collects matching messages from all conversations. The view stays live, matching future messages."),
		mcp.WithString("criteria",
			mcp.Required(),
			mcp.Description("Free-text collection criteria"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		criteria, err := req.RequireString("criteria")
		if err != nil {
			return mcp.NewToolResultError("criteria is required"), nil
		}

		v, err := engine.CreateView(ctx, criteria)
		if errors.Is(err, view.ErrEmptyCriteria) {
			return mcp.NewToolResultError("criteria is required"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("creating view: %v", err)), nil
		}
		return jsonResult(toViewJSON(v))
	})
}

func registerListTool(s *server.MCPServer, engine *view.Engine) {
	tool := mcp.NewTool("view_list",
		mcp.WithDescription("List all dynamic views with their live message counts."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		views, err := engine.ListViews(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing views: %v", err)), nil
		}
		out := make([]viewJSON, 0, len(views))
		for _, v := range views {
			out = append(out, toViewJSON(v))
		}
		return jsonResult(out)
	})
}

func registerGetTool(s *server.MCPServer, engine *view.Engine) {
	tool := mcp.NewTool("view_get",
		mcp.WithDescription("Get a single dynamic view with its collected messages."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("view_id", mcp.Required(), mcp.Description("View id")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("view_id")
		if err != nil {
			return mcp.NewToolResultError("view_id is required"), nil
		}

		v, members, err := engine.GetView(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("view %s not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("getting view: %v", err)), nil
		}

		return jsonResult(struct {
			viewJSON
			Messages []*store.ViewMessage `json:"messages"`
		}{toViewJSON(v), members})
	})
}

func registerDeleteTool(s *server.MCPServer, engine *view.Engine) {
	tool := mcp.NewTool("view_delete",
		mcp.WithDescription("Delete a dynamic view (or all views) along with its membership records. Original messages are untouched."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("view_id", mcp.Description("View id; omit with all=true to delete every view")),
		mcp.WithBoolean("all", mcp.Description("Delete all views")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		if req.GetBool("all", false) {
			if err := engine.DeleteAllViews(ctx); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("deleting views: %v", err)), nil
			}
			return mcp.NewToolResultText("all views deleted"), nil
		}

		id, err := req.RequireString("view_id")
		if err != nil {
			return mcp.NewToolResultError("view_id is required (or pass all=true)"), nil
		}
		err = engine.DeleteView(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("view %s not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("deleting view: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("view %s deleted", id)), nil
	})
}

func registerCheckMessageTool(s *server.MCPServer, engine *view.Engine) {
	tool := mcp.NewTool("view_check_message",
		mcp.WithDescription("Check a just-created message against every live view; returns the views it was newly added to."),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("Message id")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("message_id")
		if err != nil {
			return mcp.NewToolResultError("message_id is required"), nil
		}

		matches, err := engine.CheckMessage(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("message %s not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("checking message: %v", err)), nil
		}
		if matches == nil {
			matches = []view.Match{}
		}
		return jsonResult(matches)
	})
}

func registerSetLiveTool(s *server.MCPServer, engine *view.Engine) {
	tool := mcp.NewTool("view_set_live",
		mcp.WithDescription("Enable or disable live matching for a view. Recorded matches are kept either way."),
		mcp.WithString("view_id", mcp.Required(), mcp.Description("View id")),
		mcp.WithBoolean("is_live", mcp.Required(), mcp.Description("Whether new messages are checked against this view")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("view_id")
		if err != nil {
			return mcp.NewToolResultError("view_id is required"), nil
		}
		isLive, err := req.RequireBool("is_live")
		if err != nil {
			return mcp.NewToolResultError("is_live is required"), nil
		}

		v, err := engine.SetLive(ctx, id, isLive)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("view %s not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("updating view: %v", err)), nil
		}
		return jsonResult(toViewJSON(v))
	})
}

func registerRenameTool(s *server.MCPServer, engine *view.Engine) {
	tool := mcp.NewTool("view_rename",
		mcp.WithDescription("Rename a view. The collection criteria never changes."),
		mcp.WithString("view_id", mcp.Required(), mcp.Description("View id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("New display name")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("view_id")
		if err != nil {
			return mcp.NewToolResultError("view_id is required"), nil
		}
		name, err := req.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError("name is required"), nil
		}

		v, err := engine.Rename(ctx, id, name)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("view %s not found", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("renaming view: %v", err)), nil
		}
		return jsonResult(toViewJSON(v))
	})
}

// --- Resources ---

func registerViewsResource(s *server.MCPServer, engine *view.Engine) {
	resource := mcp.NewResource(
		"viewscope://views",
		"Dynamic views",
		mcp.WithResourceDescription("All dynamic views with live message counts"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		views, err := engine.ListViews(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing views: %w", err)
		}
		out := make([]viewJSON, 0, len(views))
		for _, v := range views {
			out = append(out, toViewJSON(v))
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding views: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
