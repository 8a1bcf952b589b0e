// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes schemaview tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/schemaview/internal/apperr"
	"github.com/starford/schemaview/internal/explorer"
)

// TreeFormatURI is the resource describing node and tree payloads.
const TreeFormatURI = "schemaview://tree-format"

// Server wraps the MCP server with schemaview tools.
type Server struct {
	mcp *server.MCPServer
	svc *explorer.Service
}

// New creates a new MCP server with all schemaview tools registered.
func New(svc *explorer.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"schemaview",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_schemas",
		mcp.WithDescription("List schema files in the catalog, one path per line."),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.listSchemas)

	s.mcp.AddTool(mcp.NewTool("read_schema",
		mcp.WithDescription("Read the raw content of a JSON or YAML schema file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the schema (e.g. shapes/point.json)")),
	), s.readSchema)

	s.mcp.AddTool(mcp.NewTool("search_schemas",
		mcp.WithDescription("Full-text search through schema titles, descriptions and property names."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchSchemas)

	s.mcp.AddTool(mcp.NewTool("get_referrers",
		mcp.WithDescription("Find all schema files whose $ref points into the specified file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the referenced schema")),
	), s.getReferrers)

	s.mcp.AddTool(mcp.NewTool("open_tree",
		mcp.WithDescription("Open a lazily populated tree over a schema. References stay collapsed "+
			"until unwrap_node is called on them. Read "+TreeFormatURI+" for the payload format."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the schema")),
		mcp.WithNumber("expanded_depth", mcp.Description("Levels populated and shown open (default 1)")),
		mcp.WithBoolean("merge_all_of", mcp.Description("Fold allOf branches into their parent")),
		mcp.WithNumber("limit_property_count", mcp.Description("Maximum properties returned by list_properties")),
	), s.openTree)

	s.mcp.AddTool(mcp.NewTool("unwrap_node",
		mcp.WithDescription("Expand one node of an open tree, following its $ref if it has one."),
		mcp.WithString("tree_id", mcp.Required(), mcp.Description("Tree id returned by open_tree")),
		mcp.WithNumber("node", mcp.Required(), mcp.Description("Node id from the tree rows")),
	), s.unwrapNode)

	s.mcp.AddTool(mcp.NewTool("list_properties",
		mcp.WithDescription("List the properties of a node, honouring the tree's property limit."),
		mcp.WithString("tree_id", mcp.Required(), mcp.Description("Tree id returned by open_tree")),
		mcp.WithNumber("node", mcp.Description("Node id; omit for the top-level properties")),
	), s.listProperties)

	s.mcp.AddTool(mcp.NewTool("render_tree",
		mcp.WithDescription("Render the visible rows of an open tree as an indented outline."),
		mcp.WithString("tree_id", mcp.Required(), mcp.Description("Tree id returned by open_tree")),
	), s.renderTree)

	s.mcp.AddTool(mcp.NewTool("get_tree_format",
		mcp.WithDescription("Returns the tree payload format contract."),
	), s.getTreeFormat)

	s.mcp.AddResource(
		mcp.NewResource(TreeFormatURI, "Tree Format Contract",
			mcp.WithResourceDescription("JSON shape of tree, node and property payloads."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTreeFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListSchemas(ctx, req.GetInt("limit", 0), req.GetInt("offset", 0), "path")
	if err != nil {
		return toolError(err), nil
	}
	paths := make([]string, 0, len(items))
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	if len(paths) < total {
		paths = append(paths, fmt.Sprintf("(%d of %d)", len(paths), total))
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) readSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetSchema(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(detail.Content), nil
}

func (s *Server) searchSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results)
}

func (s *Server) getReferrers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs, err := s.svc.Referrers(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	if len(refs) == 0 {
		return mcp.NewToolResultText("no referrers found"), nil
	}
	return mcp.NewToolResultText(strings.Join(refs, "\n")), nil
}

func (s *Server) openTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var opts explorer.TreeOptions
	args := req.GetArguments()
	if _, ok := args["expanded_depth"]; ok {
		d := req.GetInt("expanded_depth", 0)
		opts.ExpandedDepth = &d
	}
	if _, ok := args["merge_all_of"]; ok {
		m := req.GetBool("merge_all_of", false)
		opts.MergeAllOf = &m
	}
	if _, ok := args["limit_property_count"]; ok {
		l := req.GetInt("limit_property_count", 0)
		opts.LimitPropertyCount = &l
	}
	view, err := s.svc.OpenTree(ctx, path, opts)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view)
}

func (s *Server) unwrapNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("tree_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := req.RequireInt("node")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.Unwrap(ctx, id, node)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view)
}

func (s *Server) listProperties(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("tree_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var node *int
	if _, ok := req.GetArguments()["node"]; ok {
		n := req.GetInt("node", 0)
		node = &n
	}
	view, err := s.svc.Properties(ctx, id, node)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view)
}

func (s *Server) renderTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("tree_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	if err := s.svc.RenderTree(ctx, id, &b); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getTreeFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TreeFormatContract), nil
}

func (s *Server) readTreeFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      TreeFormatURI,
			MIMEType: "text/markdown",
			Text:     TreeFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a service error into a tool-level error result.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}
