// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes pipeline status tools for LLM integration over streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/sceneservice"
)

// LayoutURI is the resource describing the output tree.
const LayoutURI = "timelapse://layout"

// Server wraps the MCP server with the status tools.
type Server struct {
	mcp *server.MCPServer
	svc *sceneservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *sceneservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Timelapse",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("satellite_for_year",
		mcp.WithDescription("Describe the Landsat generation used for a year: bands, catalog sensor, archive product code."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Calendar year, e.g. 1985")),
	), s.satelliteForYear)

	s.mcp.AddTool(mcp.NewTool("parse_scene_id",
		mcp.WithDescription("Split a 21-character Landsat scene identifier into its fields."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Scene identifier, e.g. LC81910562013110LGN01")),
	), s.parseSceneID)

	s.mcp.AddTool(mcp.NewTool("list_scenes",
		mcp.WithDescription("List the scenes recorded for a year with their processing status."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Calendar year")),
	), s.listScenes)

	s.mcp.AddTool(mcp.NewTool("get_scene",
		mcp.WithDescription("Get one scene's status, last error and files on disk."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Scene identifier")),
	), s.getScene)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List pipeline runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default all)")),
	), s.listRuns)

	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Output Layout",
			mcp.WithResourceDescription("Scene identifier fields, output file naming and the satellite table."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// Handler serves the MCP server over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found"), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) satelliteForYear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.svc.SatelliteForYear(ctx, year)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(info)
}

func (s *Server) parseSceneID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.ParseScene(ctx, token)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"id":          id,
		"satellite":   id.Satellite(),
		"archive_ref": id.ArchiveRef(),
	})
}

func (s *Server) listScenes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recs, err := s.svc.ListScenes(ctx, year)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(recs)
}

func (s *Server) getScene(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	token, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetScene(ctx, token)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(detail)
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.svc.ListRuns(ctx, req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(runs)
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     OutputLayout,
		},
	}, nil
}
