// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the position store as tools for LLM integration via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/coords"
	"github.com/starford/geoplan/internal/models"
	"github.com/starford/geoplan/internal/placement"
)

// ContractURI is the resource holding the coordinate contract.
const ContractURI = "geoplan://coordinate-contract"

// Server wraps the MCP server with geoplan tools.
type Server struct {
	mcp *server.MCPServer
	svc *placement.Service
}

// New creates a new MCP server with all geoplan tools registered.
func New(svc *placement.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"geoplan",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_plans",
		mcp.WithDescription("List every registered floor plan with its pixel size and origin."),
	), s.listPlans)

	s.mcp.AddTool(mcp.NewTool("list_positions",
		mcp.WithDescription("List the placed geo codes of a plan. Coordinates are percentages (0-100)."),
		mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan id")),
		mcp.WithBoolean("with_details", mcp.Description("Include geo code code, label and category")),
	), s.listPositions)

	s.mcp.AddTool(mcp.NewTool("save_position",
		mcp.WithDescription("Place or move a geo code on a plan. Omit position_id to place; pass it to move "+
			"that exact position. Read the coordinate contract first via get_coordinate_contract or the "+
			ContractURI+" resource."),
		mcp.WithNumber("geo_code_id", mcp.Required(), mcp.Description("Geo code id")),
		mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan id")),
		mcp.WithNumber("pos_x", mcp.Required(), mcp.Description("Horizontal position, percent of plan width (0-100)")),
		mcp.WithNumber("pos_y", mcp.Required(), mcp.Description("Vertical position, percent of plan height (0-100)")),
		mcp.WithNumber("width", mcp.Description("Rendered width in pixels")),
		mcp.WithNumber("height", mcp.Description("Rendered height in pixels")),
		mcp.WithNumber("anchor_x", mcp.Description("Arrow target, percent of plan width")),
		mcp.WithNumber("anchor_y", mcp.Description("Arrow target, percent of plan height")),
		mcp.WithNumber("position_id", mcp.Description("Existing position to update")),
	), s.savePosition)

	s.mcp.AddTool(mcp.NewTool("remove_position",
		mcp.WithDescription("Remove one position. Removing an already removed position reports success=false."),
		mcp.WithNumber("position_id", mcp.Required(), mcp.Description("Position id")),
	), s.removePosition)

	s.mcp.AddTool(mcp.NewTool("remove_all_positions",
		mcp.WithDescription("Remove every instance of a geo code from a plan."),
		mcp.WithNumber("geo_code_id", mcp.Required(), mcp.Description("Geo code id")),
		mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan id")),
	), s.removeAllPositions)

	s.mcp.AddTool(mcp.NewTool("position_history",
		mcp.WithDescription("Audit log of placements, moves and removals on a plan, newest first."),
		mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan id")),
		mcp.WithNumber("geo_code_id", mcp.Description("Restrict to one geo code")),
		mcp.WithNumber("limit", mcp.Description("Max rows (default 100)")),
	), s.positionHistory)

	s.mcp.AddTool(mcp.NewTool("list_unplaced",
		mcp.WithDescription("List geo codes that have no position on a plan yet."),
		mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan id")),
	), s.listUnplaced)

	s.mcp.AddTool(mcp.NewTool("search_geo_codes",
		mcp.WithDescription("Search geo codes by code or label."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchGeoCodes)

	s.mcp.AddTool(mcp.NewTool("convert_coordinates",
		mcp.WithDescription("Convert between pixel and percent coordinates of a plan."),
		mcp.WithNumber("plan_id", mcp.Required(), mcp.Description("Plan id")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Input x")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Input y")),
		mcp.WithString("to", mcp.Required(), mcp.Enum("percent", "pixels"), mcp.Description("Target space")),
	), s.convertCoordinates)

	s.mcp.AddTool(mcp.NewTool("get_coordinate_contract",
		mcp.WithDescription("Returns the coordinate contract. Call this before saving positions."),
	), s.getCoordinateContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Coordinate Contract",
			mcp.WithResourceDescription("How positions, sizes and anchors are expressed."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// errorResult turns a service error into a tool error the model can act on.
func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrValidation):
		return mcp.NewToolResultError("invalid input: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func requireID(req mcp.CallToolRequest, name string) (int64, error) {
	v, err := req.RequireFloat(name)
	if err != nil {
		return 0, err
	}
	if v < 1 || v != float64(int64(v)) {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return int64(v), nil
}

func optionalFloat(req mcp.CallToolRequest, name string) *float64 {
	if _, ok := req.GetArguments()[name]; !ok {
		return nil
	}
	v := req.GetFloat(name, 0)
	return &v
}

func optionalInt(req mcp.CallToolRequest, name string) *int {
	if _, ok := req.GetArguments()[name]; !ok {
		return nil
	}
	v := req.GetInt(name, 0)
	return &v
}

func (s *Server) listPlans(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plans, err := s.svc.ListPlans(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(plans), nil
}

func (s *Server) listPositions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := requireID(req, "plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ps, err := s.svc.ListPositions(ctx, planID, req.GetBool("with_details", false))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(ps), nil
}

func (s *Server) savePosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	geoCodeID, err := requireID(req, "geo_code_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	planID, err := requireID(req, "plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	posX, err := req.RequireFloat("pos_x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	posY, err := req.RequireFloat("pos_y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	save := models.SaveRequest{
		GeoCodeID: geoCodeID, PlanID: planID, PosX: posX, PosY: posY,
		Width: optionalInt(req, "width"), Height: optionalInt(req, "height"),
		AnchorX: optionalFloat(req, "anchor_x"), AnchorY: optionalFloat(req, "anchor_y"),
	}
	if _, ok := req.GetArguments()["position_id"]; ok {
		id, err := requireID(req, "position_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		save.PositionID = &id
	}

	pos, err := s.svc.SavePosition(ctx, save)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(pos), nil
}

func (s *Server) removePosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "position_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.svc.RemovePosition(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]bool{"success": ok}), nil
}

func (s *Server) removeAllPositions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	geoCodeID, err := requireID(req, "geo_code_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	planID, err := requireID(req, "plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.svc.RemoveAllPositions(ctx, geoCodeID, planID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]bool{"success": ok}), nil
}

func (s *Server) positionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := requireID(req, "plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, err := s.svc.History(ctx, planID, int64(req.GetInt("geo_code_id", 0)), req.GetInt("limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(h), nil
}

func (s *Server) listUnplaced(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := requireID(req, "plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gcs, err := s.svc.ListUnplaced(ctx, planID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(gcs), nil
}

func (s *Server) searchGeoCodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gcs, err := s.svc.SearchGeoCodes(ctx, query, 20)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(gcs), nil
}

func (s *Server) convertCoordinates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID, err := requireID(req, "plan_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := req.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	plan, err := s.svc.GetPlan(ctx, planID)
	if err != nil {
		return errorResult(err), nil
	}

	frame := coords.FromPlan(*plan)
	var ox, oy float64
	switch to {
	case "percent":
		ox, oy = coords.ToPercent(x, y, frame)
	case "pixels":
		ox, oy = coords.ToPixels(x, y, frame)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown target space %q", to)), nil
	}
	if coords.IsNaN(ox, oy) {
		return mcp.NewToolResultError(fmt.Sprintf("plan %d has no usable size", planID)), nil
	}
	return jsonResult(map[string]float64{"x": ox, "y": oy}), nil
}

func (s *Server) getCoordinateContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CoordinateContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     CoordinateContract,
		},
	}, nil
}
