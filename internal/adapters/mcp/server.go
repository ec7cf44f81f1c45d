// Package mcpadapter exposes the review workbench as MCP tools so agents can
// read extracted assets and record verification decisions.
package mcpadapter

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

const serverName = "pid-asset-extractor"

type Tools struct {
	reader   ports.DiagramReader
	reviewer ports.AssetReviewer
}

func NewTools(reader ports.DiagramReader, reviewer ports.AssetReviewer) *Tools {
	return &Tools{reader: reader, reviewer: reviewer}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("get_diagram",
		mcp.WithDescription("Get a P&ID diagram record with its processing status."),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("Diagram id returned by upload.")),
	), tools.GetDiagram)

	s.AddTool(mcp.NewTool("list_diagrams",
		mcp.WithDescription("List the most recent diagrams of an owner."),
		mcp.WithString("user_id", mcp.Description("Owner reference, defaults to anonymous.")),
	), tools.ListDiagrams)

	s.AddTool(mcp.NewTool("list_assets",
		mcp.WithDescription("List the assets extracted from a diagram in extraction order."),
		mcp.WithString("diagram_id", mcp.Required(), mcp.Description("Diagram id.")),
	), tools.ListAssets)

	s.AddTool(mcp.NewTool("verify_asset",
		mcp.WithDescription("Mark an extracted asset as verified or unverified after review."),
		mcp.WithString("asset_id", mcp.Required(), mcp.Description("Asset id.")),
		mcp.WithBoolean("verified", mcp.Required(), mcp.Description("Verification decision.")),
	), tools.VerifyAsset)

	return s
}

func (t *Tools) GetDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	diagram, err := t.reader.GetDiagram(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(diagram)
}

func (t *Tools) ListDiagrams(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := ""
	if args := req.GetArguments(); args != nil {
		owner, _ = args["user_id"].(string)
	}
	diagrams, err := t.reader.ListDiagrams(ctx, owner, 0)
	if err != nil {
		return toolError(err), nil
	}
	if diagrams == nil {
		diagrams = []domain.Diagram{}
	}
	return jsonResult(diagrams)
}

func (t *Tools) ListAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	assets, err := t.reader.ListAssets(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if assets == nil {
		assets = []domain.Asset{}
	}
	return jsonResult(assets)
}

func (t *Tools) VerifyAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("asset_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	verified, err := req.RequireBool("verified")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	asset, err := t.reviewer.SetAssetVerified(ctx, id, verified)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(asset)
}

// toolError reports domain failures inside the result so the calling model
// can see the kind and react.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(domain.KindName(err) + ": " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
