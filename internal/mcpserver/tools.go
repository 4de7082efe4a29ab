package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	sdkserver "github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/rechtsinfo"
)

// Tool names.
const (
	ToolSearchLegislation = "search_legislation"
	ToolSearchCaseLaw     = "search_case_law"
	ToolSearchDocuments   = "search_documents"
	ToolGetCaseLaw        = "get_case_law"
	ToolGetLegislation    = "get_legislation"
)

type searchFunc func(context.Context, rechtsinfo.Query) (*rechtsinfo.SearchResult, error)

func registerTools(srv *sdkserver.MCPServer, lk Lookup) {
	limit := mcp.WithNumber("limit",
		mcp.Description("Maximum number of results (1-100)"),
		mcp.Min(1),
		mcp.Max(rechtsinfo.MaxPageSize),
		mcp.DefaultNumber(rechtsinfo.DefaultPageSize),
	)
	query := mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Search terms, e.g. \"Mietminderung Schimmel\" or \"§ 823 BGB\""),
	)

	srv.AddTool(mcp.NewTool(ToolSearchLegislation,
		mcp.WithDescription("Search German federal legislation (laws and ordinances) by keyword."),
		query, limit,
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	), searchHandler(lk.SearchLegislation, false))

	srv.AddTool(mcp.NewTool(ToolSearchCaseLaw,
		mcp.WithDescription("Search decisions of the German federal courts by keyword."),
		query, limit,
		mcp.WithString("court", mcp.Description("Restrict to one court type, e.g. BGH, BVerwG, BFH, BAG, BSG, BVerfG")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	), searchHandler(lk.SearchCaseLaw, true))

	srv.AddTool(mcp.NewTool(ToolSearchDocuments,
		mcp.WithDescription("Search legislation and case law together."),
		query, limit,
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	), searchHandler(lk.SearchDocuments, false))

	srv.AddTool(mcp.NewTool(ToolGetCaseLaw,
		mcp.WithDescription("Fetch one court decision by its document number (as returned by search_case_law)."),
		mcp.WithString("document_number", mcp.Required(), mcp.Description("Document number, e.g. KORE600500000")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		num, err := req.RequireString("document_number")
		if err != nil || strings.TrimSpace(num) == "" {
			return mcp.NewToolResultError("document_number is required"), nil
		}
		item, err := lk.CaseLaw(ctx, strings.TrimSpace(num))
		if err != nil {
			return lookupError("decision "+num, err), nil
		}
		return mcp.NewToolResultText(formatItem(item)), nil
	})

	srv.AddTool(mcp.NewTool(ToolGetLegislation,
		mcp.WithDescription("Fetch one legislation expression by its ELI (as returned by search_legislation)."),
		mcp.WithString("eli", mcp.Required(), mcp.Description("European Legislation Identifier, e.g. eli/bund/bgbl-1/1896/s195/2020-06-19/10/deu")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		eli, err := req.RequireString("eli")
		if err != nil || strings.TrimSpace(eli) == "" {
			return mcp.NewToolResultError("eli is required"), nil
		}
		item, err := lk.Legislation(ctx, strings.TrimSpace(eli))
		if err != nil {
			return lookupError("legislation "+eli, err), nil
		}
		return mcp.NewToolResultText(formatItem(item)), nil
	})
}

func searchHandler(search searchFunc, withCourt bool) sdkserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		term, err := req.RequireString("query")
		if err != nil || strings.TrimSpace(term) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		q := rechtsinfo.Query{
			Term: strings.TrimSpace(term),
			Size: rechtsinfo.ClampSize(req.GetInt("limit", rechtsinfo.DefaultPageSize)),
		}
		if withCourt {
			q.Court = strings.TrimSpace(req.GetString("court", ""))
		}
		res, err := search(ctx, q)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("search failed", err), nil
		}
		return mcp.NewToolResultText(formatSearch(q, res)), nil
	}
}

func lookupError(what string, err error) *mcp.CallToolResult {
	if errors.Is(err, rechtsinfo.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s not found", what))
	}
	return mcp.NewToolResultErrorFromErr("lookup failed", err)
}
