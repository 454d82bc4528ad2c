package mcpServer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/akolanti/PageIndexAPI/internal/pageindex"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverName = "pageindex"

type SearchInput struct {
	DocID    string `json:"doc_id" jsonschema:"id of an indexed document, see list_documents"`
	Question string `json:"question" jsonschema:"natural language question to answer from the document"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"how many tree levels to descend, 0 uses the server default"`
}

type PageInput struct {
	DocID string `json:"doc_id" jsonschema:"id of an indexed document"`
	Page  int    `json:"page" jsonschema:"1-indexed page number"`
}

type ListInput struct {
	Validate bool `json:"validate,omitempty" jsonschema:"drop entries whose tree artifact is missing"`
}

type tools struct {
	service pageindex.Service
	logger  *logger_i.Logger
}

// New returns an MCP server exposing list_documents, search_document and
// get_page over the given service.
func New(service pageindex.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	t := &tools{service: service, logger: logger_i.NewLogger("mcp_server")}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List every indexed PDF with its doc_id, title and page count.",
	}, t.listDocuments)
	mcp.AddTool(server, &mcp.Tool{
		Name: "search_document",
		Description: "Find the pages of one document that answer a question by reasoning over its " +
			"table-of-contents tree. Returns relevant pages, page text citations and the reasoning trace.",
	}, t.searchDocument)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_page",
		Description: "Return the extracted text of one page of an indexed document.",
	}, t.getPage)
	return server
}

// HTTPHandler serves the same tools over streamable HTTP.
func HTTPHandler(service pageindex.Service, version string) http.Handler {
	server := New(service, version)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

// Serve runs the tools over stdio until ctx is done or the client hangs up.
func Serve(ctx context.Context, service pageindex.Service, version string) error {
	return New(service, version).Run(ctx, &mcp.StdioTransport{})
}

func (t *tools) listDocuments(ctx context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, any, error) {
	docs, err := t.service.ListDocuments(ctx, in.Validate)
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{"documents": docs, "count": len(docs)})
}

func (t *tools) searchDocument(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	t.logger.WithContext(ctx).Info("mcp_search", "doc_id", in.DocID, "max_depth", in.MaxDepth)
	res, err := t.service.Query(ctx, in.DocID, in.Question, in.MaxDepth)
	if err != nil {
		return nil, nil, err
	}
	return textResult(res)
}

func (t *tools) getPage(ctx context.Context, _ *mcp.CallToolRequest, in PageInput) (*mcp.CallToolResult, any, error) {
	page, err := t.service.GetPage(ctx, in.DocID, in.Page)
	if err != nil {
		return nil, nil, err
	}
	return textResult(page)
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
