package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
	"github.com/mkorchagin/context-assistant/internal/core/ports"
)

// Searcher is the retrieval surface the built-in tools expose.
type Searcher interface {
	Search(ctx context.Context, query string, config domain.SearchConfig) ([]domain.SearchResult, error)
}

// NewKnowledgeBaseServer builds the in-process MCP server carrying the
// assistant's built-in tools: knowledge-base search and document
// listing.
func NewKnowledgeBaseServer(searcher Searcher, indexer ports.DocumentIndexer) *server.MCPServer {
	s := server.NewMCPServer(
		"context-assistant-tools",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	searchTool := mcp.NewTool("search_knowledge_base",
		mcp.WithDescription("Search the indexed documents for passages relevant to a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language search query.")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of passages to return.")),
	)
	s.AddTool(searchTool, searchHandler(searcher))

	listTool := mcp.NewTool("list_documents",
		mcp.WithDescription("List the documents currently available in the knowledge base."),
	)
	s.AddTool(listTool, listHandler(indexer))

	return s
}

func searchHandler(searcher Searcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		config := domain.DefaultSearchConfig()
		config.TopK = request.GetInt("top_k", config.TopK)

		results, err := searcher.Search(ctx, query, config)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcp.NewToolResultText("No matching passages found."), nil
		}

		var b strings.Builder
		for i, result := range results {
			fmt.Fprintf(&b, "%d. %s (similarity %.3f)\n%s\n\n", i+1, result.DocumentTitle, result.Similarity, result.Chunk.Content)
		}
		return mcp.NewToolResultText(strings.TrimSpace(b.String())), nil
	}
}

func listHandler(indexer ports.DocumentIndexer) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		documents := indexer.ListDocuments(ctx)
		if len(documents) == 0 {
			return mcp.NewToolResultText("The knowledge base is empty."), nil
		}

		var b strings.Builder
		for _, doc := range documents {
			fmt.Fprintf(&b, "- %s (%s)\n", doc.Title, doc.ID)
		}
		return mcp.NewToolResultText(strings.TrimSpace(b.String())), nil
	}
}
