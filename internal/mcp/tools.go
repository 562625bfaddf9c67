package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/lumenlearn/lumen/internal/ctxutil"
)

func (s *Server) registerTools() {
	// lumen_ask — chat with a compliance document.
	s.mcpServer.AddTool(
		mcplib.NewTool("lumen_ask",
			mcplib.WithDescription(`Ask the document assistant a question about a specific compliance document.

The assistant answers with the document's sections, project context, and the
organization's knowledge base in scope, and the exchange is recorded in the
document's conversation history.

WHEN TO USE: to understand what a document covers, check whether a section
addresses a requirement, or ask for drafting suggestions in context.`),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("document_id",
				mcplib.Description("UUID of the document to ask about"),
				mcplib.Required(),
			),
			mcplib.WithString("message",
				mcplib.Description("Your question or request, in natural language"),
				mcplib.Required(),
			),
		),
		s.handleAsk,
	)

	// lumen_knowledge_search — term search over the org's knowledge base.
	s.mcpServer.AddTool(
		mcplib.NewTool("lumen_knowledge_search",
			mcplib.WithDescription(`Search an organization's knowledge base by literal term overlap.

Returns reference entries ranked by how many of your query terms they
contain. This is term matching, not semantic search: use concrete words
that would appear in the material ("harness inspection", not "fall safety
concepts").`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("org_id",
				mcplib.Description("UUID of the organization whose knowledge base to search"),
				mcplib.Required(),
			),
			mcplib.WithString("query",
				mcplib.Description("Search terms"),
				mcplib.Required(),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of entries to return"),
				mcplib.Min(1),
				mcplib.Max(25),
				mcplib.DefaultNumber(5),
			),
		),
		s.handleKnowledgeSearch,
	)
}

func (s *Server) handleAsk(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	subject := ctxutil.SubjectFromContext(ctx)
	if subject == "" {
		return errorResult("not authenticated"), nil
	}

	docID, err := uuid.Parse(request.GetString("document_id", ""))
	if err != nil {
		return errorResult("document_id must be a UUID"), nil
	}
	message := request.GetString("message", "")

	resp, err := s.svc.SendMessage(ctx, subject, docID, message)
	if err != nil {
		return errorResult(fmt.Sprintf("ask failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(resp, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleKnowledgeSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	subject := ctxutil.SubjectFromContext(ctx)
	if subject == "" {
		return errorResult("not authenticated"), nil
	}

	orgID, err := uuid.Parse(request.GetString("org_id", ""))
	if err != nil {
		return errorResult("org_id must be a UUID"), nil
	}
	query := request.GetString("query", "")
	limit := request.GetInt("limit", 5)

	matches, err := s.svc.KnowledgeSearch(ctx, subject, orgID, query, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil
	}

	type entry struct {
		ID    string   `json:"id"`
		Title string   `json:"title"`
		Score int      `json:"score"`
		Tags  []string `json:"tags,omitempty"`
	}
	entries := make([]entry, len(matches))
	for i, m := range matches {
		entries[i] = entry{
			ID:    m.Doc.ID.String(),
			Title: m.Doc.Title,
			Score: m.Score,
			Tags:  m.Doc.Tags,
		}
	}

	resultData, _ := json.MarshalIndent(map[string]any{
		"matches": entries,
		"count":   len(entries),
	}, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
