// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes a user's casedesk records to LLM tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/chat"
	"github.com/starford/casedesk/internal/chatctx"
	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/store"
)

// InstructionURI is the resource exposing the assistant instruction.
const InstructionURI = "casedesk://assistant-instruction"

// Server wraps the MCP server with casedesk tools. Every tool runs as the
// single user the server was created for.
type Server struct {
	mcp    *server.MCPServer
	userID string
	db     *store.DB
	docs   *docservice.Service
	relay  *chat.Relay
	fetch  *remoteFetcher
}

// New creates a new MCP server scoped to userID with all tools registered.
func New(userID string, db *store.DB, docs *docservice.Service, relay *chat.Relay) *Server {
	s := &Server{
		userID: userID,
		db:     db,
		docs:   docs,
		relay:  relay,
		fetch:  newRemoteFetcher(publicAddr),
	}

	s.mcp = server.NewMCPServer(
		"Casedesk",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_chat_context",
		mcp.WithDescription("Render the case, client and document context the Casedesk assistant would see. "+
			"All arguments are optional; with none the context is empty."),
		mcp.WithString("caseId", mcp.Description("Case id")),
		mcp.WithString("clientId", mcp.Description("Client id")),
		mcp.WithString("documentIds", mcp.Description("Comma-separated document ids")),
	), s.getChatContext)

	s.mcp.AddTool(mcp.NewTool("list_clients",
		mcp.WithDescription("List all clients."),
	), s.listClients)

	s.mcp.AddTool(mcp.NewTool("list_cases",
		mcp.WithDescription("List cases, newest first, optionally for one client."),
		mcp.WithString("clientId", mcp.Description("Optional client id filter")),
	), s.listCases)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document names and extracted text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the extracted text of a document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("import_document",
		mcp.WithDescription("Import a document from a base64 data URI or an http(s) URL. "+
			"Supported formats: pdf, docx, md, txt."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data: URI or http(s) URL")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
		mcp.WithString("caseId", mcp.Description("Optional case to attach the document to")),
		mcp.WithString("clientId", mcp.Description("Optional client to attach the document to")),
	), s.importDocument)

	s.mcp.AddResource(
		mcp.NewResource(InstructionURI, "Assistant Instruction",
			mcp.WithResourceDescription("System instruction the Casedesk assistant runs with."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readInstructionResource,
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

func optionalString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return strings.TrimSpace(v)
	}
	return ""
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) getChatContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cr := chatctx.Request{
		CaseID:   optionalString(req, "caseId"),
		ClientID: optionalString(req, "clientId"),
	}
	for _, id := range strings.Split(optionalString(req, "documentIds"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cr.DocumentIDs = append(cr.DocumentIDs, id)
		}
	}
	text, err := s.relay.Context(ctx, chat.Caller{UserID: s.userID}, cr)
	if err != nil {
		return errorResult(err), nil
	}
	if text == "" {
		return mcp.NewToolResultText("no context"), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) listClients(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clients, err := s.db.ListClients(ctx, s.userID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(clients)
}

func (s *Server) listCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cases, err := s.db.ListCases(ctx, s.userID, optionalString(req, "clientId"))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(cases)
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.docs.Search(ctx, s.userID, query, 20)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(results)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.docs.Get(ctx, s.userID, id)
	if err != nil {
		return errorResult(err), nil
	}
	text := doc.ExtractedText
	if text == "" {
		text = "(no extracted text)"
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s\n\n%s", doc.Name, text)), nil
}

func (s *Server) readInstructionResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      InstructionURI,
			MIMEType: "text/plain",
			Text:     chat.SystemInstruction,
		},
	}, nil
}
