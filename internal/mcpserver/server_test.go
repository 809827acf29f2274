package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/casedesk/internal/chat"
	"github.com/starford/casedesk/internal/chatctx"
	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/models"
	"github.com/starford/casedesk/internal/store"
	"github.com/starford/casedesk/internal/testutil"
)

func testServer(t *testing.T) (*Server, *store.DB, string) {
	t.Helper()
	db := testutil.TestDB(t)
	_, blobs := testutil.TestBlobs(t)
	u := testutil.TestUser(t, db, "mcp@example.com")

	docs := docservice.NewService(blobs, db, nil, nil, nil)
	relay := chat.NewRelay(chatctx.NewBuilder(db, 0), nil)
	return New(u.ID, db, docs, relay), db, u.ID
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_chat_context":
		result, err = srv.getChatContext(ctx, req)
	case "list_clients":
		result, err = srv.listClients(ctx, req)
	case "list_cases":
		result, err = srv.listCases(ctx, req)
	case "search_documents":
		result, err = srv.searchDocuments(ctx, req)
	case "read_document":
		result, err = srv.readDocument(ctx, req)
	case "import_document":
		result, err = srv.importDocument(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func dataURI(mimeType, content string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func TestImportAndReadDocument(t *testing.T) {
	srv, _, _ := testServer(t)

	r := callTool(t, srv, "import_document", map[string]interface{}{
		"url":      dataURI("text/plain", "Deposition scheduled for March 3."),
		"filename": "deposition notes.txt",
	})
	if r.IsError {
		t.Fatalf("import failed: %s", resultText(r))
	}
	var res importResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Name != "deposition_notes.txt" || !res.HasText {
		t.Errorf("import result = %+v", res)
	}

	r = callTool(t, srv, "read_document", map[string]interface{}{"id": res.ID})
	if got := resultText(r); got != "# deposition_notes.txt\n\nDeposition scheduled for March 3." {
		t.Errorf("read result = %q", got)
	}

	r = callTool(t, srv, "search_documents", map[string]interface{}{"query": "deposition"})
	if !strings.Contains(resultText(r), res.ID) {
		t.Errorf("search result = %q", resultText(r))
	}
}

func TestImportRejections(t *testing.T) {
	srv, _, _ := testServer(t)

	tests := map[string]map[string]interface{}{
		"unsupported mime": {"url": dataURI("image/png", "x")},
		"bad extension":    {"url": dataURI("text/plain", "x"), "filename": "run.exe"},
		"fake pdf":         {"url": dataURI("application/pdf", "not a pdf")},
		"loopback":         {"url": "http://127.0.0.1/brief.pdf"},
		"metadata":         {"url": "http://169.254.169.254/latest/meta-data"},
		"scheme":           {"url": "file:///etc/passwd"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if r := callTool(t, srv, "import_document", args); !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestReadDocumentMissing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "read_document", map[string]interface{}{"id": "nope"})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("expected not found error, got %q", resultText(r))
	}
}

func TestListClientsAndCases(t *testing.T) {
	srv, db, userID := testServer(t)
	ctx := context.Background()

	c := &models.Client{UserID: userID, Name: "Acme Ltd"}
	if err := db.CreateClient(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateCase(ctx, &models.Case{UserID: userID, ClientID: c.ID, Title: "Acme v. Widgets"}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateCase(ctx, &models.Case{UserID: userID, Title: "Unrelated"}); err != nil {
		t.Fatal(err)
	}

	if r := callTool(t, srv, "list_clients", map[string]interface{}{}); !strings.Contains(resultText(r), "Acme Ltd") {
		t.Errorf("clients = %q", resultText(r))
	}

	r := callTool(t, srv, "list_cases", map[string]interface{}{"clientId": c.ID})
	var cases []models.Case
	if err := json.Unmarshal([]byte(resultText(r)), &cases); err != nil {
		t.Fatal(err)
	}
	if len(cases) != 1 || cases[0].Title != "Acme v. Widgets" {
		t.Errorf("cases = %+v", cases)
	}
}

func TestGetChatContext(t *testing.T) {
	srv, db, userID := testServer(t)
	ctx := context.Background()

	if r := callTool(t, srv, "get_chat_context", map[string]interface{}{}); resultText(r) != "no context" {
		t.Errorf("empty context = %q", resultText(r))
	}

	cs := &models.Case{UserID: userID, Title: "Estate of Doe", Description: "Probate"}
	if err := db.CreateCase(ctx, cs); err != nil {
		t.Fatal(err)
	}
	r := callTool(t, srv, "get_chat_context", map[string]interface{}{"caseId": cs.ID})
	if !strings.HasPrefix(resultText(r), "Case Information:\nTitle: Estate of Doe\nDescription: Probate") {
		t.Errorf("context = %q", resultText(r))
	}
}

func TestInstructionResource(t *testing.T) {
	srv, _, _ := testServer(t)
	contents, err := srv.readInstructionResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.Text != chat.SystemInstruction || tc.URI != InstructionURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
