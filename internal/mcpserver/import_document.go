package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/extract"
)

// importFormats maps accepted extensions to the media type stored.
var importFormats = map[string]string{
	".pdf":      extract.MIMEPDF,
	".docx":     extract.MIMEDOCX,
	".md":       extract.MIMEMarkdown,
	".markdown": extract.MIMEMarkdown,
	".txt":      extract.MIMEText,
}

// formatExts names sources that only carry a media type.
var formatExts = map[string]string{
	extract.MIMEPDF:      ".pdf",
	extract.MIMEDOCX:     ".docx",
	extract.MIMEMarkdown: ".md",
	extract.MIMEText:     ".txt",
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// source is raw document content awaiting import.
type source struct {
	data      []byte
	mediaType string // declared by the data URI or server; may be empty
	name      string // last URL path segment; may be empty
}

type importResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	HasText  bool   `json:"hasText"`
}

func (s *Server) importDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var src *source
	if strings.HasPrefix(rawURL, "data:") {
		src, err = parseDataURI(rawURL)
	} else {
		src, err = s.fetch.get(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(src.data) > docservice.MaxDocumentBytes {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(src.data), docservice.MaxDocumentBytes)), nil
	}

	name := importName(optionalString(req, "filename"), src)
	mediaType, err := checkFormat(name, src.data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.docs.Upload(ctx, s.userID, docservice.Upload{
		Name:     name,
		MimeType: mediaType,
		Data:     src.data,
		CaseID:   optionalString(req, "caseId"),
		ClientID: optionalString(req, "clientId"),
		Source:   docservice.SourceMCP,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(importResult{
		ID:       doc.ID,
		Name:     doc.Name,
		MimeType: doc.MimeType,
		Size:     doc.Size,
		HasText:  doc.ExtractedText != "",
	})
}

// parseDataURI decodes data:<type>[;params];base64,<payload>. Only the
// importable media types are accepted.
func parseDataURI(uri string) (*source, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URI: missing comma")
	}
	params := strings.Split(meta, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))

	encoded := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			encoded = true
		}
	}
	if !encoded {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}
	if _, ok := formatExts[mediaType]; !ok {
		return nil, fmt.Errorf("unsupported media type in data URI: %q", mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
	}
	return &source{data: data, mediaType: mediaType}, nil
}

// importName picks the stored document name: the requested one, else the
// URL's last segment, else a fresh id with the extension of the media type.
func importName(requested string, src *source) string {
	name := filepath.Base(strings.TrimSpace(requested))
	if requested == "" || name == "." || name == string(filepath.Separator) {
		name = src.name
	}
	if name == "" {
		ext, ok := formatExts[src.mediaType]
		if !ok {
			ext = ".bin"
		}
		name = uuid.NewString() + ext
	}
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "_")
	if name == "" || strings.Trim(name, ".") == "" {
		name = uuid.NewString()
	}
	return name
}

// checkFormat returns the media type for name's extension after checking
// the content looks like that format.
func checkFormat(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	mediaType, ok := importFormats[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file extension %q (allowed: pdf, docx, md, txt)", ext)
	}
	switch mediaType {
	case extract.MIMEPDF:
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			return "", fmt.Errorf("content is not a PDF")
		}
	case extract.MIMEDOCX:
		if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
			return "", fmt.Errorf("content is not a DOCX archive")
		}
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("content is not valid UTF-8 text")
		}
	}
	return mediaType, nil
}
