// Package extract turns uploaded document bytes into plain text for search
// and chat context.
package extract

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported is returned for formats no extractor handles.
var ErrUnsupported = errors.New("extract: unsupported format")

// Supported MIME types.
const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEMarkdown = "text/markdown"
	MIMEText     = "text/plain"
)

var extTypes = map[string]string{
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".txt":      MIMEText,
	".csv":      "text/csv",
	".json":     "application/json",
}

// DetectMIME resolves the media type of an upload. A declared type other
// than the generic octet-stream wins; otherwise the file extension and
// finally content sniffing decide.
func DetectMIME(name, declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if mt, ok := extTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// Text extracts readable text from data of the given media type.
func Text(mimeType string, data []byte) (string, error) {
	switch {
	case mimeType == MIMEPDF:
		return pdfText(data)
	case mimeType == MIMEDOCX:
		return docxText(data)
	case mimeType == MIMEMarkdown:
		return Markdown(data).Text(), nil
	case strings.HasPrefix(mimeType, "text/"), mimeType == "application/json":
		if !utf8.Valid(data) {
			return strings.ToValidUTF8(string(data), ""), nil
		}
		return string(data), nil
	default:
		return "", ErrUnsupported
	}
}
