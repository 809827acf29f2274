package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/store"
)

// multipart overhead allowed on top of the document itself.
const multipartSlack = 1 << 20

// UploadDocument handles POST /api/documents (multipart/form-data, field
// "file", optional "caseId" and "clientId").
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, docservice.MaxDocumentBytes+multipartSlack)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	doc, err := h.docs.Upload(r.Context(), UserID(r.Context()), docservice.Upload{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
		CaseID:   r.FormValue("caseId"),
		ClientID: r.FormValue("clientId"),
		Source:   docservice.SourceUpload,
	})
	if err != nil {
		writeError(w, err, "upload document")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /api/documents, optionally filtered by caseId
// and clientId.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := h.docs.List(r.Context(), UserID(r.Context()), store.DocumentFilter{
		CaseID:   q.Get("caseId"),
		ClientID: q.Get("clientId"),
	})
	if err != nil {
		writeError(w, err, "list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// SearchDocuments handles GET /api/documents/search.
func (h *Handler) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.docs.Search(r.Context(), UserID(r.Context()), q, limit)
	if err != nil {
		writeError(w, err, "search documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GetDocument handles GET /api/documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DownloadDocument handles GET /api/documents/{id}/download.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, data, err := h.docs.Download(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "download document")
		return
	}
	ct := doc.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
