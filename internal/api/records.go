package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/casedesk/internal/models"
)

// ListClients handles GET /api/clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.db.ListClients(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err, "list clients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

// CreateClient handles POST /api/clients.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	userID := UserID(r.Context())
	c := &models.Client{
		ID:      uuid.NewString(),
		UserID:  userID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Company: req.Company,
		Status:  req.Status,
	}
	if c.Status == "" {
		c.Status = models.ClientActive
	}
	if err := h.db.CreateClient(r.Context(), c); err != nil {
		writeError(w, err, "create client")
		return
	}
	h.broker.PublishRecordEvent(userID, "client.created", c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// GetClient handles GET /api/clients/{id}.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.db.GetClient(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get client")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteClient handles DELETE /api/clients/{id}.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteClient(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "delete client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListClientNotes handles GET /api/clients/{id}/notes, newest first.
func (h *Handler) ListClientNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, clientID := UserID(ctx), chi.URLParam(r, "id")
	if _, err := h.db.GetClient(ctx, userID, clientID); err != nil {
		writeError(w, err, "get client")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notes, err := h.db.RecentClientNotes(ctx, userID, clientID, limit)
	if err != nil {
		writeError(w, err, "list client notes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// CreateClientNote handles POST /api/clients/{id}/notes.
func (h *Handler) CreateClientNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	n := &models.ClientNote{UserID: UserID(r.Context()), ClientID: chi.URLParam(r, "id"), Content: req.Content}
	if err := h.db.CreateClientNote(r.Context(), n); err != nil {
		writeError(w, err, "create client note")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// ListCases handles GET /api/cases, optionally filtered by clientId.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.db.ListCases(r.Context(), UserID(r.Context()), r.URL.Query().Get("clientId"))
	if err != nil {
		writeError(w, err, "list cases")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

// CreateCase handles POST /api/cases.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req CaseRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	ctx := r.Context()
	userID := UserID(ctx)
	c := &models.Case{
		ID:          uuid.NewString(),
		UserID:      userID,
		ClientID:    req.ClientID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	}
	if c.Status == "" {
		c.Status = models.CaseOpen
	}
	if err := h.db.CreateCase(ctx, c); err != nil {
		writeError(w, err, "create case")
		return
	}
	h.broker.PublishRecordEvent(userID, "case.created", c.ID)

	created, err := h.db.GetCase(ctx, userID, c.ID)
	if err != nil {
		writeError(w, err, "get case")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetCase handles GET /api/cases/{id}.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.db.GetCase(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "get case")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateCaseStatus handles PATCH /api/cases/{id}/status.
func (h *Handler) UpdateCaseStatus(w http.ResponseWriter, r *http.Request) {
	var req CaseStatusRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	ctx := r.Context()
	userID, id := UserID(ctx), chi.URLParam(r, "id")
	if err := h.db.UpdateCaseStatus(ctx, userID, id, req.Status); err != nil {
		writeError(w, err, "update case status")
		return
	}
	c, err := h.db.GetCase(ctx, userID, id)
	if err != nil {
		writeError(w, err, "get case")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCase handles DELETE /api/cases/{id}.
func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteCase(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "delete case")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCaseNotes handles GET /api/cases/{id}/notes.
func (h *Handler) ListCaseNotes(w http.ResponseWriter, r *http.Request) {
	userID, caseID, ok := h.ownedCase(w, r)
	if !ok {
		return
	}
	notes, err := h.db.CaseNotes(r.Context(), userID, caseID)
	if err != nil {
		writeError(w, err, "list case notes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// CreateCaseNote handles POST /api/cases/{id}/notes.
func (h *Handler) CreateCaseNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	n := &models.Note{UserID: UserID(r.Context()), CaseID: chi.URLParam(r, "id"), Content: req.Content}
	if err := h.db.CreateNote(r.Context(), n); err != nil {
		writeError(w, err, "create case note")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// ListCaseTasks handles GET /api/cases/{id}/tasks.
func (h *Handler) ListCaseTasks(w http.ResponseWriter, r *http.Request) {
	userID, caseID, ok := h.ownedCase(w, r)
	if !ok {
		return
	}
	tasks, err := h.db.CaseTasks(r.Context(), userID, caseID)
	if err != nil {
		writeError(w, err, "list case tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// CreateCaseTask handles POST /api/cases/{id}/tasks.
func (h *Handler) CreateCaseTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	t := &models.Task{
		UserID:      UserID(r.Context()),
		CaseID:      chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	}
	if err := h.db.CreateTask(r.Context(), t); err != nil {
		writeError(w, err, "create task")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTaskStatus handles PATCH /api/tasks/{id}/status.
func (h *Handler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req TaskStatusRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	if err := h.db.UpdateTaskStatus(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), req.Status); err != nil {
		writeError(w, err, "update task status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCaseParties handles GET /api/cases/{id}/parties.
func (h *Handler) ListCaseParties(w http.ResponseWriter, r *http.Request) {
	userID, caseID, ok := h.ownedCase(w, r)
	if !ok {
		return
	}
	parties, err := h.db.CaseParties(r.Context(), userID, caseID)
	if err != nil {
		writeError(w, err, "list case parties")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"parties": parties})
}

// CreateCaseParty handles POST /api/cases/{id}/parties.
func (h *Handler) CreateCaseParty(w http.ResponseWriter, r *http.Request) {
	var req PartyRequest
	if !decodeJSON(w, r, &req) || !validated(w, req) {
		return
	}
	p := &models.Party{
		UserID: UserID(r.Context()),
		CaseID: chi.URLParam(r, "id"),
		Name:   req.Name,
		Role:   req.Role,
		Email:  req.Email,
		Phone:  req.Phone,
	}
	if err := h.db.CreateParty(r.Context(), p); err != nil {
		writeError(w, err, "create party")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ownedCase resolves the {id} case of the caller, writing a 404 when the
// case is missing or belongs to someone else.
func (h *Handler) ownedCase(w http.ResponseWriter, r *http.Request) (userID, caseID string, ok bool) {
	userID, caseID = UserID(r.Context()), chi.URLParam(r, "id")
	if _, err := h.db.GetCase(r.Context(), userID, caseID); err != nil {
		writeError(w, err, "get case")
		return "", "", false
	}
	return userID, caseID, true
}
