package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted. Everything
// except registration and login requires a session.
func NewRouter(d Deps) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(d.Auth))

		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.Me)

		// Clients.
		r.Get("/clients", h.ListClients)
		r.Post("/clients", h.CreateClient)
		r.Get("/clients/{id}", h.GetClient)
		r.Delete("/clients/{id}", h.DeleteClient)
		r.Get("/clients/{id}/notes", h.ListClientNotes)
		r.Post("/clients/{id}/notes", h.CreateClientNote)

		// Cases.
		r.Get("/cases", h.ListCases)
		r.Post("/cases", h.CreateCase)
		r.Get("/cases/{id}", h.GetCase)
		r.Delete("/cases/{id}", h.DeleteCase)
		r.Patch("/cases/{id}/status", h.UpdateCaseStatus)
		r.Get("/cases/{id}/notes", h.ListCaseNotes)
		r.Post("/cases/{id}/notes", h.CreateCaseNote)
		r.Get("/cases/{id}/tasks", h.ListCaseTasks)
		r.Post("/cases/{id}/tasks", h.CreateCaseTask)
		r.Get("/cases/{id}/parties", h.ListCaseParties)
		r.Post("/cases/{id}/parties", h.CreateCaseParty)
		r.Patch("/tasks/{id}/status", h.UpdateTaskStatus)

		// Documents.
		r.Get("/documents", h.ListDocuments)
		r.Post("/documents", h.UploadDocument)
		r.Get("/documents/search", h.SearchDocuments)
		r.Get("/documents/{id}", h.GetDocument)
		r.Get("/documents/{id}/download", h.DownloadDocument)
		r.Delete("/documents/{id}", h.DeleteDocument)

		// Assistant.
		r.Post("/chat", h.Chat)
		r.Get("/chat/context", h.ChatContext)

		// Live record events.
		r.Get("/events", h.Events)
	})

	return r
}
