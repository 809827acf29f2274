// Package chatctx renders the client, case and document records a chat
// request refers to into a plain-text context block for the assistant.
package chatctx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/models"
)

// ErrContextLookup marks a datastore failure while assembling context.
// Build still returns the sections that did resolve.
var ErrContextLookup = errors.New("chatctx: context lookup failed")

const (
	// ClientNoteLimit caps the client notes rendered, most recent first.
	ClientNoteLimit = 5
	// DefaultMaxDocumentChars bounds the extracted text rendered per document.
	DefaultMaxDocumentChars = 8000

	placeholder = "N/A"
	emptyList   = "None"
	truncated   = "[truncated]"
)

// Datastore is the read-only, owner-scoped lookup surface the builder
// needs. Records owned by another user must be reported as
// apperr.ErrNotFound, or omitted from list results.
type Datastore interface {
	GetClient(ctx context.Context, userID, id string) (*models.Client, error)
	RecentClientNotes(ctx context.Context, userID, clientID string, limit int) ([]models.ClientNote, error)
	GetCase(ctx context.Context, userID, id string) (*models.Case, error)
	CaseDocuments(ctx context.Context, userID, caseID string) ([]models.Document, error)
	CaseNotes(ctx context.Context, userID, caseID string) ([]models.Note, error)
	CaseTasks(ctx context.Context, userID, caseID string) ([]models.Task, error)
	CaseParties(ctx context.Context, userID, caseID string) ([]models.Party, error)
	GetDocuments(ctx context.Context, userID string, ids []string) ([]models.Document, error)
}

// Request names the records to include. Every field is optional.
type Request struct {
	CaseID      string
	ClientID    string
	DocumentIDs []string
}

// Empty reports whether no identifiers were supplied.
func (r Request) Empty() bool {
	return r.CaseID == "" && r.ClientID == "" && len(r.DocumentIDs) == 0
}

// Builder assembles context blocks.
type Builder struct {
	ds          Datastore
	maxDocChars int
}

// NewBuilder creates a Builder. maxDocChars <= 0 selects
// DefaultMaxDocumentChars.
func NewBuilder(ds Datastore, maxDocChars int) *Builder {
	if maxDocChars <= 0 {
		maxDocChars = DefaultMaxDocumentChars
	}
	return &Builder{ds: ds, maxDocChars: maxDocChars}
}

// Build renders the Client, Case and Documents sections, in that order,
// for the records of req owned by userID. Sections are looked up
// concurrently and independently: a failing section is left out and its
// error is returned wrapped in ErrContextLookup next to the text of the
// sections that succeeded. Missing or foreign records are left out
// silently. The result is empty iff nothing resolved.
func (b *Builder) Build(ctx context.Context, userID string, req Request) (string, error) {
	if userID == "" {
		return "", apperr.ErrUnauthenticated
	}
	if req.Empty() {
		return "", nil
	}

	const (
		clientIdx = iota
		caseIdx
		docsIdx
	)
	var (
		sections [3]string
		errs     [3]error
		g        errgroup.Group
	)
	if req.ClientID != "" {
		g.Go(func() error {
			sections[clientIdx], errs[clientIdx] = b.clientSection(ctx, userID, req.ClientID)
			return nil
		})
	}
	if req.CaseID != "" {
		g.Go(func() error {
			sections[caseIdx], errs[caseIdx] = b.caseSection(ctx, userID, req.CaseID)
			return nil
		})
	}
	if len(req.DocumentIDs) > 0 {
		g.Go(func() error {
			sections[docsIdx], errs[docsIdx] = b.documentsSection(ctx, userID, req.DocumentIDs)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	text := strings.Join(out, "\n\n")

	if err := errors.Join(errs[:]...); err != nil {
		return text, fmt.Errorf("%w: %w", ErrContextLookup, err)
	}
	return text, nil
}

func (b *Builder) clientSection(ctx context.Context, userID, clientID string) (string, error) {
	c, err := b.ds.GetClient(ctx, userID, clientID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("client: %w", err)
	}
	if c.Validate() != nil {
		return "", nil
	}
	notes, err := b.ds.RecentClientNotes(ctx, userID, clientID, ClientNoteLimit)
	if err != nil {
		return "", fmt.Errorf("client notes: %w", err)
	}
	if len(notes) > ClientNoteLimit {
		notes = notes[:ClientNoteLimit]
	}
	bodies := make([]string, 0, len(notes))
	for _, n := range notes {
		bodies = append(bodies, n.Content)
	}

	var sb strings.Builder
	sb.WriteString("Client Information:\n")
	field(&sb, "Name", c.Name)
	field(&sb, "Email", c.Email)
	field(&sb, "Phone", c.Phone)
	field(&sb, "Address", c.Address)
	field(&sb, "Company", c.Company)
	field(&sb, "Status", string(c.Status))
	block(&sb, "Recent Notes", bodies)
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builder) caseSection(ctx context.Context, userID, caseID string) (string, error) {
	c, err := b.ds.GetCase(ctx, userID, caseID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("case: %w", err)
	}
	if c.Validate() != nil {
		return "", nil
	}

	var (
		docs    []models.Document
		notes   []models.Note
		tasks   []models.Task
		parties []models.Party
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		docs, err = b.ds.CaseDocuments(gctx, userID, caseID)
		return err
	})
	g.Go(func() (err error) {
		notes, err = b.ds.CaseNotes(gctx, userID, caseID)
		return err
	})
	g.Go(func() (err error) {
		tasks, err = b.ds.CaseTasks(gctx, userID, caseID)
		return err
	})
	g.Go(func() (err error) {
		parties, err = b.ds.CaseParties(gctx, userID, caseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("case records: %w", err)
	}

	docNames := make([]string, 0, len(docs))
	for _, d := range docs {
		docNames = append(docNames, d.Name)
	}
	noteBodies := make([]string, 0, len(notes))
	for _, n := range notes {
		noteBodies = append(noteBodies, n.Content)
	}
	taskPairs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskPairs = append(taskPairs, fmt.Sprintf("%s (%s)", t.Title, t.Status))
	}
	partyPairs := make([]string, 0, len(parties))
	for _, p := range parties {
		partyPairs = append(partyPairs, fmt.Sprintf("%s (%s)", p.Name, p.Role))
	}

	var sb strings.Builder
	sb.WriteString("Case Information:\n")
	field(&sb, "Title", c.Title)
	field(&sb, "Description", c.Description)
	field(&sb, "Status", string(c.Status))
	field(&sb, "Client", c.ClientName)
	list(&sb, "Documents", docNames)
	block(&sb, "Notes", noteBodies)
	list(&sb, "Tasks", taskPairs)
	list(&sb, "Parties", partyPairs)
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builder) documentsSection(ctx context.Context, userID string, ids []string) (string, error) {
	docs, err := b.ds.GetDocuments(ctx, userID, ids)
	if err != nil {
		return "", fmt.Errorf("documents: %w", err)
	}

	entries := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Validate() != nil {
			continue
		}
		var sb strings.Builder
		field(&sb, "Document", d.Name)
		field(&sb, "Type", d.MimeType)
		fmt.Fprintf(&sb, "Size: %d bytes\n", d.Size)
		if text := strings.TrimSpace(d.ExtractedText); text == "" {
			field(&sb, "Content", "")
		} else {
			sb.WriteString("Content:\n")
			sb.WriteString(truncate(text, b.maxDocChars))
		}
		entries = append(entries, strings.TrimRight(sb.String(), "\n"))
	}
	if len(entries) == 0 {
		return "", nil
	}
	return "Documents:\n" + strings.Join(entries, "\n\n"), nil
}

func field(sb *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = placeholder
	}
	fmt.Fprintf(sb, "%s: %s\n", label, value)
}

// list renders items on one line joined by ", ".
func list(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(sb, "%s: %s\n", label, emptyList)
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", label, strings.Join(items, ", "))
}

// block renders items as a bulleted block under label.
func block(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(sb, "%s: %s\n", label, emptyList)
		return
	}
	fmt.Fprintf(sb, "%s:\n", label)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "\n" + truncated
}
