package extract

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarkdownDoc holds a Markdown file split into frontmatter and body.
type MarkdownDoc struct {
	Frontmatter map[string]any
	Body        string
	Title       string
}

// Markdown separates YAML frontmatter (between leading --- delimiters) from
// the body. Missing or invalid frontmatter leaves the whole input as body.
func Markdown(data []byte) *MarkdownDoc {
	fm, body := splitFrontmatter(data)
	return &MarkdownDoc{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
	}
}

// Text renders the document for indexing: the title line when the body does
// not already carry it as a heading, followed by the body.
func (d *MarkdownDoc) Text() string {
	body := strings.TrimSpace(d.Body)
	if d.Title == "" || strings.HasPrefix(body, "# "+d.Title) {
		return body
	}
	return d.Title + "\n\n" + body
}

func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise "".
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
