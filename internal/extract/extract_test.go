package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestText_Docx(t *testing.T) {
	doc := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Settlement</w:t></w:r><w:r><w:t xml:space="preserve"> Agreement</w:t></w:r></w:p>
    <w:p><w:r><w:t>Party A</w:t><w:tab/><w:t>Party B</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	got, err := Text(MIMEDOCX, doc)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := "Settlement Agreement\nParty A\tParty B"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestText_DocxMissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("word/styles.xml")
	_ = zw.Close()

	if _, err := Text(MIMEDOCX, buf.Bytes()); err == nil {
		t.Fatal("expected error for docx without document part")
	}
}

func TestText_MalformedPDF(t *testing.T) {
	if _, err := Text(MIMEPDF, []byte("%PDF-1.4 definitely not a pdf")); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestText_PlainAndUnsupported(t *testing.T) {
	got, err := Text("text/plain", []byte("hello"))
	if err != nil || got != "hello" {
		t.Fatalf("Text = %q, %v", got, err)
	}
	got, _ = Text("text/csv", []byte("a,\xffb"))
	if got != "a,b" {
		t.Errorf("invalid utf-8 not stripped: %q", got)
	}
	if _, err := Text("image/png", []byte{0x89, 'P', 'N', 'G'}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestMarkdown_FrontmatterStripped(t *testing.T) {
	d := Markdown([]byte("---\ntitle: Engagement Letter\nclient: Acme\n---\nScope of work.\n"))
	if d.Title != "Engagement Letter" {
		t.Errorf("title = %q", d.Title)
	}
	if d.Frontmatter["client"] != "Acme" {
		t.Errorf("frontmatter = %v", d.Frontmatter)
	}
	if got := d.Text(); got != "Engagement Letter\n\nScope of work." {
		t.Errorf("text = %q", got)
	}
}

func TestMarkdown_HeadingTitleNotRepeated(t *testing.T) {
	d := Markdown([]byte("# Memo\nBody text.\n"))
	if d.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", d.Frontmatter)
	}
	if got := d.Text(); got != "# Memo\nBody text." {
		t.Errorf("text = %q", got)
	}
}

func TestMarkdown_InvalidYAMLFallback(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	d := Markdown([]byte(input))
	if d.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if d.Body != input {
		t.Errorf("body = %q", d.Body)
	}
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name, file, declared string
		data                 []byte
		want                 string
	}{
		{"declared wins", "x.bin", "application/pdf", nil, MIMEPDF},
		{"declared with params", "x", "text/plain; charset=utf-8", nil, MIMEText},
		{"extension", "brief.DOCX", "application/octet-stream", nil, MIMEDOCX},
		{"markdown extension", "notes.md", "", nil, MIMEMarkdown},
		{"sniffed", "blob", "", []byte("%PDF-1.7\n"), MIMEPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIME(tt.file, tt.declared, tt.data); got != tt.want {
				t.Errorf("DetectMIME = %q, want %q", got, tt.want)
			}
		})
	}
}
