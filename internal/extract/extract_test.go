package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		contentType string
		fileName    string
		want        Format
	}{
		{"application/pdf", "resume.pdf", FormatPDF},
		{"", "resume.PDF", FormatPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "resume.docx", FormatDOCX},
		{"application/msword", "cv", FormatDOCX},
		{"", "resume.docx", FormatDOCX},
		{"text/plain", "resume.txt", FormatUnknown},
		{"image/png", "photo.png", FormatUnknown},
	}
	for _, tc := range cases {
		if got := DetectFormat(tc.contentType, tc.fileName); got != tc.want {
			t.Errorf("DetectFormat(%q, %q) = %v, want %v", tc.contentType, tc.fileName, got, tc.want)
		}
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := Extract(Document{Data: []byte("plain text"), ContentType: "text/plain", FileName: "resume.txt"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractDOCX(t *testing.T) {
	doc := `<?xml version="1.0"?><w:document><w:body>` +
		`<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Backend</w:t><w:tab/><w:t>Engineer</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	data := buildDOCX(t, doc)

	text, err := Extract(Document{Data: data, FileName: "resume.docx"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Jane Doe\nBackend Engineer"
	if text != want {
		t.Fatalf("got %q, want %q", text, want)
	}
}

func TestExtractDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/styles.xml")
	_, _ = w.Write([]byte("<w:styles/>"))
	_ = zw.Close()

	_, err := Extract(Document{Data: buf.Bytes(), FileName: "resume.docx"})
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Format != "docx" {
		t.Fatalf("expected docx ParseError, got %v", err)
	}
}

func TestExtractDOCXGarbage(t *testing.T) {
	_, err := Extract(Document{Data: []byte("this is not a zip archive"), FileName: "resume.docx"})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestExtractPDFGarbage(t *testing.T) {
	_, err := Extract(Document{Data: []byte("%PDF-1.7 but truncated nonsense"), FileName: "resume.pdf"})
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Format != "pdf" {
		t.Fatalf("expected pdf ParseError, got %v", err)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "a b   c\t\td\n\n\ne  "
	want := "a b c d\ne"
	if got := normalizeWhitespace(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
