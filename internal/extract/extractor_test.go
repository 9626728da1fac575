package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
)

type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func slideXML(runs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody>`)
	for _, r := range runs {
		b.WriteString("<a:p><a:r><a:t>" + r + "</a:t></a:r></a:p>")
	}
	b.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func TestExtractSlides_numericOrder(t *testing.T) {
	content := buildZip(t,
		zipEntry{"[Content_Types].xml", "<Types/>"},
		zipEntry{"ppt/slides/slide10.xml", slideXML("Ten")},
		zipEntry{"ppt/slides/slide2.xml", slideXML("Two")},
		zipEntry{"ppt/slides/_rels/slide2.xml.rels", "<Relationships/>"},
		zipEntry{"ppt/slides/slide1.xml", slideXML("Intro", "Hello")},
	)
	e := NewExtractor()
	got, err := e.Slides(content)
	if err != nil {
		t.Fatalf("Slides: %v", err)
	}
	wantNames := []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide10.xml"}
	wantTexts := []string{"Intro Hello", "Two", "Ten"}
	if len(got) != len(wantNames) {
		t.Fatalf("got %d slides, want %d", len(got), len(wantNames))
	}
	for i := range got {
		if got[i].Filename != wantNames[i] || got[i].Text != wantTexts[i] {
			t.Errorf("slide %d: got %q %q", i, got[i].Filename, got[i].Text)
		}
		if got[i].OriginFile != "" {
			t.Errorf("slide %d: origin file should be empty, got %q", i, got[i].OriginFile)
		}
	}
}

// Entries under the slides prefix without a slide<N>.xml suffix count as slide 0.
func TestSlideParts_unnumberedSortsFirst(t *testing.T) {
	content := buildZip(t,
		zipEntry{"ppt/slides/slide3.xml", slideXML("c")},
		zipEntry{"ppt/slides/extra.xml", slideXML("skipped")},
		zipEntry{"ppt/slides/slideLayout.xml", slideXML("layout")},
		zipEntry{"ppt/slides/_rels/slide1.xml.rels", "<Relationships/>"},
		zipEntry{"ppt/slides/slide1.xml", slideXML("a")},
	)
	zr, err := OpenArchive(content)
	if err != nil {
		t.Fatal(err)
	}
	parts := SlideParts(zr)
	var names []string
	for _, p := range parts {
		names = append(names, p.Name)
	}
	want := "ppt/slides/slideLayout.xml,ppt/slides/slide1.xml,ppt/slides/slide3.xml"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("got %s", got)
	}
}

func TestExtractSlides_noSlideParts(t *testing.T) {
	content := buildZip(t, zipEntry{"docProps/app.xml", "<Properties/>"})
	got, err := ExtractSlides(content)
	if err != nil {
		t.Fatalf("ExtractSlides: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestExtractSlides_notAZip(t *testing.T) {
	_, err := ExtractSlides([]byte("definitely not a zip"))
	if !IsKind(err, InvalidArchive) {
		t.Fatalf("got %v, want invalid archive", err)
	}
}

func TestExtractSlides_malformedPart(t *testing.T) {
	content := buildZip(t,
		zipEntry{"ppt/slides/slide1.xml", slideXML("ok")},
		zipEntry{"ppt/slides/slide2.xml", `<p:sld xmlns:a="x"><a:t>broken</p:sld>`},
	)
	_, err := ExtractSlides(content)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ParseError", err)
	}
	if pe.Kind != MalformedMarkup || pe.Part != "ppt/slides/slide2.xml" {
		t.Errorf("got kind %q part %q", pe.Kind, pe.Part)
	}
}

func TestSlideText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"runs", slideXML("Hola", "mundo"), "Hola mundo", false},
		{"no runs", `<p:sld xmlns:p="x"><p:cSld/></p:sld>`, "", false},
		{"empty run", slideXML(""), "", false},
		{"entities", slideXML("a &amp; b"), "a & b", false},
		{"undeclared prefix", `<sld><a:t>plain</a:t></sld>`, "plain", false},
		{"other prefix ignored", `<sld xmlns:b="x"><b:t>skip</b:t><a:t>keep</a:t></sld>`, "keep", false},
		{"drawingml under another prefix", `<sld xmlns:d="http://schemas.openxmlformats.org/drawingml/2006/main"><d:t>skip</d:t></sld>`, "", false},
		{"a bound elsewhere", `<sld xmlns:a="urn:other"><a:t>keep</a:t></sld>`, "keep", false},
		{"unclosed", `<p:sld><a:t>x</a:t>`, "", true},
		{"mismatched", `<p:sld><a:t>x</a:r></p:sld>`, "", true},
		{"two roots", `<a/><b/>`, "", true},
		{"empty", ``, "", true},
		{"text only", `just text`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SlideText([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("SlideText error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsKind(err, MalformedMarkup) {
				t.Errorf("got %v, want malformed markup", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type fakePages struct {
	pages [][]string
	calls int
	fail  int
}

func (f *fakePages) NumPage() int { return len(f.pages) }

func (f *fakePages) PageItems(n int) ([]string, error) {
	f.calls++
	if n == f.fail {
		return nil, errors.New("broken page")
	}
	return f.pages[n-1], nil
}

func TestDocumentText_onePerPage(t *testing.T) {
	src := &fakePages{pages: [][]string{
		{"Capitulo", "uno"},
		nil, // image-only page
		{"Fin"},
	}}
	got, err := documentText(src)
	if err != nil {
		t.Fatalf("documentText: %v", err)
	}
	if src.calls != 3 {
		t.Errorf("page retrievals = %d, want 3", src.calls)
	}
	if got != "Capitulo uno\n\nFin" {
		t.Errorf("got %q", got)
	}
	if segs := strings.Split(got, "\n"); len(segs) != 3 {
		t.Errorf("got %d segments, want 3", len(segs))
	}
}

func TestDocumentText_trimsEdges(t *testing.T) {
	got, err := documentText(&fakePages{pages: [][]string{nil, {"solo"}, nil}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "solo" {
		t.Errorf("got %q", got)
	}
}

func TestDocumentText_pageFailure(t *testing.T) {
	_, err := documentText(&fakePages{pages: [][]string{{"a"}, {"b"}}, fail: 2})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != InvalidDocument || pe.Part != "page 2" {
		t.Fatalf("got %v", err)
	}
}

func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.Text(40, 60, text)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build PDF: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocument_pages(t *testing.T) {
	content := buildPDF(t, "Primera pagina", "Segunda pagina", "Tercera pagina")
	e := NewExtractor()
	got, err := e.Document(content)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	segs := strings.Split(got, "\n")
	if len(segs) != 3 {
		t.Fatalf("got %d segments in %q, want 3", len(segs), got)
	}
	for i, word := range []string{"Primera", "Segunda", "Tercera"} {
		if !strings.Contains(segs[i], word) {
			t.Errorf("segment %d = %q, want it to contain %q", i, segs[i], word)
		}
	}
}

// buildPDFRows writes one page per entry, placing each item on the same baseline left to
// right. An empty entry gives a blank page.
func buildPDFRows(t *testing.T, pages ...[]string) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 12)
	for _, items := range pages {
		pdf.AddPage()
		for i, text := range items {
			pdf.Text(40+float64(i)*160, 60, text)
		}
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build PDF: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocument_itemsAndBlankPage(t *testing.T) {
	content := buildPDFRows(t, []string{"Hola", "mundo"}, nil, []string{"Fin"})
	got, err := ExtractDocument(content)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if want := "Hola mundo\n\nFin"; got != want {
		t.Errorf("ExtractDocument = %q, want %q", got, want)
	}
}

func TestExtractDocument_invalid(t *testing.T) {
	for i, content := range [][]byte{
		[]byte("not a pdf"),
		nil,
		[]byte("%PDF-1.4\n%%EOF"),
	} {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := ExtractDocument(content)
			if !IsKind(err, InvalidDocument) {
				t.Errorf("got %v, want invalid document", err)
			}
		})
	}
}
