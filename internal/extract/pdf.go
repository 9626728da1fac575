package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSource is the part of a PDF reader the document extractor needs.
// Pages are numbered from 1.
type pageSource interface {
	NumPage() int
	PageItems(n int) ([]string, error)
}

// pdfSource adapts ledongthuc/pdf to pageSource.
type pdfSource struct {
	r *pdf.Reader
}

func openPDF(content []byte) (src *pdfSource, err error) {
	// The reader panics on some truncated or garbage inputs.
	defer func() {
		if rec := recover(); rec != nil {
			src = nil
			err = &ParseError{Kind: InvalidDocument, Err: fmt.Errorf("open PDF: %v", rec)}
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ParseError{Kind: InvalidDocument, Err: fmt.Errorf("open PDF: %w", err)}
	}
	return &pdfSource{r: r}, nil
}

func (s *pdfSource) NumPage() int {
	return s.r.NumPage()
}

// PageItems returns the text-show blocks of page n, top row first, left to right.
// A page without a content stream yields no items. The reader reports an empty block ahead
// of each text object; those are dropped.
func (s *pdfSource) PageItems(n int) (items []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			items = nil
			err = fmt.Errorf("read page %d: %v", n, rec)
		}
	}()
	page := s.r.Page(n)
	if page.V.IsNull() {
		return nil, nil
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", n, err)
	}
	for _, row := range rows {
		for _, text := range row.Content {
			if text.S == "" {
				continue
			}
			items = append(items, text.S)
		}
	}
	return items, nil
}

// ExtractDocument returns the text of a PDF buffer: the items of each page joined with
// spaces, pages joined with newlines in page order, trimmed.
func ExtractDocument(content []byte) (string, error) {
	src, err := openPDF(content)
	if err != nil {
		return "", err
	}
	return documentText(src)
}

func documentText(src pageSource) (string, error) {
	numPages := src.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		items, err := src.PageItems(i)
		if err != nil {
			return "", &ParseError{Kind: InvalidDocument, Part: fmt.Sprintf("page %d", i), Err: err}
		}
		pages = append(pages, strings.Join(items, " "))
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}
