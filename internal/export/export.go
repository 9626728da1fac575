// Package export renders study notes as a letter-size PDF.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/hyperjump/apuntes/internal/models"
)

// ErrNoNotes is returned when there is nothing to export.
var ErrNoNotes = errors.New("no notes to export")

// Page layout in points.
const (
	marginLeft  = 40.0
	titleY      = 60.0
	bodyStartY  = 90.0
	lineHeight  = 18.0
	pageBottomY = 720.0
	pageTopY    = 60.0
	maxWidth    = 500.0
	titleSize   = 16.0
	bodySize    = 12.0
	fontFamily  = "Helvetica"
)

// FileName returns the download name for notes of kind.
func FileName(kind models.Kind) string {
	return fmt.Sprintf("Apuntes-%s.pdf", kind.Label())
}

// Title returns the heading printed on the first page.
func Title(kind models.Kind) string {
	return fmt.Sprintf("Apuntes de Estudio (%s)", kind.Label())
}

// Render returns the PDF for notes of kind.
func Render(kind models.Kind, notes string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, kind, notes); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders notes to w: the title in bold 16pt, then the body in 12pt wrapped to 500pt,
// 18pt apart, continuing on a new page once a line would start below 720pt.
func Write(w io.Writer, kind models.Kind, notes string) error {
	if strings.TrimSpace(notes) == "" {
		return ErrNoNotes
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	// Core fonts are cp1252; accented Spanish text needs translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", titleSize)
	pdf.Text(marginLeft, titleY, tr(Title(kind)))

	pdf.SetFont(fontFamily, "", bodySize)
	lines := bodyLines(pdf, tr(notes))
	for i, pos := range paginate(len(lines)) {
		if pos.newPage {
			pdf.AddPage()
			pdf.SetFont(fontFamily, "", bodySize)
		}
		pdf.Text(marginLeft, pos.y, lines[i])
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render PDF: %w", err)
	}
	return nil
}

type position struct {
	y       float64
	newPage bool
}

// paginate returns the baseline of each of n body lines.
func paginate(n int) []position {
	out := make([]position, n)
	y := bodyStartY
	for i := range out {
		if y > pageBottomY {
			out[i].newPage = true
			y = pageTopY
		}
		out[i].y = y
		y += lineHeight
	}
	return out
}

// bodyLines splits text into lines no wider than maxWidth in the current font. Existing line
// breaks are kept, and a word wider than maxWidth is broken between characters.
func bodyLines(pdf *fpdf.Fpdf, text string) []string {
	// SplitLines measures against the width less both cell margins.
	pdf.SetCellMargin(0)
	split := pdf.SplitLines([]byte(text), maxWidth)
	lines := make([]string, len(split))
	for i, line := range split {
		lines[i] = string(line)
	}
	return lines
}
