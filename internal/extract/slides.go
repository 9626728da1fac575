package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/apuntes/internal/models"
)

// textRunPrefix and textRunLocal name the text-run element <a:t> by its literal prefix.
// Namespaces are not resolved: another prefix bound to DrawingML is not a text run.
const (
	textRunPrefix = "a"
	textRunLocal  = "t"
)

// ExtractSlides opens a .pptx buffer and returns one record per slide part, in slide order.
// An archive without slide parts yields an empty slice.
func ExtractSlides(content []byte) ([]models.SlideRecord, error) {
	zr, err := OpenArchive(content)
	if err != nil {
		return nil, err
	}
	parts := SlideParts(zr)
	slides := make([]models.SlideRecord, 0, len(parts))
	for _, f := range parts {
		raw, err := readPart(f)
		if err != nil {
			return nil, err
		}
		text, err := SlideText(raw)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Part = f.Name
			}
			return nil, err
		}
		slides = append(slides, models.SlideRecord{Filename: f.Name, Text: text})
	}
	return slides, nil
}

// SlideText parses one slide part and returns the content of every element written as <a:t>,
// in document order, each followed by a space, trimmed. The markup must be well-formed.
func SlideText(raw []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	// RawToken keeps the literal "a" prefix; element balance is checked below.
	var stack []xml.Name
	var buf strings.Builder
	inRun := 0
	sawRoot := false
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ParseError{Kind: MalformedMarkup, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && sawRoot {
				return "", &ParseError{Kind: MalformedMarkup, Err: fmt.Errorf("content after document element: <%s>", qualified(t.Name))}
			}
			sawRoot = true
			stack = append(stack, t.Name)
			if isTextRun(t.Name) {
				inRun++
			}
		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1] != t.Name {
				return "", &ParseError{Kind: MalformedMarkup, Err: fmt.Errorf("unexpected end element </%s>", qualified(t.Name))}
			}
			stack = stack[:len(stack)-1]
			if isTextRun(t.Name) {
				inRun--
				buf.WriteByte(' ')
			}
		case xml.CharData:
			if inRun > 0 {
				buf.Write(t)
			} else if len(stack) == 0 && len(bytes.TrimSpace(t)) > 0 {
				return "", &ParseError{Kind: MalformedMarkup, Err: errors.New("text outside document element")}
			}
		}
	}
	if len(stack) > 0 {
		return "", &ParseError{Kind: MalformedMarkup, Err: fmt.Errorf("unclosed element <%s>", qualified(stack[len(stack)-1]))}
	}
	if !sawRoot {
		return "", &ParseError{Kind: MalformedMarkup, Err: errors.New("no document element")}
	}
	return strings.TrimSpace(buf.String()), nil
}

func isTextRun(n xml.Name) bool {
	return n.Space == textRunPrefix && n.Local == textRunLocal
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
