package extract

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a file could not be parsed.
type ErrorKind string

const (
	// InvalidArchive means the buffer is not a readable zip container.
	InvalidArchive ErrorKind = "invalid archive"
	// MalformedMarkup means a slide part is not well-formed XML.
	MalformedMarkup ErrorKind = "malformed markup"
	// InvalidDocument means the buffer cannot be opened as a PDF.
	InvalidDocument ErrorKind = "invalid document"
)

// ParseError is returned by every extractor in this package.
type ParseError struct {
	Kind ErrorKind
	// Part is the archive entry name (slides) or page reference (documents), if known.
	Part string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Part, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsKind reports whether err is a ParseError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}
