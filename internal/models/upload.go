// Package models defines core data structures for uploads, extracted batches, and quizzes.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the two independent upload collections.
type Kind string

const (
	// KindSlides holds presentation archives (.pptx).
	KindSlides Kind = "slides"
	// KindDocuments holds PDF documents.
	KindDocuments Kind = "documents"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindSlides, KindDocuments}

// ParseKind accepts the canonical kind names and their common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slides", "slide", "pptx", "ppt", "presentations":
		return KindSlides, nil
	case "documents", "document", "docs", "pdf", "pdfs":
		return KindDocuments, nil
	default:
		return "", fmt.Errorf("unknown kind %q (use slides or documents)", s)
	}
}

// Extension returns the file extension accepted for uploads of this kind.
func (k Kind) Extension() string {
	if k == KindSlides {
		return ".pptx"
	}
	return ".pdf"
}

// MIMEType returns the default MIME type recorded for uploads of this kind.
func (k Kind) MIMEType() string {
	if k == KindSlides {
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	}
	return "application/pdf"
}

// Slot returns the key-value slot holding the extracted batch for this kind.
func (k Kind) Slot() string {
	if k == KindSlides {
		return SlotSlides
	}
	return SlotDocuments
}

// Label is the short human label used in titles and file names.
func (k Kind) Label() string {
	if k == KindSlides {
		return "PPT"
	}
	return "PDF"
}

// KindForFile returns the kind whose extension matches name.
func KindForFile(name string) (Kind, bool) {
	lower := strings.ToLower(name)
	for _, k := range Kinds {
		if strings.HasSuffix(lower, k.Extension()) {
			return k, true
		}
	}
	return "", false
}

// UploadedFile is one stored upload: raw bytes plus metadata.
// ID is assigned by the blob store on insert.
type UploadedFile struct {
	ID        int64     `json:"id" db:"id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Name      string    `json:"name" db:"name"`
	Size      int64     `json:"size" db:"size"`
	Type      string    `json:"type" db:"mime_type"`
	Data      []byte    `json:"-" db:"data"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
