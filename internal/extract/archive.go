package extract

import (
	"archive/zip"
	"bytes"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidePathPrefix is the path prefix for slide XML parts inside a .pptx zip.
const slidePathPrefix = "ppt/slides/slide"

// slideNumberRe captures N from ".../slideN.xml".
var slideNumberRe = regexp.MustCompile(`slide(\d+)\.xml$`)

// OpenArchive opens content as a zip container.
func OpenArchive(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ParseError{Kind: InvalidArchive, Err: err}
	}
	return zr, nil
}

// SlideParts returns the slide XML entries of zr ordered by slide number.
// Entries whose name does not end in slide<N>.xml count as slide 0 and sort first;
// equal numbers keep archive order.
func SlideParts(zr *zip.Reader) []*zip.File {
	parts := make([]*zip.File, 0)
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, slidePathPrefix) && strings.HasSuffix(f.Name, ".xml") {
			parts = append(parts, f)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return slideNumber(parts[i].Name) < slideNumber(parts[j].Name)
	})
	return parts
}

// slideNumber returns N for names ending in slide<N>.xml, otherwise 0.
func slideNumber(name string) int {
	m := slideNumberRe.FindStringSubmatch(name)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &ParseError{Kind: InvalidArchive, Part: f.Name, Err: err}
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, &ParseError{Kind: InvalidArchive, Part: f.Name, Err: err}
	}
	return b, nil
}
