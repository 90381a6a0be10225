// Package extract turns uploaded documents into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrDocumentFormat is returned when the upload cannot be parsed as a PDF.
var ErrDocumentFormat = errors.New("document is not a readable PDF")

// Extractor produces the full plain text of a document.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// Func adapts a plain function to Extractor.
type Func func(content []byte) (string, error)

func (f Func) Extract(content []byte) (string, error) { return f(content) }

// PDF extracts text with github.com/ledongthuc/pdf.
type PDF struct{}

// Extract concatenates the plain text of every page in page order, with nothing
// inserted between pages. Pages without a content stream (scanned images) add
// nothing; a document with no text at all yields "" and no error.
func (PDF) Extract(content []byte) (text string, err error) {
	// The decoder panics on some malformed streams.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrDocumentFormat, rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDocumentFormat, err)
	}
	return concatPages(pdfPages{r})
}

// pageSource is the part of a PDF reader the extractor needs. Pages are 1-indexed.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

func concatPages(src pageSource) (string, error) {
	var b strings.Builder
	for num := 1; num <= src.NumPage(); num++ {
		text, err := src.PageText(num)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrDocumentFormat, num, err)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int { return p.r.NumPage() }

func (p pdfPages) PageText(num int) (string, error) {
	page := p.r.Page(num)
	if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
		return "", nil
	}
	return page.GetPlainText(nil)
}
