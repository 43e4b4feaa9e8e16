// Package document extracts text from source documents and produces
// substituted copies of them. Supported formats are WordprocessingML (.docx),
// SpreadsheetML (.xlsx) and plain text.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joestump/docmerge/internal/placeholder"
)

var (
	// ErrUnsupportedFormat is returned for documents whose format cannot be
	// determined from their name or content type.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorrupt is returned when a document claims a format but cannot be parsed as it.
	ErrCorrupt = errors.New("document is corrupt")
)

// Format identifies how a document's bytes are laid out.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatText Format = "text"
)

const (
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Document is an in-memory source or rendered document.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Format returns the document's format, detected from its content type and
// falling back to the file extension.
func (d Document) Format() (Format, error) {
	return DetectFormat(d.Name, d.ContentType)
}

// DetectFormat maps a file name and optional content type to a Format.
func DetectFormat(name, contentType string) (Format, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case contentTypeDOCX:
		return FormatDOCX, nil
	case contentTypeXLSX:
		return FormatXLSX, nil
	case "text/plain", "text/markdown", "text/html":
		return FormatText, nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return FormatDOCX, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".txt", ".md", ".html", ".htm":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ContentTypeFor returns the canonical content type for a format.
func ContentTypeFor(f Format) string {
	switch f {
	case FormatDOCX:
		return contentTypeDOCX
	case FormatXLSX:
		return contentTypeXLSX
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extract converts doc to plain text.
func Extract(ctx context.Context, doc Document) (string, error) {
	f, err := doc.Format()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch f {
	case FormatDOCX:
		return extractDOCX(ctx, doc.Data)
	case FormatXLSX:
		return extractXLSX(ctx, doc.Data)
	default:
		return string(doc.Data), nil
	}
}

// Substitute returns a copy of doc in the same format where every ${name}
// token with an entry in subst has been replaced. Tokens without an entry are
// left untouched. doc is never modified.
func Substitute(ctx context.Context, doc Document, subst map[string]string) (Document, error) {
	f, err := doc.Format()
	if err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	out := Document{Name: doc.Name, ContentType: doc.ContentType}
	if out.ContentType == "" {
		out.ContentType = ContentTypeFor(f)
	}
	switch f {
	case FormatDOCX:
		out.Data, err = substituteDOCX(ctx, doc.Data, subst)
	case FormatXLSX:
		out.Data, err = substituteXLSX(ctx, doc.Data, subst)
	default:
		out.Data = []byte(placeholder.Replace(string(doc.Data), subst))
	}
	if err != nil {
		return Document{}, err
	}
	return out, nil
}
