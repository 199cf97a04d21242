// Package loader extracts plain text from uploaded files and declares their
// source format. It supports PDF, plain text and markdown.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
)

const (
	MIMEPDF      = "application/pdf"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
)

// ErrUnsupportedFormat is returned for files with an extension the loader
// cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var formats = map[string]string{
	".pdf":      MIMEPDF,
	".txt":      MIMEText,
	".text":     MIMEText,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
}

// Result is a loaded document.
type Result struct {
	Path         string
	Filename     string
	SourceFormat string
	Text         string
}

// Extensions lists the supported file extensions, sorted.
func Extensions() []string {
	out := make([]string, 0, len(formats))
	for ext := range formats {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// FormatOf returns the MIME type declared for path's extension.
func FormatOf(path string) (string, error) {
	mime, ok := formats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	return mime, nil
}

// Load reads path and returns its text. Empty documents are returned as-is;
// rejecting them is the ingestion pipeline's job so the failure is recorded.
func Load(path string) (*Result, error) {
	mime, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var text string
	switch mime {
	case MIMEPDF:
		text, err = loadPDF(path)
	default:
		text, err = loadText(path)
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Path:         path,
		Filename:     filepath.Base(path),
		SourceFormat: mime,
		Text:         sanitize(text),
	}, nil
}

func loadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf %s: %w", errdefs.ErrInvalidInput, filepath.Base(path), err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extract pdf text: %w", errdefs.ErrInvalidInput, err)
	}

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

// sanitize normalizes line endings and drops bytes that are not valid text.
func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
