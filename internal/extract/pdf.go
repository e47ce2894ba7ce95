// SPDX-License-Identifier: Apache-2.0

// Package extract turns uploaded chart documents into plain text for the
// dip chart decoders.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atgproj/atg-mcp/internal/logging"
	"github.com/ledongthuc/pdf"
)

// ErrEmptyDocument is returned for documents with no bytes at all.
var ErrEmptyDocument = errors.New("empty document")

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic)
}

// PDFText returns the text of every page joined by blank lines. Pages that
// fail to decode are skipped. A document without a text layer yields "".
func PDFText(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	log := logging.Logger()
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn("skipping pdf page", slog.Int("page", i), slog.Any("error", err))
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	log.Debug("pdf text extracted", slog.Int("pages", r.NumPage()), slog.Int("bytes", b.Len()))
	return b.String(), nil
}

// Text returns the chart text of data: PDFs are decoded, anything else is
// taken as already extracted text.
func Text(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	if IsPDF(data) {
		return PDFText(ctx, data)
	}
	return string(data), nil
}

// FileText reads path and returns its chart text.
func FileText(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	text, err := Text(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return text, nil
}
