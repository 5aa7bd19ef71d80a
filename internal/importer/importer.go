package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jeastham1993/zettel-system/internal/storage"
)

// NoteCreator is the write surface the importer needs; satisfied by the
// notes service so imported notes flow through the same pipelines as ones
// created by hand.
type NoteCreator interface {
	Create(ctx context.Context, title, content string, tags []string) (storage.Note, error)
}

// Importer turns external documents into notes.
type Importer struct {
	notes NoteCreator
}

// New creates an Importer writing through the given note creator.
func New(notes NoteCreator) *Importer {
	return &Importer{notes: notes}
}

// ImportMarkdown creates a note from markdown text. The title comes from the
// first level-one heading when present, otherwise from the file name.
func (i *Importer) ImportMarkdown(ctx context.Context, filename, text string, tags []string) (storage.Note, error) {
	title, body := splitTitle(text)
	if title == "" {
		title = titleFromFilename(filename)
	}
	if title == "" {
		return storage.Note{}, fmt.Errorf("cannot determine a title for the import")
	}
	return i.notes.Create(ctx, title, body, tags)
}

// ImportPDF extracts the plain text of a PDF and creates a note from it.
// The title comes from the file name since PDF metadata is rarely useful.
func (i *Importer) ImportPDF(ctx context.Context, filename string, data []byte, tags []string) (storage.Note, error) {
	text, err := ExtractPDFText(data)
	if err != nil {
		return storage.Note{}, fmt.Errorf("extracting text from %s: %w", filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return storage.Note{}, fmt.Errorf("%s contains no extractable text", filename)
	}

	title := titleFromFilename(filename)
	if title == "" {
		title = "Imported PDF"
	}
	return i.notes.Create(ctx, title, text, tags)
}

// ExtractPDFText returns the plain text content of a PDF document.
func ExtractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("copying pdf text: %w", err)
	}
	return sb.String(), nil
}

// splitTitle pulls a leading "# Title" heading off markdown text, returning
// the title and the remaining body.
func splitTitle(text string) (string, string) {
	trimmed := strings.TrimLeft(text, "\n\r\t ")
	if !strings.HasPrefix(trimmed, "# ") {
		return "", text
	}
	line, rest, _ := strings.Cut(trimmed, "\n")
	return strings.TrimSpace(strings.TrimPrefix(line, "# ")), strings.TrimLeft(rest, "\n")
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	return strings.TrimSpace(base)
}
