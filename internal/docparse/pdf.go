// Package docparse extracts structural metadata from uploaded documents.
// Parsers are pure functions over byte slices so the worker can retry them
// safely on redelivery.
package docparse

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/docstore-labs/deptdocs-api/internal/models"
)

// ParsePDF extracts the page count and the document information dictionary.
// Missing Info entries leave the corresponding fields empty.
func ParsePDF(data []byte) (meta *models.FileMetadata, err error) {
	// The underlying reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	pages := reader.NumPage()
	meta = &models.FileMetadata{PageCount: &pages}

	info := reader.Trailer().Key("Info")
	if info.Kind() == pdf.Dict {
		meta.Title = infoString(info, "Title")
		meta.Author = infoString(info, "Author")
		meta.CreationDate = infoString(info, "CreationDate")
		meta.Creator = infoString(info, "Creator")
	}
	return meta, nil
}

func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() == pdf.String {
		return v.RawString()
	}
	return ""
}
