package docparse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/docstore-labs/deptdocs-api/internal/models"
)

// ParseDOCX extracts paragraph and table counts from word/document.xml and
// core properties from docProps/core.xml. Paragraphs inside table cells do
// not count; blank paragraphs do not count either.
func ParseDOCX(data []byte) (*models.FileMetadata, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	meta := &models.FileMetadata{}

	doc, err := openZipEntry(archive, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	paragraphs, tables, err := countDocumentBody(doc)
	if err != nil {
		return nil, fmt.Errorf("parse docx body: %w", err)
	}
	meta.ParagraphCount = &paragraphs
	meta.TableCount = &tables

	// Core properties are optional in the package.
	if core, err := openZipEntry(archive, "docProps/core.xml"); err == nil {
		fillCoreProperties(core, meta)
	}
	return meta, nil
}

func openZipEntry(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %q not found", name)
}

// countDocumentBody streams the WordprocessingML token by token. Table depth
// is tracked so only body-level tables count and paragraphs inside table
// cells are excluded.
func countDocumentBody(doc []byte) (paragraphs, tables int, err error) {
	decoder := xml.NewDecoder(bytes.NewReader(doc))

	tblDepth := 0
	inParagraph := false
	var text strings.Builder

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				if tblDepth == 0 {
					tables++
				}
				tblDepth++
			case "p":
				if tblDepth == 0 {
					inParagraph = true
					text.Reset()
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "p":
				if tblDepth == 0 && inParagraph {
					if strings.TrimSpace(text.String()) != "" {
						paragraphs++
					}
					inParagraph = false
				}
			}
		case xml.CharData:
			if inParagraph && tblDepth == 0 {
				text.Write(t)
			}
		}
	}
	return paragraphs, tables, nil
}

type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
	Created string `xml:"created"`
}

func fillCoreProperties(core []byte, meta *models.FileMetadata) {
	var props coreProperties
	if err := xml.Unmarshal(core, &props); err != nil {
		return
	}
	meta.Title = props.Title
	meta.Author = props.Creator
	meta.CreationDate = props.Created
}
