// Package parser extracts text sections from uploaded files. PDF pages and
// spreadsheet sheets become separate sections carrying their page number;
// flat formats yield a single section on page 1.
package parser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"textbook-rag/internal/extract"
)

// Section is one page or sheet of extracted text.
type Section struct {
	Text string
	Page int
}

const defaultPage = 1

// ErrUnsupportedFormat marks file extensions no extractor handles.
type ErrUnsupportedFormat struct {
	Ext string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Ext)
}

// Parse extracts text sections from the file at path, dispatching on its
// extension.
func Parse(path string) ([]Section, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return parsePDF(path)
	case ".docx":
		return parseDOCX(path)
	case ".pptx":
		return parsePPTX(path)
	case ".xlsx":
		return parseXLSX(path)
	case ".ods":
		return parseODS(path)
	case ".txt":
		return parseText(path)
	case ".md", ".mdx":
		return parseMarkdown(path)
	default:
		return nil, &ErrUnsupportedFormat{Ext: ext}
	}
}

func parsePDF(path string) ([]Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var sections []Section
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sections = append(sections, Section{Text: text, Page: i})
	}
	return sections, nil
}

func parseDOCX(path string) ([]Section, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	text := extractTextFromXML(content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []Section{{Text: text, Page: defaultPage}}, nil
}

func parsePPTX(path string) ([]Section, error) {
	f, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening pptx: %w", err)
	}
	defer f.Close()

	var sections []Section
	slide := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		slide++
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		text := extractTextFromXML(string(data))
		if strings.TrimSpace(text) == "" {
			continue
		}
		sections = append(sections, Section{Text: text, Page: slide})
	}
	return sections, nil
}

func parseXLSX(path string) ([]Section, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}

	var sections []Section
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		empty := true
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				if cell.String() != "" {
					empty = false
				}
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		if empty {
			continue
		}
		sections = append(sections, Section{Text: text.String(), Page: sheetNum + 1})
	}
	return sections, nil
}

func parseODS(path string) ([]Section, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening ods: %w", err)
	}
	defer f.Close()

	var sections []Section
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		empty := true
		for _, row := range rows {
			for _, cell := range row {
				if cell != "" {
					empty = false
				}
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		if empty {
			continue
		}
		sections = append(sections, Section{Text: text.String(), Page: sheetNum + 1})
	}
	return sections, nil
}

func parseText(path string) ([]Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []Section{{Text: string(data), Page: defaultPage}}, nil
}

func parseMarkdown(path string) ([]Section, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_, body, err := extract.Markdown(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	return []Section{{Text: body, Page: defaultPage}}, nil
}

// extractTextFromXML pulls the character runs out of OOXML content without a
// full XML parse. Word uses <w:t>, PowerPoint uses <a:t>.
func extractTextFromXML(content string) string {
	var text strings.Builder
	for _, tag := range []string{"a:t", "w:t"} {
		open := "<" + tag
		closeTag := "</" + tag + ">"
		rest := content
		for {
			i := strings.Index(rest, open)
			if i < 0 {
				break
			}
			rest = rest[i+len(open):]
			// Allow attributes such as xml:space="preserve" but not
			// longer tag names sharing the prefix.
			if len(rest) == 0 || (rest[0] != '>' && rest[0] != ' ') {
				continue
			}
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				break
			}
			rest = rest[gt+1:]
			end := strings.Index(rest, closeTag)
			if end < 0 {
				break
			}
			text.WriteString(rest[:end] + " ")
			rest = rest[end+len(closeTag):]
		}
	}
	return text.String()
}
