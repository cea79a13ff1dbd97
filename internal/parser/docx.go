package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	docxParserName     = "docx"
	docxParserPriority = 89
)

// DOCXParser converts a Word document to markdown (heading styles become
// ATX headings, tables become pipe rows) and parses the result as markdown.
// DOCX has no page information in document.xml, so no pageNum map is built.
type DOCXParser struct{}

// NewDOCXParser creates a DOCX parser.
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

func (p *DOCXParser) Name() string  { return docxParserName }
func (p *DOCXParser) Priority() int { return docxParserPriority }

func (p *DOCXParser) CanHandle(path, mimeType string) bool {
	return mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(strings.ToLower(path), ".docx")
}

type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
	Tables     []docxTable     `xml:"tbl"`
}

type docxParagraph struct {
	Properties docxParagraphProps `xml:"pPr"`
	Runs       []docxRun          `xml:"r"`
}

type docxParagraphProps struct {
	Style docxStyleRef `xml:"pStyle"`
}

type docxStyleRef struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxTableRow `xml:"tr"`
}

type docxTableRow struct {
	Cells []docxTableCell `xml:"tc"`
}

type docxTableCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

func (p *DOCXParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx %s as zip; %w", path, err)
	}

	doc, err := readDocumentXML(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document.xml of %s; %w", path, err)
	}

	var md []string
	for _, para := range doc.Body.Paragraphs {
		text := paragraphText(para)
		if text == "" {
			md = append(md, "")
			continue
		}
		if level := headingLevel(para.Properties.Style.Val); level > 0 {
			md = append(md, strings.Repeat("#", level)+" "+text, "")
		} else {
			md = append(md, text, "")
		}
	}
	for _, table := range doc.Body.Tables {
		for _, row := range table.Rows {
			var cells []string
			for _, cell := range row.Cells {
				var parts []string
				for _, para := range cell.Paragraphs {
					if t := paragraphText(para); t != "" {
						parts = append(parts, t)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			md = append(md, "| "+strings.Join(cells, " | ")+" |")
		}
		md = append(md, "")
	}

	g, err := parseMarkdown(path, strings.Join(md, "\n"), opts, nil)
	if err != nil {
		return nil, err
	}
	g.Metadata["converter"] = docxParserName
	return g, nil
}

func readDocumentXML(zr *zip.Reader) (*docxDocument, error) {
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		var doc docxDocument
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	}
	return nil, fmt.Errorf("word/document.xml not found")
}

func paragraphText(para docxParagraph) string {
	var sb strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			sb.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

// headingLevel maps a Word paragraph style id to an ATX level.
func headingLevel(style string) int {
	style = strings.ToLower(style)
	if !strings.HasPrefix(style, "heading") {
		if style == "title" {
			return 1
		}
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	default:
		return 2
	}
}
