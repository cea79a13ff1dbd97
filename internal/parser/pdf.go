package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	pdfParserName     = "pdf"
	pdfParserPriority = 90
)

// Heading heuristics for untagged PDF text.
var (
	pdfHeadingNumericRe = regexp.MustCompile(`^(\d+\.?)+\s+[A-Za-z]`)
	pdfHeadingUpperRe   = regexp.MustCompile(`^[A-Z][A-Z\s]{3,}$`)
	pdfHeadingTitleRe   = regexp.MustCompile(`(?i)^(Chapter|Section|Part|Appendix)\s+\w+`)
)

// PDFParser converts a PDF to markdown, carrying a per-line page map so the
// resulting sections (and later their embedding chunks) know their page
// number, then parses the markdown normally.
type PDFParser struct{}

// NewPDFParser creates a PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Name() string  { return pdfParserName }
func (p *PDFParser) Priority() int { return pdfParserPriority }

func (p *PDFParser) CanHandle(path, mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(path), ".pdf")
}

func (p *PDFParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), pdfmodel.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf %s; %w", path, err)
	}

	var mdLines []string
	var linePages []int

	appendLine := func(line string, page int) {
		mdLines = append(mdLines, line)
		linePages = append(linePages, page)
	}

	for page := 1; page <= pdfCtx.PageCount; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		reader, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(reader)
		if err != nil {
			continue
		}

		for _, line := range strings.Split(extractContentStreamText(raw), "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				appendLine("", page)
				continue
			}
			if isPDFHeading(trimmed) {
				appendLine("## "+trimmed, page)
			} else {
				appendLine(trimmed, page)
			}
		}
		appendLine("", page)
	}

	g, err := parseMarkdown(path, strings.Join(mdLines, "\n"), opts, func(line int) int {
		if line >= 1 && line <= len(linePages) {
			return linePages[line-1]
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	g.Metadata["pageCount"] = pdfCtx.PageCount
	g.Metadata["converter"] = pdfParserName
	return g, nil
}

func isPDFHeading(line string) bool {
	if len(line) > 120 {
		return false
	}
	return pdfHeadingNumericRe.MatchString(line) ||
		pdfHeadingUpperRe.MatchString(line) ||
		pdfHeadingTitleRe.MatchString(line)
}

// extractContentStreamText pulls literal strings out of a PDF content
// stream. Text sits in Tj/TJ operators as (string) literals; escape
// sequences are the usual backslash forms.
func extractContentStreamText(content []byte) string {
	var text strings.Builder
	var current strings.Builder
	str := string(content)
	inParens := 0

	for i := 0; i < len(str); i++ {
		ch := str[i]
		switch {
		case ch == '(' && (i == 0 || str[i-1] != '\\'):
			inParens++
			if inParens == 1 {
				current.Reset()
			}
		case ch == ')' && (i == 0 || str[i-1] != '\\'):
			if inParens > 0 {
				inParens--
				if inParens == 0 && current.Len() > 0 {
					text.WriteString(current.String())
					text.WriteString(" ")
				}
			}
		case inParens > 0:
			if ch == '\\' && i+1 < len(str) {
				switch next := str[i+1]; next {
				case 'n':
					current.WriteString("\n")
					i++
				case 'r', 't':
					current.WriteString(" ")
					i++
				case '(', ')', '\\':
					current.WriteByte(next)
					i++
				default:
					current.WriteByte(ch)
				}
			} else {
				current.WriteByte(ch)
			}
		}
	}
	return text.String()
}
