package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	markdownParserName     = "markdown"
	markdownParserPriority = 70
)

var (
	atxHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	mdLinkRe     = regexp.MustCompile(`(^|[^!])\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
	mdImageRe    = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
)

// MarkdownParser splits a document into heading-delimited sections and
// fenced code blocks, and records outbound links and image references.
type MarkdownParser struct{}

// NewMarkdownParser creates a markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Name() string  { return markdownParserName }
func (p *MarkdownParser) Priority() int { return markdownParserPriority }

func (p *MarkdownParser) CanHandle(path, mimeType string) bool {
	if mimeType == "text/markdown" {
		return true
	}
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

func (p *MarkdownParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	return parseMarkdown(path, string(data), opts, nil)
}

// mdSection is a heading-delimited region during scanning.
type mdSection struct {
	heading   string
	level     int
	startLine int // 1-based, the heading line
	endLine   int
	path      []string // heading ancestry including self
	lines     []string
}

// parseMarkdown is shared between the markdown parser and the binary
// document converters, which synthesize markdown and pass a line-to-page
// mapping for pageNum propagation.
func parseMarkdown(path, text string, opts Options, pageOf func(line int) int) (*Graph, error) {
	fileUUID := opts.File.UUID
	lines := strings.Split(text, "\n")

	docID := model.ChildUUID(fileUUID, model.LabelMarkdownDocument, path)
	title := opts.File.Name

	var sections []*mdSection
	var stack []*mdSection
	var preamble []string
	inFence := false
	fenceMarker := ""

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			}
			appendLine(stack, &preamble, line)
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = true
			fenceMarker = trimmed[:3]
			appendLine(stack, &preamble, line)
			continue
		}

		m := atxHeadingRe.FindStringSubmatch(line)
		if m == nil {
			appendLine(stack, &preamble, line)
			continue
		}

		level := len(m[1])
		heading := m[2]
		if level == 1 && title == opts.File.Name {
			title = heading
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack[len(stack)-1].endLine = lineNo - 1
			stack = stack[:len(stack)-1]
		}

		sec := &mdSection{
			heading:   heading,
			level:     level,
			startLine: lineNo,
			endLine:   len(lines),
		}
		for _, parent := range stack {
			sec.path = append(sec.path, parent.heading)
		}
		sec.path = append(sec.path, heading)
		sections = append(sections, sec)
		stack = append(stack, sec)
	}

	g := &Graph{Metadata: model.Props{"title": title}}

	docProps := model.Props{
		model.PropName:    title,
		model.PropContent: text,
		"path":            path,
		"sectionCount":    len(sections),
	}
	g.Nodes = append(g.Nodes, Node{
		ID:         docID,
		Labels:     []string{model.LabelMarkdownDocument},
		Properties: docProps,
	})

	// Duplicate headings under the same ancestry are disambiguated by an
	// occurrence counter so uuids stay stable under unrelated edits.
	seen := make(map[string]int)
	sectionIDs := make(map[*mdSection]string, len(sections))

	for _, sec := range sections {
		key := strings.Join(sec.path, "/")
		seen[key]++
		if n := seen[key]; n > 1 {
			key = fmt.Sprintf("%s#%d", key, n)
		}
		id := model.ChildUUID(fileUUID, model.LabelMarkdownSection, key)
		sectionIDs[sec] = id

		content := strings.TrimRight(strings.Join(sec.lines, "\n"), "\n")
		props := model.Props{
			model.PropName:    sec.heading,
			model.PropContent: content,
			"level":           sec.level,
			PropStartLine:     sec.startLine,
			PropEndLine:       sec.endLine,
			"sectionPath":     strings.Join(sec.path, " > "),
		}
		if pageOf != nil {
			if page := pageOf(sec.startLine); page > 0 {
				props[PropPageNum] = page
			}
		}
		g.Nodes = append(g.Nodes, Node{
			ID:         id,
			Labels:     []string{model.LabelMarkdownSection},
			Properties: props,
		})

		g.Relationships = append(g.Relationships, Relationship{
			Type: model.EdgeHasSection,
			From: docID,
			To:   id,
		})
		if parent := parentSection(sections, sec); parent != nil {
			g.Relationships = append(g.Relationships, Relationship{
				Type: model.EdgeChildOf,
				From: id,
				To:   sectionIDs[parent],
			})
		}

		emitLinks(g, id, content)
	}

	emitCodeBlocks(g, fileUUID, docID, lines, sections, sectionIDs)

	if len(sections) == 0 {
		emitLinks(g, docID, text)
	} else if pre := strings.TrimSpace(strings.Join(preamble, "\n")); pre != "" {
		emitLinks(g, docID, pre)
	}

	return g, nil
}

func appendLine(stack []*mdSection, preamble *[]string, line string) {
	if len(stack) == 0 {
		*preamble = append(*preamble, line)
		return
	}
	for _, sec := range stack {
		sec.lines = append(sec.lines, line)
	}
}

// parentSection finds the nearest preceding section with a lower level.
func parentSection(sections []*mdSection, sec *mdSection) *mdSection {
	idx := -1
	for i, s := range sections {
		if s == sec {
			idx = i
			break
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if sections[i].level < sec.level {
			return sections[i]
		}
	}
	return nil
}

// emitCodeBlocks scans the whole document once and attaches each fenced
// block to the deepest section enclosing its opening fence (or to the
// document when it sits above the first heading).
func emitCodeBlocks(g *Graph, fileUUID, docID string, lines []string, sections []*mdSection, sectionIDs map[*mdSection]string) {
	var (
		inFence   bool
		lang      string
		block     []string
		fenceLine int
	)
	blockIdx := make(map[string]int)

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if !inFence {
			if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
				inFence = true
				lang = strings.TrimSpace(strings.TrimLeft(trimmed, "`~"))
				block = block[:0]
				fenceLine = lineNo
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = false
			content := strings.Join(block, "\n")
			if strings.TrimSpace(content) == "" {
				continue
			}

			ownerID := docID
			ownerKey := "doc"
			var owner *mdSection
			for _, sec := range sections {
				if sec.startLine <= fenceLine && fenceLine <= sec.endLine {
					if owner == nil || sec.level > owner.level {
						owner = sec
					}
				}
			}
			if owner != nil {
				ownerID = sectionIDs[owner]
				ownerKey = ownerID
			}

			blockIdx[ownerKey]++
			n := blockIdx[ownerKey]
			name := lang
			if name == "" {
				name = "code"
			}
			id := model.ChildUUID(fileUUID, model.LabelCodeBlock,
				fmt.Sprintf("%s:%d", ownerKey, n))
			g.Nodes = append(g.Nodes, Node{
				ID:     id,
				Labels: []string{model.LabelCodeBlock},
				Properties: model.Props{
					model.PropName:    fmt.Sprintf("%s block %d", name, n),
					model.PropContent: content,
					"language":        lang,
					PropStartLine:     fenceLine + 1,
					PropEndLine:       fenceLine + len(block),
				},
			})
			g.Relationships = append(g.Relationships, Relationship{
				Type: model.EdgeContainsCode,
				From: ownerID,
				To:   id,
			})
			continue
		}
		block = append(block, line)
	}
}

// emitLinks records outbound links and image references as edges to shared
// ExternalURL nodes merged by url.
func emitLinks(g *Graph, fromID, content string) {
	for _, m := range mdImageRe.FindAllStringSubmatch(content, -1) {
		g.Relationships = append(g.Relationships, Relationship{
			Type:        model.EdgeReferencesImage,
			From:        fromID,
			TargetLabel: model.LabelExternalURL,
			TargetProps: model.Props{
				model.PropUUID: model.URLUUID(m[2]),
				"url":          m[2],
				model.PropName: firstNonEmpty(m[1], m[2]),
			},
		})
	}
	stripped := mdImageRe.ReplaceAllString(content, "")
	for _, m := range mdLinkRe.FindAllStringSubmatch(stripped, -1) {
		url := m[3]
		if strings.HasPrefix(url, "#") {
			continue
		}
		g.Relationships = append(g.Relationships, Relationship{
			Type:        model.EdgeLinksTo,
			From:        fromID,
			TargetLabel: model.LabelExternalURL,
			TargetProps: model.Props{
				model.PropUUID: model.URLUUID(url),
				"url":          url,
				model.PropName: firstNonEmpty(m[2], url),
			},
		})
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
