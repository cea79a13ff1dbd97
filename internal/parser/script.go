package parser

import (
	"context"
	"regexp"
	"strings"

	"github.com/codegraphhq/codegraph/internal/ingest"
	"github.com/codegraphhq/codegraph/internal/model"
)

const (
	scriptParserName     = "script"
	scriptParserPriority = 65
)

// Declaration patterns. Regex scanning is deliberate: a full language parser
// is an external collaborator registered through the same interface; the
// built-in covers the reference shapes the resolver consumes.
var (
	jsImportRe  = regexp.MustCompile(`^\s*import\s+(?:type\s+)?(.+?)\s+from\s+['"]([^'"]+)['"]`)
	jsBareImpRe = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	jsRequireRe = regexp.MustCompile(`(?:const|let|var)\s+(?:\{([^}]+)\}|(\w+))\s*=\s*require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsFuncRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(([^)]*)`)
	jsArrowRe   = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?\(([^)]*)\)?\s*(?::[^=]+)?=>`)
	jsClassRe   = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)(?:\s+extends\s+([\w.]+))?(?:\s+implements\s+([\w.,\s]+))?`)
	jsMethodRe  = regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+|async\s+|get\s+|set\s+)*(\w+)\s*\(([^)]*)\)\s*(?::\s*[\w<>\[\].\s|]+)?\s*\{`)
	jsIfaceRe   = regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)(?:\s+extends\s+([\w.,\s]+))?`)
	jsTypeRe    = regexp.MustCompile(`^\s*(?:export\s+)?type\s+(\w+)\s*=`)
	decoratorRe = regexp.MustCompile(`^\s*@([\w.]+)`)

	pyImportRe  = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+(.+)`)
	pyModuleRe  = regexp.MustCompile(`^\s*import\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	pyFuncRe    = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(([^)]*)`)
	pyClassRe   = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	callRe      = regexp.MustCompile(`\b(\w+)\s*\(`)
	jsKeywordRe = regexp.MustCompile(`^(if|for|while|switch|catch|return|new|function|typeof|await|super|this|constructor|console)$`)
)

// scriptScope is one construct while scanning.
type scriptScope struct {
	name       string
	scopeType  string // function | class | method | interface | typealias | module
	signature  string
	params     string
	parent     *scriptScope
	startLine  int
	endLine    int
	heritage   []string // extends
	implements []string
	decorators []string
	lines      []string
	doc        string
}

// ScriptParser extracts Scope nodes and symbolic references from JavaScript,
// TypeScript and Python sources.
type ScriptParser struct{}

// NewScriptParser creates a script parser.
func NewScriptParser() *ScriptParser {
	return &ScriptParser{}
}

func (p *ScriptParser) Name() string  { return scriptParserName }
func (p *ScriptParser) Priority() int { return scriptParserPriority }

func (p *ScriptParser) CanHandle(path, mimeType string) bool {
	switch ingest.DetectLanguage(path) {
	case "javascript", "typescript", "python":
		return true
	}
	return false
}

func (p *ScriptParser) Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error) {
	language := ingest.DetectLanguage(path)
	return parseScript(path, string(data), language, opts)
}

// parseScript is shared with the Vue and Svelte parsers, which hand over
// their script block with a line offset.
func parseScript(path, text, language string, opts Options) (*Graph, error) {
	return parseScriptAt(path, text, language, opts, 0)
}

func parseScriptAt(path, text, language string, opts Options, lineOffset int) (*Graph, error) {
	fileUUID := opts.File.UUID
	lines := strings.Split(text, "\n")

	imports := map[string]string{} // local name -> module
	var scopes []*scriptScope
	module := &scriptScope{
		name:      opts.File.Name,
		scopeType: "module",
		signature: path,
		startLine: lineOffset + 1,
		endLine:   lineOffset + len(lines),
	}
	scopes = append(scopes, module)

	if language == "python" {
		scanPython(lines, lineOffset, imports, &scopes)
	} else {
		scanECMAScript(lines, lineOffset, imports, &scopes)
	}

	g := &Graph{Metadata: model.Props{"language": language}}
	ids := make(map[*scriptScope]string, len(scopes))

	for _, sc := range scopes {
		id := model.ScopeUUID(fileUUID, sc.name, sc.scopeType, sc.signature)
		ids[sc] = id

		content := strings.TrimRight(strings.Join(sc.lines, "\n"), "\n")
		if sc == module {
			content = text
		}
		props := model.Props{
			model.PropName: sc.name,
			"type":         sc.scopeType,
			"language":     language,
			PropStartLine:  sc.startLine,
			PropEndLine:    sc.endLine,
			"signature":    sc.signature,
		}
		if content != "" {
			props[model.PropContent] = content
		}
		if sc.doc != "" {
			props[model.PropDescription] = sc.doc
		}
		if sc.params != "" {
			props["parameters"] = sc.params
		}
		if len(sc.decorators) > 0 {
			props["decorators"] = strings.Join(sc.decorators, ",")
		}
		if len(sc.heritage) > 0 {
			props["heritage"] = strings.Join(sc.heritage, ",")
		}
		if sc.parent != nil {
			props["parentUuid"] = ids[sc.parent]
		}
		g.Nodes = append(g.Nodes, Node{
			ID:         id,
			Labels:     []string{model.LabelScope},
			Properties: props,
		})

		if sc.parent != nil {
			g.Relationships = append(g.Relationships, Relationship{
				Type: model.EdgeHasParent,
				From: id,
				To:   ids[sc.parent],
			})
		}

		for _, base := range sc.heritage {
			g.References = append(g.References, Reference{
				FromID: id, Symbol: base, Module: imports[base], Kind: RefInherits,
			})
		}
		for _, iface := range sc.implements {
			g.References = append(g.References, Reference{
				FromID: id, Symbol: iface, Module: imports[iface], Kind: RefImplement,
			})
		}
		for _, dec := range sc.decorators {
			base := strings.SplitN(dec, ".", 2)[0]
			g.References = append(g.References, Reference{
				FromID: id, Symbol: base, Module: imports[base], Kind: RefDecorated,
			})
		}

		emitCallRefs(g, id, sc, module, imports)
	}

	// Module-level imports become import references even when the imported
	// name is never called (re-exports, side-effect usage).
	for local, mod := range imports {
		g.References = append(g.References, Reference{
			FromID: ids[module], Symbol: local, Module: mod, Kind: RefImports,
		})
	}

	return g, nil
}

func scanECMAScript(lines []string, offset int, imports map[string]string, scopes *[]*scriptScope) {
	var pendingDecorators []string
	var current *scriptScope // enclosing class, for methods
	depth := 0
	classDepth := 0

	for i, line := range lines {
		lineNo := offset + i + 1

		if m := jsImportRe.FindStringSubmatch(line); m != nil {
			for _, name := range splitImportClause(m[1]) {
				imports[name] = m[2]
			}
			continue
		}
		if jsBareImpRe.MatchString(line) {
			// Side-effect import; nothing to bind.
			continue
		}
		if m := jsRequireRe.FindStringSubmatch(line); m != nil {
			if m[1] != "" {
				for _, name := range splitImportClause("{" + m[1] + "}") {
					imports[name] = m[3]
				}
			} else if m[2] != "" {
				imports[m[2]] = m[3]
			}
		}

		if m := decoratorRe.FindStringSubmatch(line); m != nil {
			pendingDecorators = append(pendingDecorators, m[1])
			continue
		}

		var sc *scriptScope
		switch {
		case jsClassRe.MatchString(line):
			m := jsClassRe.FindStringSubmatch(line)
			sc = &scriptScope{name: m[1], scopeType: "class"}
			if m[2] != "" {
				sc.heritage = append(sc.heritage, m[2])
			}
			for _, iface := range strings.Split(m[3], ",") {
				if iface = strings.TrimSpace(iface); iface != "" {
					sc.implements = append(sc.implements, iface)
				}
			}
			current = sc
			classDepth = depth
		case jsIfaceRe.MatchString(line):
			m := jsIfaceRe.FindStringSubmatch(line)
			sc = &scriptScope{name: m[1], scopeType: "interface"}
			for _, base := range strings.Split(m[2], ",") {
				if base = strings.TrimSpace(base); base != "" {
					sc.heritage = append(sc.heritage, base)
				}
			}
		case jsTypeRe.MatchString(line):
			m := jsTypeRe.FindStringSubmatch(line)
			sc = &scriptScope{name: m[1], scopeType: "typealias"}
		case jsFuncRe.MatchString(line):
			m := jsFuncRe.FindStringSubmatch(line)
			sc = &scriptScope{name: m[1], scopeType: "function", params: strings.TrimSpace(m[2])}
		case jsArrowRe.MatchString(line):
			m := jsArrowRe.FindStringSubmatch(line)
			sc = &scriptScope{name: m[1], scopeType: "function", params: strings.TrimSpace(m[2])}
		case current != nil && depth == classDepth+1 && jsMethodRe.MatchString(line):
			m := jsMethodRe.FindStringSubmatch(line)
			if !jsKeywordRe.MatchString(m[1]) {
				sc = &scriptScope{
					name:      m[1],
					scopeType: "method",
					params:    strings.TrimSpace(m[2]),
					parent:    current,
				}
			}
		}

		if sc != nil {
			sc.signature = strings.TrimSpace(line)
			sc.startLine = lineNo
			sc.endLine = lineNo
			sc.decorators = pendingDecorators
			pendingDecorators = nil
			*scopes = append(*scopes, sc)
			captureBraceBody(lines, i, offset, sc)
		} else if strings.TrimSpace(line) != "" {
			pendingDecorators = nil
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if current != nil && depth <= classDepth && strings.Contains(line, "}") {
			current.endLine = lineNo
			current = nil
		}
	}
}

// captureBraceBody collects the lines of a brace-delimited construct.
func captureBraceBody(lines []string, start, offset int, sc *scriptScope) {
	depth := 0
	opened := false
	for i := start; i < len(lines); i++ {
		sc.lines = append(sc.lines, lines[i])
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if strings.Contains(lines[i], "{") {
			opened = true
		}
		if opened && depth <= 0 {
			sc.endLine = offset + i + 1
			return
		}
		if !opened && i > start {
			// Single-line construct (type alias, expression-body arrow).
			sc.endLine = offset + start + 1
			sc.lines = sc.lines[:1]
			return
		}
	}
	sc.endLine = offset + len(lines)
}

func scanPython(lines []string, offset int, imports map[string]string, scopes *[]*scriptScope) {
	var pendingDecorators []string
	var current *scriptScope
	currentIndent := -1

	for i, line := range lines {
		lineNo := offset + i + 1

		if m := pyImportRe.FindStringSubmatch(line); m != nil {
			for _, part := range strings.Split(m[2], ",") {
				name := strings.TrimSpace(part)
				if idx := strings.Index(name, " as "); idx >= 0 {
					name = strings.TrimSpace(name[idx+4:])
				}
				if name != "" && name != "*" {
					imports[name] = m[1]
				}
			}
			continue
		}
		if m := pyModuleRe.FindStringSubmatch(line); m != nil && !strings.Contains(line, " from ") {
			name := m[1]
			if m[2] != "" {
				name = m[2]
			}
			imports[name] = m[1]
			continue
		}
		if m := decoratorRe.FindStringSubmatch(line); m != nil {
			pendingDecorators = append(pendingDecorators, m[1])
			continue
		}

		var sc *scriptScope
		var indent int
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			indent = len(m[1])
			sc = &scriptScope{name: m[2], scopeType: "class"}
			for _, base := range strings.Split(m[3], ",") {
				if base = strings.TrimSpace(base); base != "" && base != "object" {
					sc.heritage = append(sc.heritage, base)
				}
			}
			current = sc
			currentIndent = indent
		} else if m := pyFuncRe.FindStringSubmatch(line); m != nil {
			indent = len(m[1])
			sc = &scriptScope{name: m[2], scopeType: "function", params: strings.TrimSpace(m[3])}
			if current != nil && indent > currentIndent {
				sc.scopeType = "method"
				sc.parent = current
			}
		}

		if sc != nil {
			sc.signature = strings.TrimSpace(line)
			sc.startLine = lineNo
			sc.decorators = pendingDecorators
			pendingDecorators = nil
			captureIndentBody(lines, i, indent, offset, sc)
			*scopes = append(*scopes, sc)
		} else if strings.TrimSpace(line) != "" {
			pendingDecorators = nil
		}
	}
}

// captureIndentBody collects an indentation-delimited Python block and its
// leading docstring.
func captureIndentBody(lines []string, start, indent, offset int, sc *scriptScope) {
	sc.lines = append(sc.lines, lines[start])
	end := start
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			sc.lines = append(sc.lines, lines[i])
			continue
		}
		lineIndent := len(lines[i]) - len(strings.TrimLeft(lines[i], " \t"))
		if lineIndent <= indent {
			break
		}
		sc.lines = append(sc.lines, lines[i])
		end = i
	}
	sc.endLine = offset + end + 1

	if len(sc.lines) > 1 {
		first := strings.TrimSpace(sc.lines[1])
		if strings.HasPrefix(first, `"""`) || strings.HasPrefix(first, "'''") {
			sc.doc = strings.Trim(first, `"'`)
		}
	}
}

// emitCallRefs scans a scope body for calls to imported names.
func emitCallRefs(g *Graph, id string, sc *scriptScope, module *scriptScope, imports map[string]string) {
	if sc == module || len(sc.lines) == 0 {
		return
	}
	seen := make(map[string]bool)
	body := strings.Join(sc.lines, "\n")
	for _, m := range callRe.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if seen[name] || jsKeywordRe.MatchString(name) || name == sc.name {
			continue
		}
		mod, imported := imports[name]
		if !imported {
			continue
		}
		seen[name] = true
		g.References = append(g.References, Reference{
			FromID: id, Symbol: name, Module: mod, Kind: RefConsumes,
		})
	}
}

// splitImportClause parses the clause between "import" and "from": default
// imports, namespace imports and named-import lists.
func splitImportClause(clause string) []string {
	clause = strings.TrimSpace(clause)
	var names []string

	if idx := strings.Index(clause, "{"); idx >= 0 {
		if head := strings.TrimSuffix(strings.TrimSpace(clause[:idx]), ","); head != "" {
			names = append(names, head)
		}
		inner := clause[idx+1:]
		if end := strings.Index(inner, "}"); end >= 0 {
			inner = inner[:end]
		}
		for _, part := range strings.Split(inner, ",") {
			name := strings.TrimSpace(part)
			if as := strings.Index(name, " as "); as >= 0 {
				name = strings.TrimSpace(name[as+4:])
			}
			if name != "" {
				names = append(names, name)
			}
		}
		return names
	}

	if strings.HasPrefix(clause, "* as ") {
		return []string{strings.TrimSpace(strings.TrimPrefix(clause, "* as "))}
	}
	for _, part := range strings.Split(clause, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
