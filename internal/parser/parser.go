// Package parser turns file bytes into a normalized property graph. Each
// parser handles one family of content; the dispatcher type-detects the file
// and routes it, then normalizes the result so downstream phases never see
// source-specific property names.
package parser

import (
	"context"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Node is one node produced by a parser. ID must be deterministic for the
// same logical construct across reparses.
type Node struct {
	ID         string
	Labels     []string
	Properties model.Props
}

// Relationship is one edge produced by a parser. When To is empty, the
// target is merged by TargetLabel plus TargetProps instead of matched by
// uuid (used for shared nodes such as ExternalURL and ExternalLibrary).
type Relationship struct {
	Type        string
	From        string
	To          string
	Properties  model.Props
	TargetLabel string
	TargetProps model.Props
}

// ReferenceKind classifies a symbolic cross-file reference.
type ReferenceKind string

const (
	RefConsumes  ReferenceKind = "consumes"
	RefImports   ReferenceKind = "imports"
	RefInherits  ReferenceKind = "inherits"
	RefImplement ReferenceKind = "implements"
	RefDecorated ReferenceKind = "decorated"
)

// Reference is an unresolved symbolic reference from a parsed node to a name
// that may live in another file. The resolver turns these into edges.
type Reference struct {
	FromID string
	Symbol string
	Module string // import specifier as written, "" for bare name references
	Kind   ReferenceKind
}

// Graph is the normalized parse result.
type Graph struct {
	Nodes         []Node
	Relationships []Relationship
	References    []Reference
	Metadata      model.Props
}

// Options carries the per-file context a parser needs.
type Options struct {
	ProjectID string
	File      *model.File
}

// Parser converts one family of file content into a Graph.
type Parser interface {
	Name() string
	CanHandle(path, mimeType string) bool
	Priority() int
	Parse(ctx context.Context, path string, data []byte, opts Options) (*Graph, error)
}

// PropPageNum is set on sections converted from paginated binary documents
// and propagates onto embedding chunks.
const PropPageNum = "pageNum"

// Common node property names produced by parsers beyond the model constants.
const (
	PropStartLine = "startLine"
	PropEndLine   = "endLine"
	PropFileUUID  = "fileUuid"
)
