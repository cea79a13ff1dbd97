package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Well-known node property names. Underscore-prefixed properties are
// pipeline bookkeeping; everything else is business data.
const (
	PropUUID                = "uuid"
	PropName                = "_name"
	PropContent             = "_content"
	PropDescription         = "_description"
	PropState               = "_state"
	PropStateChangedAt      = "_stateChangedAt"
	PropRawContent          = "_rawContent"
	PropRawContentHash      = "_rawContentHash"
	PropContentHash         = "_contentHash"
	PropEntitiesContentHash = "_entitiesContentHash"
	PropIsVirtual           = "isVirtual"
	PropErrorType           = "errorType"
	PropErrorMessage        = "errorMessage"
	PropRetryCount          = "retryCount"
	PropUsesChunks          = "usesChunks"
	PropChunkCount          = "chunkCount"
	PropEmbeddingProvider   = "embedding_provider"
	PropEmbeddingModel      = "embedding_model"
	PropProjectID           = "projectId"
)

// Props is a property bag as stored on a graph node.
type Props = map[string]any

// File is the typed view of a File node used by the pipeline. All of it is
// persisted as node properties; the graph is the single source of truth.
type File struct {
	UUID           string
	ProjectID      string
	Path           string // project-relative
	AbsolutePath   string
	Name           string
	Extension      string
	Directory      string
	RawContentHash string
	ContentHash    string
	IsVirtual      bool
	State          State
	StateChangedAt time.Time
	ErrorType      string
	ErrorMessage   string
	RetryCount     int
}

// VirtualPathPrefix marks paths whose bytes live only in the graph.
const VirtualPathPrefix = "virtual://"

// Virtual reports whether the file's content is graph-resident rather than
// on disk.
func (f *File) Virtual() bool {
	return f.IsVirtual || f.AbsolutePath == "" || strings.HasPrefix(f.Path, VirtualPathPrefix)
}

// NewFile builds a File for a project-relative path, deriving the
// deterministic uuid and the name/extension/directory attributes.
func NewFile(projectID, relPath, absPath string) *File {
	return &File{
		UUID:         FileUUID(projectID, relPath),
		ProjectID:    projectID,
		Path:         relPath,
		AbsolutePath: absPath,
		Name:         filepath.Base(relPath),
		Extension:    strings.ToLower(filepath.Ext(relPath)),
		Directory:    filepath.Dir(relPath),
	}
}

// Properties renders the File as a graph property bag.
func (f *File) Properties() Props {
	p := Props{
		PropUUID:         f.UUID,
		PropProjectID:    f.ProjectID,
		"path":           f.Path,
		"absolutePath":   f.AbsolutePath,
		"name":           f.Name,
		"extension":      f.Extension,
		"directory":      f.Directory,
		PropIsVirtual:    f.IsVirtual,
		PropRawContentHash: f.RawContentHash,
	}
	if f.ContentHash != "" {
		p[PropContentHash] = f.ContentHash
	}
	return p
}

// FileFromProps rebuilds a File from a graph property bag.
func FileFromProps(p Props) *File {
	f := &File{
		UUID:           str(p[PropUUID]),
		ProjectID:      str(p[PropProjectID]),
		Path:           str(p["path"]),
		AbsolutePath:   str(p["absolutePath"]),
		Name:           str(p["name"]),
		Extension:      str(p["extension"]),
		Directory:      str(p["directory"]),
		RawContentHash: str(p[PropRawContentHash]),
		ContentHash:    str(p[PropContentHash]),
		State:          State(str(p[PropState])),
		ErrorType:      str(p[PropErrorType]),
		ErrorMessage:   str(p[PropErrorMessage]),
		RetryCount:     intval(p[PropRetryCount]),
	}
	if b, ok := p[PropIsVirtual].(bool); ok {
		f.IsVirtual = b
	}
	if ts, ok := p[PropStateChangedAt].(time.Time); ok {
		f.StateChangedAt = ts
	}
	return f
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func intval(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Str and Int expose the property coercions used across packages that read
// raw graph records.
func Str(v any) string { return str(v) }
func Int(v any) int    { return intval(v) }

// Bool coerces a property value to bool.
func Bool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// Float coerces a property value to float64.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
