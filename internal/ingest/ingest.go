// Package ingest classifies file content for parser routing. The probe is
// extension-first with a content sniff as tiebreaker: extensions carry more
// signal than the first bytes for source code and config files.
package ingest

import (
	"bytes"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Kind is the coarse content classification.
type Kind string

const (
	KindText       Kind = "text"
	KindStructured Kind = "structured"
	KindDocument   Kind = "document"
	KindImage      Kind = "image"
	KindArchive    Kind = "archive"
	KindMedia      Kind = "media"
	KindBinary     Kind = "binary"
	KindUnknown    Kind = "unknown"
)

// Mode is the processing decision for a probed file.
type Mode string

const (
	ModeParse    Mode = "parse"    // full parse into graph nodes
	ModeMetadata Mode = "metadata" // node with attributes only, no content
	ModeSkip     Mode = "skip"
)

const (
	ReasonTooLarge    = "too_large"
	ReasonBinary      = "binary"
	ReasonArchive     = "archive"
	ReasonMedia       = "media"
	ReasonImage       = "image"
	ReasonUnsupported = "unsupported"
)

// MaxParseBytes caps the size of content handed to parsers.
const MaxParseBytes = 100 * 1024 * 1024

// Probe inspects the path and a small byte sample and returns the kind, the
// MIME type, and the detected language (empty for non-code).
func Probe(path string, peek []byte) (Kind, string, string) {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := detectMIME(ext, peek)
	language := DetectLanguage(path)

	kind := kindFromMIME(mimeType)
	if kind == KindUnknown {
		kind = kindFromExtension(ext)
	}

	if kind == KindText || kind == KindStructured || kind == KindDocument {
		// Extension said text but the bytes disagree.
		if !isLikelyText(peek) && !isBinaryDocumentMIME(mimeType) {
			kind = KindBinary
		}
	}

	if kind == KindUnknown {
		if isLikelyText(peek) {
			kind = KindText
		} else if len(peek) > 0 {
			kind = KindBinary
		}
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return kind, mimeType, language
}

// Decide chooses the processing mode from kind and size.
func Decide(kind Kind, size int64) (Mode, string) {
	if size > MaxParseBytes {
		return ModeMetadata, ReasonTooLarge
	}

	switch kind {
	case KindText, KindStructured, KindDocument:
		return ModeParse, ""
	case KindImage:
		return ModeMetadata, ReasonImage
	case KindMedia:
		return ModeMetadata, ReasonMedia
	case KindArchive:
		return ModeMetadata, ReasonArchive
	case KindBinary:
		return ModeMetadata, ReasonBinary
	default:
		return ModeSkip, ReasonUnsupported
	}
}

// DetectLanguage maps a file extension to a language identifier, "" when the
// file is not source code.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs", ".jsx":
		return "javascript"
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	case ".vue":
		return "vue"
	case ".svelte":
		return "svelte"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".php":
		return "php"
	case ".sh", ".bash", ".zsh":
		return "shell"
	case ".sql":
		return "sql"
	default:
		return ""
	}
}

func detectMIME(ext string, peek []byte) string {
	extMime := strings.TrimSpace(mime.TypeByExtension(ext))
	if idx := strings.Index(extMime, ";"); idx != -1 {
		extMime = strings.TrimSpace(extMime[:idx])
	}
	if extMime == "" {
		extMime = extensionMIME[ext]
	}

	sniffed := http.DetectContentType(peek)
	if idx := strings.Index(sniffed, ";"); idx != -1 {
		sniffed = strings.TrimSpace(sniffed[:idx])
	}

	if extMime != "" {
		if sniffed == "" || sniffed == "application/octet-stream" || sniffed == "text/plain" {
			return extMime
		}
	}
	if sniffed != "" {
		return sniffed
	}
	return extMime
}

func kindFromMIME(mimeType string) Kind {
	mimeType = strings.ToLower(mimeType)

	switch {
	case structuredMIMEs[mimeType]:
		return KindStructured
	case documentMIMEs[mimeType]:
		return KindDocument
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case archiveMIMEs[mimeType]:
		return KindArchive
	case strings.HasPrefix(mimeType, "audio/"), strings.HasPrefix(mimeType, "video/"):
		return KindMedia
	case isBinaryMIME(mimeType):
		return KindBinary
	case strings.HasPrefix(mimeType, "text/"), textMIMEs[mimeType]:
		return KindText
	default:
		return KindUnknown
	}
}

func kindFromExtension(ext string) Kind {
	if ext == "" {
		return KindUnknown
	}
	if m := extensionMIME[ext]; m != "" {
		return kindFromMIME(m)
	}
	return KindUnknown
}

func isLikelyText(peek []byte) bool {
	if len(peek) == 0 {
		return true
	}
	if bytes.IndexByte(peek, 0) != -1 {
		return false
	}
	return utf8.Valid(peek)
}

// isBinaryDocumentMIME reports document formats whose bytes are binary but
// which the pipeline converts to markdown before parsing.
func isBinaryDocumentMIME(mimeType string) bool {
	switch mimeType {
	case "application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword":
		return true
	}
	return false
}

func isBinaryMIME(mimeType string) bool {
	if mimeType == "application/octet-stream" {
		return true
	}
	return binaryMIMEs[mimeType]
}

var textMIMEs = map[string]bool{
	"application/javascript": true,
	"application/x-yaml":     true,
	"application/yaml":       true,
}

var structuredMIMEs = map[string]bool{
	"application/json":          true,
	"application/x-ndjson":      true,
	"text/csv":                  true,
	"text/tab-separated-values": true,
	"text/yaml":                 true,
	"application/yaml":          true,
	"application/xml":           true,
	"text/xml":                  true,
	"text/toml":                 true,
}

var documentMIMEs = map[string]bool{
	"application/pdf":    true,
	"text/html":          true,
	"text/markdown":      true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

var archiveMIMEs = map[string]bool{
	"application/zip":             true,
	"application/x-tar":           true,
	"application/gzip":            true,
	"application/x-bzip2":         true,
	"application/x-xz":            true,
	"application/x-7z-compressed": true,
	"application/java-archive":    true,
}

var binaryMIMEs = map[string]bool{
	"application/x-executable": true,
	"application/x-sharedlib":  true,
	"application/x-archive":    true,
	"application/x-object":     true,
	"application/wasm":         true,
}

var extensionMIME = map[string]string{
	".go":     "text/x-go",
	".py":     "text/x-python",
	".js":     "text/javascript",
	".mjs":    "text/javascript",
	".cjs":    "text/javascript",
	".jsx":    "text/javascript-jsx",
	".ts":     "text/typescript",
	".tsx":    "text/typescript-jsx",
	".vue":    "text/x-vue",
	".svelte": "text/x-svelte",
	".rs":     "text/x-rust",
	".rb":     "text/x-ruby",
	".java":   "text/x-java",
	".c":      "text/x-c",
	".cpp":    "text/x-c++",
	".h":      "text/x-c-header",
	".cs":     "text/x-csharp",
	".php":    "text/x-php",
	".sh":     "text/x-shellscript",
	".sql":    "text/x-sql",

	".md":       "text/markdown",
	".markdown": "text/markdown",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".ini":      "text/ini",
	".conf":     "text/plain",
	".env":      "text/plain",

	".json":   "application/json",
	".jsonl":  "application/x-ndjson",
	".ndjson": "application/x-ndjson",
	".csv":    "text/csv",
	".tsv":    "text/tab-separated-values",
	".xml":    "application/xml",

	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",

	".zip": "application/zip",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
	".7z":  "application/x-7z-compressed",

	".exe":   "application/x-executable",
	".so":    "application/x-sharedlib",
	".dylib": "application/x-sharedlib",
	".wasm":  "application/wasm",
}
