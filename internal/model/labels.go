package model

// Node labels stored in the graph. The uniqueness key enforced by the store
// is (label, uuid) for every label below.
const (
	LabelProject          = "Project"
	LabelFile             = "File"
	LabelDirectory        = "Directory"
	LabelScope            = "Scope"
	LabelMarkdownDocument = "MarkdownDocument"
	LabelMarkdownSection  = "MarkdownSection"
	LabelCodeBlock        = "CodeBlock"
	LabelWebDocument      = "WebDocument"
	LabelVueSFC           = "VueSFC"
	LabelSvelteComponent  = "SvelteComponent"
	LabelStylesheet       = "Stylesheet"
	LabelCSSVariable      = "CSSVariable"
	LabelDataFile         = "DataFile"
	LabelDataSection      = "DataSection"
	LabelMediaFile        = "MediaFile"
	LabelDocumentFile     = "DocumentFile"
	LabelPackageJson      = "PackageJson"
	LabelExternalLibrary  = "ExternalLibrary"
	LabelExternalURL      = "ExternalURL"
	LabelEntity           = "Entity"
	LabelEmbeddingChunk   = "EmbeddingChunk"
)

// Relationship types.
const (
	EdgeBelongsTo         = "BELONGS_TO"
	EdgeDefinedIn         = "DEFINED_IN"
	EdgeInDirectory       = "IN_DIRECTORY"
	EdgeParentOf          = "PARENT_OF"
	EdgeHasParent         = "HAS_PARENT"
	EdgeHasSection        = "HAS_SECTION"
	EdgeChildOf           = "CHILD_OF"
	EdgeContainsCode      = "CONTAINS_CODE"
	EdgeHasEmbeddingChunk = "HAS_EMBEDDING_CHUNK"
	EdgeConsumes          = "CONSUMES"
	EdgePendingImport     = "PENDING_IMPORT"
	EdgeInheritsFrom      = "INHERITS_FROM"
	EdgeImplements        = "IMPLEMENTS"
	EdgeDecoratedBy       = "DECORATED_BY"
	EdgeUsesLibrary       = "USES_LIBRARY"
	EdgeImports           = "IMPORTS"
	EdgeReferences        = "REFERENCES"
	EdgeLinksTo           = "LINKS_TO"
	EdgeReferencesImage   = "REFERENCES_IMAGE"
	EdgeMentions          = "MENTIONS"
	EdgeRelatedTo         = "RELATED_TO"
)

// ContentLabels are the labels that carry searchable content and participate
// in the embedding view table.
var ContentLabels = []string{
	LabelScope,
	LabelMarkdownDocument,
	LabelMarkdownSection,
	LabelCodeBlock,
	LabelWebDocument,
	LabelVueSFC,
	LabelSvelteComponent,
	LabelStylesheet,
	LabelCSSVariable,
	LabelDataFile,
	LabelDataSection,
	LabelMediaFile,
	LabelDocumentFile,
	LabelPackageJson,
	LabelExternalLibrary,
	LabelExternalURL,
	LabelEntity,
}

// EntityCandidateLabels are the labels eligible for named-entity extraction.
// Scope and CodeBlock are excluded: their value is in their references, not
// in NER over source text.
var EntityCandidateLabels = []string{
	LabelMarkdownDocument,
	LabelMarkdownSection,
	LabelWebDocument,
	LabelDocumentFile,
	LabelDataSection,
}
