// Package embed keeps every applicable embedding view of every linked node
// current: it collects per-view tasks, chunks oversized content, dispatches
// batches to the embedding provider and persists vectors together with the
// ready transition.
package embed

import (
	"sort"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

// View is one semantic projection of a node: the property carrying the
// vector, the property carrying the hash it was computed for, and a pure
// extractor over the node's business fields.
type View struct {
	Name       string
	VectorProp string
	HashProp   string
	Extract    func(props model.Props) string
}

// The three canonical views.
var (
	nameView = View{
		Name:       "name",
		VectorProp: "embedding_name",
		HashProp:   "embedding_name_hash",
		Extract: func(p model.Props) string {
			return strings.TrimSpace(model.Str(p[model.PropName]))
		},
	}
	contentView = View{
		Name:       "content",
		VectorProp: "embedding_content",
		HashProp:   "embedding_content_hash",
		Extract: func(p model.Props) string {
			return strings.TrimSpace(model.Str(p[model.PropContent]))
		},
	}
	descriptionView = View{
		Name:       "description",
		VectorProp: "embedding_description",
		HashProp:   "embedding_description_hash",
		Extract: func(p model.Props) string {
			return strings.TrimSpace(model.Str(p[model.PropDescription]))
		},
	}
)

// ViewTable declares which views apply per label. Data, not code: labels
// can be reconfigured without touching the engine.
type ViewTable map[string][]View

// DefaultViewTable covers every content-bearing label. Media files carry no
// text, so only the name view applies; entities embed name and description
// (the content equals the name by construction).
func DefaultViewTable() ViewTable {
	t := make(ViewTable)
	for _, label := range model.ContentLabels {
		switch label {
		case model.LabelMediaFile:
			t[label] = []View{nameView}
		case model.LabelExternalLibrary, model.LabelExternalURL:
			t[label] = []View{nameView}
		case model.LabelEntity:
			t[label] = []View{nameView, descriptionView}
		case model.LabelCSSVariable, model.LabelDataSection, model.LabelPackageJson:
			t[label] = []View{nameView, contentView}
		default:
			t[label] = []View{nameView, contentView, descriptionView}
		}
	}
	return t
}

// Labels returns the configured labels in stable order.
func (t ViewTable) Labels() []string {
	labels := make([]string, 0, len(t))
	for _, label := range model.ContentLabels {
		if _, ok := t[label]; ok {
			labels = append(labels, label)
		}
	}
	// Any label configured outside the canonical list goes last, sorted.
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}
	var extra []string
	for label := range t {
		if !known[label] {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)
	return append(labels, extra...)
}
