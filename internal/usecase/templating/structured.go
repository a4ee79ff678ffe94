package templating

import (
	"github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/template"
)

// Structured builds structured results from the first matched template
// that asks for them. Records follow hit order; documents carrying none
// of the fields are left out. Returns nil when no template applies.
func Structured(
	matched []template.Template, hits []hit.Hit, docs map[string]document.Document,
) []template.StructuredRecord {
	var fields []string
	for _, tpl := range matched {
		if tpl.StructuredIfExists() && len(tpl.StructuredFields()) > 0 {
			fields = tpl.StructuredFields()
			break
		}
	}
	if len(fields) == 0 {
		return nil
	}

	var out []template.StructuredRecord
	for _, name := range hit.DocumentNames(hits) {
		doc, ok := docs[name]
		if !ok {
			continue
		}
		rec := template.StructuredRecord{
			Name:         doc.Name(),
			Path:         doc.Path(),
			RelativePath: doc.RelativePath(),
			Fields:       make(map[string]metadata.Value, len(fields)),
		}
		for _, f := range fields {
			if v, found := doc.Metadata().Get(f); found {
				rec.Fields[f] = v
			}
		}
		if len(rec.Fields) > 0 {
			out = append(out, rec)
		}
	}
	return out
}
