package facet

import (
	"github.com/marmos91/facetfs/pkg/facet/processor"
	"github.com/marmos91/facetfs/pkg/facet/store"
)

// reconstruct groups flat joined rows into one Meta per distinct path.
//
// Rows arrive pre-sorted by path and are streamed in order, never re-sorted:
// consecutive rows sharing a path fold into the same view. A row with a nil
// key carries node fields only (LEFT JOIN miss) and contributes no metadata.
func reconstruct(rows []store.Row) []*Meta {
	var out []*Meta
	var current *Meta
	for _, row := range rows {
		if current == nil || current.Path != row.Path {
			current = &Meta{
				ID:           row.ID,
				ParentID:     row.ParentID,
				Path:         row.Path,
				Type:         row.Type,
				ContentTypes: row.ContentTypes,
				Metadata:     processor.Fields{},
			}
			out = append(out, current)
		}
		if row.Key == nil {
			continue
		}
		language := processor.NoLanguage
		if row.Language != nil {
			language = *row.Language
		}
		var value string
		if row.Value != nil {
			value = *row.Value
		}
		current.Metadata.Set(language, *row.Key, value)
	}
	return out
}
