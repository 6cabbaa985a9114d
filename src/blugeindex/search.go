package blugeindex

import (
	"context"
	"fmt"

	"github.com/blugelabs/bluge"
)

// IDField is the field bluge keeps document identifiers in
const IDField = "_id"

// StoredDocument is a matched document with its stored field values
type StoredDocument struct {
	ID     string
	Fields map[string][]string
}

// Collect runs query and returns up to limit stored documents, the ones with
// the smallest ids. A negative limit returns every match
func Collect(ctx context.Context, reader *bluge.Reader, query bluge.Query, limit int) ([]StoredDocument, error) {
	if limit == 0 {
		return nil, nil
	}

	var req bluge.SearchRequest
	if limit > 0 {
		req = bluge.NewTopNSearch(limit, query).SortBy([]string{IDField})
	} else {
		req = bluge.NewAllMatches(query)
	}

	matches, err := reader.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var docs []StoredDocument
	match, err := matches.Next()
	for err == nil && match != nil {
		doc := StoredDocument{Fields: make(map[string][]string)}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == IDField {
				doc.ID = string(value)
				return true
			}
			doc.Fields[field] = append(doc.Fields[field], string(value))
			return true
		})
		if visitErr != nil {
			return nil, fmt.Errorf("failed to load stored fields: %w", visitErr)
		}
		docs = append(docs, doc)

		if limit > 0 && len(docs) >= limit {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return docs, nil
}
