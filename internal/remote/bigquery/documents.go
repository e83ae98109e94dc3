package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvolkov/homeledger/internal/domain"
)

// GetDocuments returns every document of a secondary collection.
func (s *Store) GetDocuments(ctx context.Context, ownerID, collection string) ([]domain.Document, error) {
	stmt := `SELECT document_id, owner_id, collection, fields
		FROM ` + s.table(documentsTable) + `
		WHERE owner_id = @owner_id AND collection = @collection
		ORDER BY document_id`
	q := s.client.Query(stmt)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "collection", Value: collection},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetDocuments: query read: %w", err)
	}
	var out []domain.Document
	for {
		var r documentRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetDocuments: iter next: %w", err)
		}
		out = append(out, domain.Document{ID: r.DocumentID, Fields: json.RawMessage(r.Fields)})
	}
	return out, nil
}

// PutDocuments replaces a collection's documents in one transaction: the
// collection is cleared and the new snapshot inserted.
func (s *Store) PutDocuments(ctx context.Context, ownerID, collection string, docs []domain.Document) error {
	tab := s.table(documentsTable)
	script := `BEGIN TRANSACTION;
	DELETE FROM ` + tab + ` WHERE owner_id = @owner_id AND collection = @collection;`
	params := []bigquery.QueryParameter{
		{Name: "owner_id", Value: ownerID},
		{Name: "collection", Value: collection},
	}
	for i, doc := range docs {
		prefix := "d" + strconv.Itoa(i) + "_"
		script += `
	INSERT INTO ` + tab + ` (document_id, owner_id, collection, fields)
	VALUES (@` + prefix + `id, @owner_id, @collection, @` + prefix + `fields);`
		params = append(params,
			bigquery.QueryParameter{Name: prefix + "id", Value: doc.ID},
			bigquery.QueryParameter{Name: prefix + "fields", Value: string(doc.Fields)},
		)
	}
	script += `
	COMMIT TRANSACTION;`
	if err := s.runDML(ctx, script, params); err != nil {
		return fmt.Errorf("PutDocuments: %w", err)
	}
	return nil
}
