// Package bigquery implements the remote ledger store on BigQuery tables.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	transactionsTable = "transactions"
	accountsTable     = "bank_accounts"
	categoriesTable   = "categories"
	rulesTable        = "category_rules"
	documentsTable    = "documents"
)

// Store talks to one project/dataset pair. It satisfies the remote store
// contract used by the sync engine.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// New opens a BigQuery client for the given project and dataset.
func New(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("New: bigquery client: %w", err)
	}
	return NewWithClient(client, projectID, datasetID), nil
}

// NewWithClient wraps an existing client; the caller keeps ownership of it.
func NewWithClient(client *bigquery.Client, projectID, datasetID string) *Store {
	return &Store{client: client, projectID: projectID, datasetID: datasetID}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) table(name string) string {
	return "`" + s.projectID + "." + s.datasetID + "." + name + "`"
}

// runDML runs a statement as a job and waits for it, surfacing job errors.
func (s *Store) runDML(ctx context.Context, stmt string, params []bigquery.QueryParameter) error {
	q := s.client.Query(stmt)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
