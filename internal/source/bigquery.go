package source

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/rotisserie/eris"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQuery runs report queries as BigQuery jobs.
type BigQuery struct {
	client *bigquery.Client
}

// NewBigQuery creates a client billed to project.
func NewBigQuery(ctx context.Context, project string, opts ...option.ClientOption) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: create client")
	}
	return &BigQuery{client: client}, nil
}

func (b *BigQuery) Dialect() Dialect { return BigQueryDialect }

func (b *BigQuery) Query(ctx context.Context, sql string) (*Result, error) {
	it, err := b.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: query")
	}

	res := &Result{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "bigquery: read row")
		}
		vals := make([]any, len(row))
		for i, v := range row {
			vals[i] = v
		}
		res.Rows = append(res.Rows, vals)
	}
	for _, f := range it.Schema {
		res.Columns = append(res.Columns, f.Name)
	}
	return res, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}
