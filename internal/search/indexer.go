package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/wavecrate/presetstore/internal/models"
)

// Indexer mirrors catalog items into the search index. The relational tables
// stay authoritative; index writes are best-effort projections.
type Indexer interface {
	IndexItem(ctx context.Context, kind models.ItemKind, id string, doc ItemDoc) error
	DeleteItem(ctx context.Context, kind models.ItemKind, id string) error
}

type ItemDoc struct {
	Kind        models.ItemKind `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	OwnerID     string          `json:"owner_id"`
}

type ESIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewESIndexer(url, user, password, index string) (*ESIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}

	return &ESIndexer{client: client, index: index}, nil
}

func docID(kind models.ItemKind, id string) string {
	return string(kind) + ":" + id
}

func (e *ESIndexer) IndexItem(ctx context.Context, kind models.ItemKind, id string, doc ItemDoc) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: docID(kind, id),
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("index %s: %w", docID(kind, id), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s: %s", docID(kind, id), res.Status())
	}
	return nil
}

func (e *ESIndexer) DeleteItem(ctx context.Context, kind models.ItemKind, id string) error {
	req := esapi.DeleteRequest{
		Index:      e.index,
		DocumentID: docID(kind, id),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("delete %s: %w", docID(kind, id), err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete %s: %s", docID(kind, id), res.Status())
	}
	return nil
}

// Noop is used when no search cluster is configured (and in tests).
type Noop struct{}

func (Noop) IndexItem(ctx context.Context, kind models.ItemKind, id string, doc ItemDoc) error {
	return nil
}
func (Noop) DeleteItem(ctx context.Context, kind models.ItemKind, id string) error { return nil }
