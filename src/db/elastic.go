package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/olivere/elastic/v7"

	"hbnb/src/logger"
	"hbnb/src/types"
)

// maxResultWindow bounds All; it is applied to every index on creation.
const maxResultWindow = 20000

// indexMapping stores ids as keywords and keeps other strings searchable.
const indexMapping = `{
  "settings": {
    "index": {"max_result_window": 20000}
  },
  "mappings": {
    "dynamic_templates": [
      {"ids": {"match": "*_id", "match_mapping_type": "string", "mapping": {"type": "keyword"}}},
      {"id_lists": {"match": "*_ids", "match_mapping_type": "string", "mapping": {"type": "keyword"}}}
    ],
    "properties": {
      "id": {"type": "keyword"},
      "__class__": {"type": "keyword"},
      "created_at": {"type": "keyword"},
      "updated_at": {"type": "keyword"}
    }
  }
}`

// ElasticEngine keeps one index per class. New and Delete are staged until
// Save sends them as a single bulk request.
type ElasticEngine struct {
	Client *elastic.Client
	prefix string
	lggr   logger.Logger
	stage  staged
}

// OpenElastic connects to url and makes sure every class index exists.
func OpenElastic(ctx context.Context, url, prefix string, lggr logger.Logger, opts ...elastic.ClientOptionFunc) (*ElasticEngine, error) {
	opts = append([]elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false),
	}, opts...)
	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create elastic client: %w", err)
	}
	if prefix == "" {
		prefix = "hbnb"
	}
	e := &ElasticEngine{Client: client, prefix: prefix, lggr: lggr.Named("elastic")}
	for _, kind := range types.Kinds {
		if err := e.createIndexWithMapping(ctx, e.index(kind)); err != nil {
			client.Stop()
			return nil, err
		}
	}
	return e, nil
}

func (e *ElasticEngine) index(kind types.Kind) string {
	return e.prefix + "_" + strings.ToLower(string(kind))
}

func (e *ElasticEngine) createIndexWithMapping(ctx context.Context, index string) error {
	exists, err := e.Client.IndexExists(index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	if exists {
		e.lggr.Debugw("Index already exists", "index", index)
		return nil
	}
	created, err := e.Client.CreateIndex(index).BodyString(indexMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	if !created.Acknowledged {
		e.lggr.Warnw("CreateIndex was not acknowledged", "index", index)
	}
	e.lggr.Infow("Index created", "index", index)
	return nil
}

func (e *ElasticEngine) Get(ctx context.Context, kind types.Kind, id string) (types.Object, error) {
	if obj, ok := e.stage.lookup(kind, id); ok {
		if obj == nil {
			return nil, types.ErrNotFound
		}
		return obj, nil
	}

	res, err := e.Client.Get().Index(e.index(kind)).Id(id).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", types.KeyOf(kind, id), err)
	}
	if !res.Found {
		return nil, types.ErrNotFound
	}
	return types.Decode(kind, res.Source)
}

func (e *ElasticEngine) All(ctx context.Context, kind types.Kind) ([]types.Object, error) {
	res, err := e.Client.Search().
		Index(e.index(kind)).
		Query(elastic.NewMatchAllQuery()).
		Size(maxResultWindow).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	if total := res.TotalHits(); total > maxResultWindow {
		e.lggr.Warnw("Listing truncated", "index", e.index(kind), "total", total, "returned", maxResultWindow)
	}

	var out []types.Object
	if res.Hits != nil {
		for _, hit := range res.Hits.Hits {
			obj, err := types.Decode(kind, hit.Source)
			if err != nil {
				e.lggr.Warnw("Skipping undecodable document", "index", hit.Index, "id", hit.Id, "err", err)
				continue
			}
			out = append(out, obj)
		}
	}
	return e.stage.overlay(kind, out), nil
}

func (e *ElasticEngine) New(ctx context.Context, obj types.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.stage.put(obj)
}

func (e *ElasticEngine) Delete(ctx context.Context, obj types.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.stage.remove(obj)
	return nil
}

// Save flushes every staged write through one bulk request and waits for
// the refresh so later searches observe it. Writes that fail are dropped,
// not retried on the next Save.
func (e *ElasticEngine) Save(ctx context.Context) error {
	changes := e.stage.snapshot()
	if len(changes) == 0 {
		return nil
	}
	defer e.stage.clear(changes)

	bulk := e.Client.Bulk().Refresh("wait_for")
	for _, c := range changes {
		if c.obj == nil {
			bulk.Add(elastic.NewBulkDeleteRequest().Index(e.index(c.kind)).Id(c.id))
			continue
		}
		bulk.Add(elastic.NewBulkIndexRequest().Index(e.index(c.kind)).Id(c.id).Doc(c.obj))
	}

	res, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk save: %w", err)
	}

	failed := 0
	for _, item := range res.Failed() {
		// Deleting a document that is already gone is not a failure.
		if item.Status == 404 {
			continue
		}
		failed++
		reason := ""
		if item.Error != nil {
			reason = item.Error.Reason
		}
		e.lggr.Errorw("Failed to execute bulk operation", "index", item.Index, "id", item.Id, "reason", reason)
	}
	if failed > 0 {
		return fmt.Errorf("bulk save: %d of %d operations failed", failed, len(changes))
	}
	return nil
}

func (e *ElasticEngine) Close() error {
	e.Client.Stop()
	return nil
}

var _ types.Engine = (*ElasticEngine)(nil)
