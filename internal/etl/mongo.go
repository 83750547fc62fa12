package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BartekS5/cinesync/pkg/logger"
	"github.com/BartekS5/cinesync/pkg/models"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LoadResult summarizes a successful bulk upsert.
type LoadResult struct {
	Matched  int64
	Modified int64
	Upserted int64
}

// MongoLoader writes documents into one collection, replacing any
// previous version of a document with the same id.
type MongoLoader struct {
	DB           *mongo.Database
	Collection   string
	WriteTimeout time.Duration
}

func NewMongoLoader(db *mongo.Database, collection string) *MongoLoader {
	return &MongoLoader{
		DB:           db,
		Collection:   collection,
		WriteTimeout: 30 * time.Second,
	}
}

// EnsureSchema creates the collection with the definition's validator and
// indexes when it does not exist. An existing collection is left as is.
func (m *MongoLoader) EnsureSchema(ctx context.Context, def *models.SchemaDefinition) error {
	names, err := m.DB.ListCollectionNames(ctx, bson.D{{Key: "name", Value: m.Collection}})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	if lo.Contains(names, m.Collection) {
		logger.Infof("Collection %s already exists, keeping its schema", m.Collection)
		return nil
	}

	opts := options.CreateCollection()
	if len(def.Validator) > 0 {
		var validator bson.D
		if err := bson.UnmarshalExtJSON(def.Validator, false, &validator); err != nil {
			return &SchemaRejectedError{Collection: m.Collection, Err: fmt.Errorf("invalid validator: %w", err)}
		}
		opts.SetValidator(validator)
	}

	if err := m.DB.CreateCollection(ctx, m.Collection, opts); err != nil {
		if SinkRetryable(err) {
			return fmt.Errorf("failed to create collection %s: %w", m.Collection, err)
		}
		return &SchemaRejectedError{Collection: m.Collection, Err: err}
	}

	indexes, err := indexModels(def.Indexes)
	if err != nil {
		return &SchemaRejectedError{Collection: m.Collection, Err: err}
	}
	if len(indexes) > 0 {
		if _, err := m.DB.Collection(m.Collection).Indexes().CreateMany(ctx, indexes); err != nil {
			if SinkRetryable(err) {
				return fmt.Errorf("failed to create indexes on %s: %w", m.Collection, err)
			}
			return &SchemaRejectedError{Collection: m.Collection, Err: err}
		}
	}

	logger.Infof("Created collection %s with %d indexes", m.Collection, len(indexes))
	return nil
}

func indexModels(defs []models.IndexDefinition) ([]mongo.IndexModel, error) {
	out := make([]mongo.IndexModel, 0, len(defs))
	for _, def := range defs {
		if len(def.Keys) == 0 {
			return nil, fmt.Errorf("index %q has no keys", def.Name)
		}
		keys := bson.D{}
		for _, k := range def.Keys {
			switch k.Kind {
			case "", "asc":
				keys = append(keys, bson.E{Key: k.Field, Value: 1})
			case "desc":
				keys = append(keys, bson.E{Key: k.Field, Value: -1})
			case "text":
				keys = append(keys, bson.E{Key: k.Field, Value: "text"})
			default:
				return nil, fmt.Errorf("index %q: unknown key kind %q", def.Name, k.Kind)
			}
		}

		opts := options.Index()
		if def.Name != "" {
			opts.SetName(def.Name)
		}
		if len(def.Weights) > 0 {
			weights := bson.D{}
			for _, k := range def.Keys {
				if w, ok := def.Weights[k.Field]; ok {
					weights = append(weights, bson.E{Key: k.Field, Value: w})
				}
			}
			opts.SetWeights(weights)
		}
		if def.DefaultLanguage != "" {
			opts.SetDefaultLanguage(def.DefaultLanguage)
		}
		if def.Unique {
			opts.SetUnique(true)
		}
		out = append(out, mongo.IndexModel{Keys: keys, Options: opts})
	}
	return out, nil
}

// Load upserts every document keyed by its id with full replacement.
// The write is unordered, so one bad document does not stop the others,
// but any failure is returned as a *PartialWriteError.
func (m *MongoLoader) Load(ctx context.Context, docs []models.Document) (LoadResult, error) {
	if len(docs) == 0 {
		return LoadResult{}, nil
	}

	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		id := doc.DocumentID()
		if id == "" {
			return LoadResult{}, fmt.Errorf("document without id for collection %s", m.Collection)
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	if m.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.WriteTimeout)
		defer cancel()
	}

	coll := m.DB.Collection(m.Collection)
	res, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
			failed := make([]FailedDocument, 0, len(bwe.WriteErrors))
			for _, we := range bwe.WriteErrors {
				id := ""
				if we.Index >= 0 && we.Index < len(docs) {
					id = docs[we.Index].DocumentID()
				}
				failed = append(failed, FailedDocument{ID: id, Code: we.Code, Message: we.Message})
			}
			return resultOf(res), &PartialWriteError{Collection: m.Collection, Total: len(docs), Failed: failed}
		}
		return LoadResult{}, fmt.Errorf("bulk write to %s: %w", m.Collection, err)
	}

	result := resultOf(res)
	if acked := result.Matched + result.Upserted; acked < int64(len(docs)) {
		return result, &PartialWriteError{
			Collection:     m.Collection,
			Total:          len(docs),
			Unacknowledged: len(docs) - int(acked),
		}
	}
	return result, nil
}

func resultOf(res *mongo.BulkWriteResult) LoadResult {
	if res == nil {
		return LoadResult{}
	}
	return LoadResult{Matched: res.MatchedCount, Modified: res.ModifiedCount, Upserted: res.UpsertedCount}
}
