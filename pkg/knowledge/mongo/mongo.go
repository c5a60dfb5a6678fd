package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/barekit/dossier/pkg/knowledge"
	"github.com/barekit/dossier/pkg/knowledge/consts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store implements knowledge.Store on a MongoDB collection. Ids are
// ObjectIDs generated client-side, so _id order is insertion order.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type pairDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Question    string             `bson:"question"`
	Answer      string             `bson:"answer"`
	SourceFile  string             `bson:"source_file"`
	Category    string             `bson:"category"`
	Fingerprint []float32          `bson:"fingerprint,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (d pairDoc) record() knowledge.Record {
	return knowledge.Record{
		ID: d.ID.Hex(),
		Pair: knowledge.Pair{
			Question:   d.Question,
			Answer:     d.Answer,
			SourceFile: d.SourceFile,
			Category:   d.Category,
		},
		Fingerprint: d.Fingerprint,
		CreatedAt:   d.CreatedAt,
	}
}

// New creates a Store and ensures the source_file index exists.
func New(ctx context.Context, client *mongo.Client, dbName, collectionName string) (*Store, error) {
	coll := client.Database(dbName).Collection(collectionName)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: consts.ColSourceFile, Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &Store{client: client, collection: coll}, nil
}

// Add implements knowledge.Store.
func (s *Store) Add(ctx context.Context, pair knowledge.Pair, fingerprint []float32) (*knowledge.Record, error) {
	recs, err := s.AddBatch(ctx, []knowledge.Pair{pair}, [][]float32{fingerprint})
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// AddBatch inserts the pairs with an ordered InsertMany. It is not atomic:
// a failure part way leaves the earlier documents in place.
func (s *Store) AddBatch(ctx context.Context, pairs []knowledge.Pair, fingerprints [][]float32) ([]knowledge.Record, error) {
	if err := knowledge.ValidateBatch(pairs, fingerprints); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, len(pairs))
	out := make([]knowledge.Record, len(pairs))
	for i, p := range pairs {
		doc := pairDoc{
			ID:          primitive.NewObjectID(),
			Question:    p.Question,
			Answer:      p.Answer,
			SourceFile:  p.SourceFile,
			Category:    p.Category,
			Fingerprint: knowledge.CloneFingerprint(knowledge.FingerprintAt(fingerprints, i)),
			CreatedAt:   now,
		}
		docs[i] = doc
		out[i] = doc.record()
		out[i].Fingerprint = knowledge.CloneFingerprint(doc.Fingerprint)
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to insert pairs: %w", err)
	}
	return out, nil
}

// SetFingerprint implements knowledge.Store.
func (s *Store) SetFingerprint(ctx context.Context, id string, fingerprint []float32) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return knowledge.ErrNotFound
	}

	update := bson.M{"$set": bson.M{consts.ColFingerprint: fingerprint}}
	if len(fingerprint) == 0 {
		update = bson.M{"$unset": bson.M{consts.ColFingerprint: ""}}
	}

	res, err := s.collection.UpdateByID(ctx, oid, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return knowledge.ErrNotFound
	}
	return nil
}

// All implements knowledge.Store.
func (s *Store) All(ctx context.Context) ([]knowledge.Record, error) {
	return s.find(ctx, bson.M{})
}

// BySource implements knowledge.Store.
func (s *Store) BySource(ctx context.Context, source string) ([]knowledge.Record, error) {
	return s.find(ctx, bson.M{consts.ColSourceFile: source})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]knowledge.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []knowledge.Record{}
	for cursor.Next(ctx) {
		var doc pairDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, doc.record())
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Sources implements knowledge.Store.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	values, err := s.collection.Distinct(ctx, consts.ColSourceFile, bson.M{consts.ColSourceFile: bson.M{"$ne": ""}})
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok {
			sources = append(sources, str)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// Stats implements knowledge.Store.
func (s *Store) Stats(ctx context.Context) (knowledge.Stats, error) {
	var stats knowledge.Stats
	var err error

	if stats.TotalPairs, err = s.collection.CountDocuments(ctx, bson.M{}); err != nil {
		return stats, err
	}
	sources, err := s.Sources(ctx)
	if err != nil {
		return stats, err
	}
	stats.SourceFiles = int64(len(sources))

	stats.WithFingerprints, err = s.collection.CountDocuments(ctx, bson.M{consts.ColFingerprint: bson.M{"$exists": true}})
	return stats, err
}

// DeleteBySource implements knowledge.Store.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{consts.ColSourceFile: source})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Clear implements knowledge.Store.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{})
	return err
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
