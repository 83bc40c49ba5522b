// Package mongo is a remote vault store on MongoDB, one collection per
// vault collection. Documents keep the record body as opaque bytes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/common"
	"github.com/dmitrijs2005/keydozer/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collection is the subset of *mongo.Collection the store uses.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type document struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Body      []byte    `bson:"body"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Store struct {
	colls  map[store.Collection]collection
	client *mongo.Client
}

func newStore(colls map[store.Collection]collection) *Store {
	return &Store{colls: colls}
}

// Connect dials uri, verifies the connection and makes sure every
// collection has an owner index.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := cli.Database(dbName)
	colls := make(map[store.Collection]collection, len(store.Collections))
	for _, c := range store.Collections {
		mc := db.Collection(string(c))
		_, err := mc.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "_id", Value: 1}},
		})
		if err != nil {
			_ = cli.Disconnect(ctx)
			return nil, fmt.Errorf("index %s: %w", c, err)
		}
		colls[c] = mc
	}

	s := newStore(colls)
	s.client = cli
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) coll(c store.Collection) (collection, error) {
	if err := store.CheckCollection(c); err != nil {
		return nil, err
	}
	mc, ok := s.colls[c]
	if !ok {
		return nil, fmt.Errorf("mongo: collection %s not configured", c)
	}
	return mc, nil
}

func (s *Store) GetByID(ctx context.Context, c store.Collection, id string) (store.Record, error) {
	mc, err := s.coll(c)
	if err != nil {
		return store.Record{}, err
	}

	var doc document
	if err := mc.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Record{}, common.ErrorNotFound
		}
		return store.Record{}, fmt.Errorf("mongo find %s/%s: %w", c, id, err)
	}
	return toRecord(doc), nil
}

func (s *Store) PutByID(ctx context.Context, c store.Collection, id string, rec store.Record) error {
	mc, err := s.coll(c)
	if err != nil {
		return err
	}

	doc := document{ID: id, OwnerID: rec.OwnerID, Body: rec.Body, UpdatedAt: rec.UpdatedAt.UTC()}
	_, err = mc.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo replace %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, c store.Collection, id string) error {
	mc, err := s.coll(c)
	if err != nil {
		return err
	}
	if _, err := mc.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo delete %s/%s: %w", c, id, err)
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, c store.Collection, ownerID string) ([]store.Record, error) {
	mc, err := s.coll(c)
	if err != nil {
		return nil, err
	}

	cur, err := mc.Find(ctx, bson.M{"owner_id": ownerID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo find %s: %w", c, err)
	}
	defer cur.Close(ctx)

	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode %s: %w", c, err)
	}

	out := make([]store.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, toRecord(d))
	}
	return out, nil
}

func toRecord(d document) store.Record {
	return store.Record{ID: d.ID, OwnerID: d.OwnerID, Body: d.Body, UpdatedAt: d.UpdatedAt}
}
