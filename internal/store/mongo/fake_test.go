package mongo

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeCollection keeps documents in memory and answers through the
// driver's own SingleResult and Cursor constructors, so decoding runs
// through real bson.
type fakeCollection struct {
	mu   sync.Mutex
	docs map[string]document

	failNext error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: map[string]document{}}
}

func (f *fakeCollection) takeErr() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func filterValue(filter any, key string) string {
	m, ok := filter.(bson.M)
	if !ok {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func (f *fakeCollection) FindOne(ctx context.Context, filter any, _ ...*options.FindOneOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}
	doc, ok := f.docs[filterValue(filter, "_id")]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (f *fakeCollection) Find(ctx context.Context, filter any, _ ...*options.FindOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	owner := filterValue(filter, "owner_id")
	var matched []document
	for _, d := range f.docs {
		if d.OwnerID == owner {
			matched = append(matched, d)
		}
	}
	slices.SortFunc(matched, func(a, b document) int { return strings.Compare(a.ID, b.ID) })

	docs := make([]any, 0, len(matched))
	for _, d := range matched {
		docs = append(docs, d)
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (f *fakeCollection) ReplaceOne(ctx context.Context, filter any, replacement any, _ ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	doc, ok := replacement.(document)
	if !ok {
		return nil, errors.New("unexpected replacement type")
	}
	doc.Body = slices.Clone(doc.Body)
	f.docs[filterValue(filter, "_id")] = doc
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func (f *fakeCollection) DeleteOne(ctx context.Context, filter any, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	id := filterValue(filter, "_id")
	if _, ok := f.docs[id]; !ok {
		return &mongo.DeleteResult{}, nil
	}
	delete(f.docs, id)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}
