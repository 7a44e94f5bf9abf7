package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"recordbook/pkg/domain"
)

const (
	fieldName  = "u_name"
	fieldAge   = "u_age"
	fieldCity  = "u_city"
	fieldHobby = "u_hobby"
)

// MongoStore implements RecordStore on a single MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore creates the client. The driver connects lazily; use Ping to verify.
func NewMongoStore(uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("mongo connection string required")
	}
	if database == "" || collection == "" {
		return nil, errors.New("mongo database and collection required")
	}
	clientOpts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		clientOpts.SetTimeout(timeout)
	}
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

// Ping checks the primary is reachable.
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Insert adds one document; the server assigns _id.
func (m *MongoStore) Insert(ctx context.Context, fields domain.Fields) (string, error) {
	res, err := m.collection.InsertOne(ctx, fieldsDocument(fields))
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

// FindOne returns an arbitrary document, or false when the collection is empty.
func (m *MongoStore) FindOne(ctx context.Context) (domain.Record, bool, error) {
	var doc bson.M
	err := m.collection.FindOne(ctx, bson.D{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Record{}, false, nil
	}
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("find record: %w", err)
	}
	return recordFromDocument(doc), true, nil
}

// FindAll returns every document in natural order.
func (m *MongoStore) FindAll(ctx context.Context) ([]domain.Record, error) {
	return m.find(ctx, bson.D{})
}

// FindByCity returns every document whose u_city equals city.
func (m *MongoStore) FindByCity(ctx context.Context, city string) ([]domain.Record, error) {
	return m.find(ctx, bson.D{{Key: fieldCity, Value: city}})
}

func (m *MongoStore) find(ctx context.Context, filter bson.D) ([]domain.Record, error) {
	cursor, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	out := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, recordFromDocument(doc))
	}
	return out, nil
}

// DeleteByID removes the document with the given id and reports how many were deleted.
func (m *MongoStore) DeleteByID(ctx context.Context, id string) (int64, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return 0, ErrInvalidID
	}
	res, err := m.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return 0, fmt.Errorf("delete record: %w", err)
	}
	return res.DeletedCount, nil
}

// ReplaceFields sets all four content fields on the matching document.
func (m *MongoStore) ReplaceFields(ctx context.Context, id string, fields domain.Fields) (UpdateResult, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return UpdateResult{}, ErrInvalidID
	}
	res, err := m.collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: fieldsDocument(fields)}},
	)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update record: %w", err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func fieldsDocument(f domain.Fields) bson.D {
	return bson.D{
		{Key: fieldName, Value: f.Name},
		{Key: fieldAge, Value: f.Age},
		{Key: fieldCity, Value: f.City},
		{Key: fieldHobby, Value: f.Hobby},
	}
}

// recordFromDocument tolerates documents written by other clients, where
// fields may hold numbers or be missing entirely.
func recordFromDocument(doc bson.M) domain.Record {
	rec := domain.Record{}
	switch id := doc["_id"].(type) {
	case bson.ObjectID:
		rec.ID = id.Hex()
	case nil:
	default:
		rec.ID = fmt.Sprint(id)
	}
	rec.Name = documentText(doc[fieldName])
	rec.Age = documentText(doc[fieldAge])
	rec.City = documentText(doc[fieldCity])
	rec.Hobby = documentText(doc[fieldHobby])
	return rec
}

func documentText(v any) *string {
	if oid, ok := v.(bson.ObjectID); ok {
		return domain.Text(oid.Hex())
	}
	text, err := domain.FieldText(v)
	if err != nil {
		return domain.Text(fmt.Sprint(v))
	}
	return text
}
