package mediastore

import (
	"context"
	"fmt"

	"skypress/domain/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore holds uploaded media bytes until they are transmitted to the
// remote platform, then released.
type MongoStore struct {
	coll *mongo.Collection
}

type blobDoc struct {
	Key  string      `bson:"_id"`
	Data bson.Binary `bson:"data"`
	Mime string      `bson:"mime,omitempty"`
}

// NewMongoDb connects to MongoDB and returns the client.
func NewMongoDb(host, port, user, password, name string) (*mongo.Client, error) {
	uri := fmt.Sprintf("mongodb://%s:%s", host, port)
	if user != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%s", user, password, host, port)
	}
	if name != "" {
		uri += "/" + name
	}
	return mongo.Connect(options.Client().ApplyURI(uri))
}

// NewMongoStore creates a media store over the given database and collection.
func NewMongoStore(client *mongo.Client, database, collection string) repository.IMediaStore {
	return &MongoStore{coll: client.Database(database).Collection(collection)}
}

func (s *MongoStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	var doc blobDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("media %s not found", key)
		}
		return nil, err
	}
	return doc.Data.Data, nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
