package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	clerrors "github.com/suilotto/zkgateway/client/errors"
)

const (
	databaseName          = "zkgateway"
	saltsCollection       = "identitySalts"
	addressesCollection   = "addressAssociations"
	defaultMongoOpTimeout = 5 * time.Second
)

// MongoStore is the production IdentityStore backed by MongoDB. Salt creation
// uses an atomic conditional insert ($setOnInsert with upsert), so two
// concurrent first-time authentications for the same identity triple converge
// on a single stored salt.
type MongoStore struct {
	client *mongo.Client
}

// ConnectMongo establishes a connection using MONGO_URL from the environment.
func ConnectMongo(ctx context.Context) (*MongoStore, error) {
	mongoURL := os.Getenv("MONGO_URL")
	if mongoURL == "" {
		return nil, fmt.Errorf("MONGO_URL is not set")
	}
	return NewMongoStore(ctx, mongoURL)
}

// NewMongoStore connects to the given MongoDB endpoint and prepares the
// unique index salt conditional inserts rely on.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	store := &MongoStore{client: client}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoOpTimeout)
	defer cancel()

	unique := options.Index().SetUnique(true)
	_, err := s.salts().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issuer", Value: 1}, {Key: "subject", Value: 1}, {Key: "audience", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create salt index: %w", err)
	}

	_, err = s.addresses().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create address index: %w", err)
	}
	return nil
}

func (s *MongoStore) salts() *mongo.Collection {
	return s.client.Database(databaseName).Collection(saltsCollection)
}

func (s *MongoStore) addresses() *mongo.Collection {
	return s.client.Database(databaseName).Collection(addressesCollection)
}

// GetOrCreateSalt implements IdentityStore with a single atomic upsert: the
// candidate is written only when no record exists, and the stored record is
// returned either way.
func (s *MongoStore) GetOrCreateSalt(ctx context.Context, candidate SaltRecord) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoOpTimeout)
	defer cancel()

	filter := bson.M{
		"issuer":   candidate.Issuer,
		"subject":  candidate.Subject,
		"audience": candidate.Audience,
	}
	update := bson.M{"$setOnInsert": candidate}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored SaltRecord
	if err := s.salts().FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return "", false, fmt.Errorf("salt upsert failed: %w", err)
	}
	return stored.Salt, stored.Salt == candidate.Salt && stored.CreatedAt.Equal(candidate.CreatedAt), nil
}

// AssociateAddress implements IdentityStore.
func (s *MongoStore) AssociateAddress(ctx context.Context, record AddressRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoOpTimeout)
	defer cancel()

	filter := bson.M{"user_id": record.UserID}
	update := bson.M{"$setOnInsert": record}
	opts := options.Update().SetUpsert(true)
	if _, err := s.addresses().UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("address association failed: %w", err)
	}
	return nil
}

// AddressForUser implements IdentityStore.
func (s *MongoStore) AddressForUser(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoOpTimeout)
	defer cancel()

	var record AddressRecord
	err := s.addresses().FindOne(ctx, bson.M{"user_id": userID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", clerrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("address lookup failed: %w", err)
	}
	return record.Address, nil
}

// Disconnect closes the underlying client.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
