package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const guestCollection = "guests"

// guestRetention is how long an untouched guest document is kept.
const guestRetention = 90 * 24 * time.Hour

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type MongoLocalStore struct {
	collection *mongo.Collection
}

func NewMongoLocalStore(db *mongo.Database) *MongoLocalStore {
	return &MongoLocalStore{collection: db.Collection(guestCollection)}
}

func (m *MongoLocalStore) load(ctx context.Context, guestID string) (*guestDocument, error) {
	var doc guestDocument
	err := m.collection.FindOne(ctx, bson.M{"guest_id": guestID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &guestDocument{GuestID: guestID, SchemaVersion: SchemaVersion}, nil
		}
		return nil, fmt.Errorf("failed to get guest document: %w", err)
	}
	if err := doc.upgrade(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (m *MongoLocalStore) LoadCart(ctx context.Context, guestID string) ([]domain.LocalCartEntry, error) {
	doc, err := m.load(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if doc.Cart == nil {
		return []domain.LocalCartEntry{}, nil
	}
	return doc.Cart, nil
}

func (m *MongoLocalStore) SaveCart(ctx context.Context, guestID string, entries []domain.LocalCartEntry) error {
	return m.upsert(ctx, guestID, bson.M{"cart": NormalizeEntries(entries)})
}

func (m *MongoLocalStore) AddEntry(ctx context.Context, guestID string, variantID int64, quantity, limit int) error {
	// A lost race on the upsert means another writer created the entry, so
	// the second pass increments it.
	for attempt := 0; attempt < 2; attempt++ {
		res, err := m.collection.UpdateOne(ctx,
			bson.M{"guest_id": guestID, "cart.variant_id": variantID},
			bson.M{"$inc": bson.M{"cart.$.quantity": quantity}, "$set": stamp()},
		)
		if err != nil {
			return fmt.Errorf("failed to increment cart entry: %w", err)
		}
		if res.MatchedCount > 0 {
			return m.capEntry(ctx, guestID, variantID, limit)
		}

		entry := domain.LocalCartEntry{VariantID: variantID, Quantity: min(quantity, limit)}
		_, err = m.collection.UpdateOne(ctx,
			bson.M{"guest_id": guestID, "cart.variant_id": bson.M{"$ne": variantID}},
			bson.M{"$push": bson.M{"cart": entry}, "$set": stamp()},
			options.Update().SetUpsert(true),
		)
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to push cart entry: %w", err)
		}
	}
	return fmt.Errorf("failed to add cart entry for variant %d: concurrent writers", variantID)
}

func (m *MongoLocalStore) capEntry(ctx context.Context, guestID string, variantID int64, limit int) error {
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"e.variant_id": variantID}},
	})
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"guest_id": guestID},
		bson.M{"$min": bson.M{"cart.$[e].quantity": limit}},
		opts,
	)
	if err != nil {
		return fmt.Errorf("failed to cap cart entry: %w", err)
	}
	return nil
}

func (m *MongoLocalStore) StepEntry(ctx context.Context, guestID string, variantID int64, delta, limit int) error {
	limit = max(limit, 1)
	bound, inc := bson.M{"$lt": limit}, 1
	if delta < 0 {
		bound, inc = bson.M{"$gt": 1}, -1
	}
	filter := bson.M{
		"guest_id": guestID,
		"cart":     bson.M{"$elemMatch": bson.M{"variant_id": variantID, "quantity": bound}},
	}
	res, err := m.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"cart.$.quantity": inc}, "$set": stamp()})
	if err != nil {
		return fmt.Errorf("failed to step cart entry: %w", err)
	}
	if res.MatchedCount == 0 {
		// Nothing moved: either the entry sits at a bound or it is gone.
		n, err := m.collection.CountDocuments(ctx, bson.M{"guest_id": guestID, "cart.variant_id": variantID})
		if err != nil {
			return fmt.Errorf("failed to find cart entry: %w", err)
		}
		if n == 0 {
			return ErrEntryNotFound
		}
	}
	// Inventory may have dropped below the stored quantity.
	return m.capEntry(ctx, guestID, variantID, limit)
}

func (m *MongoLocalStore) RemoveEntries(ctx context.Context, guestID string, variantIDs ...int64) error {
	if len(variantIDs) == 0 {
		return nil
	}
	update := bson.M{
		"$pull": bson.M{"cart": bson.M{"variant_id": bson.M{"$in": variantIDs}}},
		"$set":  stamp(),
	}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"guest_id": guestID}, update); err != nil {
		return fmt.Errorf("failed to remove cart entries: %w", err)
	}
	return nil
}

func (m *MongoLocalStore) LoadGuestAddress(ctx context.Context, guestID string) (*domain.Address, error) {
	doc, err := m.load(ctx, guestID)
	if err != nil {
		return nil, err
	}
	return doc.Address, nil
}

func (m *MongoLocalStore) SaveGuestAddress(ctx context.Context, guestID string, addr domain.Address) error {
	return m.upsert(ctx, guestID, bson.M{"address": addr})
}

func stamp() bson.M {
	return bson.M{"schema_version": SchemaVersion, "updated_at": time.Now()}
}

func (m *MongoLocalStore) upsert(ctx context.Context, guestID string, fields bson.M) error {
	for k, v := range stamp() {
		fields[k] = v
	}

	filter := bson.M{"guest_id": guestID}
	update := bson.M{"$set": fields}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert guest document: %w", err)
	}
	return nil
}

func (m *MongoLocalStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "guest_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(guestRetention.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
