package storage

import (
	"context"
	"errors"
	"time"

	"github.com/codesnap/codesnap/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const pasteCounterKey = "pastes"

// MongoStore implements PasteStore using MongoDB
type MongoStore struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
	counters   *mongo.Collection
	now        Clock
}

// NewMongoStore creates a new MongoDB storage backend
func NewMongoStore(url, dbName string, opts ...Option) (*MongoStore, error) {
	o := buildOptions(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	database := client.Database(dbName)

	store := &MongoStore{
		client:     client,
		database:   database,
		collection: database.Collection("pastes"),
		counters:   database.Collection("counters"),
		now:        o.now,
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return store, nil
}

// Migrate creates the indexes the store relies on
func (m *MongoStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// TTL index lets MongoDB reap expired pastes in the background
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}

	pasteIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "paste_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	// Index on created_at for recent listings
	createdAtIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}

	relatedIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "language", Value: 1}, {Key: "views", Value: -1}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		ttlIndex,
		pasteIDIndex,
		createdAtIndex,
		relatedIndex,
	})

	return err
}

func counterUpdate() (filter, update bson.M) {
	return bson.M{"_id": pasteCounterKey}, bson.M{"$inc": bson.M{"seq": 1}}
}

// nextID allocates the next internal id from the counters collection
func (m *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	filter, update := counterUpdate()
	err := m.counters.FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// Create saves a paste to MongoDB
func (m *MongoStore) Create(ctx context.Context, paste *models.Paste) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	id, err := m.nextID(ctx)
	if err != nil {
		return nil, err
	}

	row := *paste
	row.ID = id
	row.ApplyDefaults()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = m.now().UTC()
	}

	if _, err := m.collection.InsertOne(ctx, &row); err != nil {
		return nil, mapInsertError(err)
	}
	return &row, nil
}

// mapInsertError turns a unique index violation on paste_id into ErrDuplicateID
func mapInsertError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	return err
}

// GetByPublicID retrieves a paste by its public id
func (m *MongoStore) GetByPublicID(ctx context.Context, pasteID string) (*models.Paste, error) {
	return m.findOne(ctx, bson.M{"paste_id": pasteID})
}

// GetByID retrieves a paste by its internal id
func (m *MongoStore) GetByID(ctx context.Context, id int64) (*models.Paste, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var paste models.Paste
	err := m.collection.FindOne(ctx, filter).Decode(&paste)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// The TTL monitor runs about once a minute, so expiry is checked here too
	if paste.IsExpiredAt(m.now()) {
		_, err := m.collection.DeleteOne(ctx, bson.M{"_id": paste.ID})
		return nil, expiredGone(paste.PasteID, err)
	}

	return &paste, nil
}

// IncrementViews increments the view counter for a paste
func (m *MongoStore) IncrementViews(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := m.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"views": 1}},
	)
	return err
}

// ListRecent returns live pastes newest first
func (m *MongoStore) ListRecent(ctx context.Context, limit int) ([]models.Paste, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	return m.find(ctx, m.liveFilter(bson.M{}), findOpts)
}

// ListRelated returns live pastes sharing a language, most viewed first
func (m *MongoStore) ListRelated(ctx context.Context, language string, excludeID int64, limit int) ([]models.Paste, error) {
	filter := relatedFilter(language, excludeID)
	findOpts := options.Find().SetSort(bson.D{{Key: "views", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	return m.find(ctx, m.liveFilter(filter), findOpts)
}

func (m *MongoStore) find(ctx context.Context, filter bson.M, findOpts *options.FindOptions) ([]models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := m.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	pastes := []models.Paste{}
	if err := cursor.All(ctx, &pastes); err != nil {
		return nil, err
	}
	return pastes, nil
}

func relatedFilter(language string, excludeID int64) bson.M {
	filter := bson.M{"language": language}
	if excludeID != 0 {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return filter
}

func (m *MongoStore) liveFilter(filter bson.M) bson.M {
	filter["$or"] = bson.A{
		bson.M{"expires_at": nil},
		bson.M{"expires_at": bson.M{"$gt": m.now().UTC()}},
	}
	return filter
}

// Delete removes a paste from MongoDB
func (m *MongoStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// UpdateContent replaces the content of a paste
func (m *MongoStore) UpdateContent(ctx context.Context, id int64, content string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := m.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// DeleteExpired removes pastes whose expiry is at or before the given instant
func (m *MongoStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := m.collection.DeleteMany(ctx, expiredFilter(before))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func expiredFilter(before time.Time) bson.M {
	return bson.M{"expires_at": bson.M{"$ne": nil, "$lte": before.UTC()}}
}

// Ping checks the MongoDB connection
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return m.client.Disconnect(ctx)
}
