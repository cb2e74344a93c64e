package services

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/homestack/backend/internal/models"
)

// MongoItemStore implements ItemStore on a MongoDB collection.
type MongoItemStore struct {
	client *mongo.Client
	db     *mongo.Database
	coll   *mongo.Collection
}

type mongoItemDoc struct {
	ID               string      `bson:"_id"`
	Name             string      `bson:"name"`
	Quantity         int         `bson:"quantity"`
	DateAdded        time.Time   `bson:"date_added"`
	DateDeleted      *time.Time  `bson:"date_deleted,omitempty"`
	DateDeletedArray []time.Time `bson:"date_deleted_array"`
	ImageURL         string      `bson:"image_url,omitempty"`
	Address          string      `bson:"address"`
}

func NewMongoItemStore(ctx context.Context, mongoURI, dbName string) (*MongoItemStore, error) {
	// Atlas occasionally fails TLS negotiation in some environments unless we force TLS 1.2.
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	coll := db.Collection("items")

	store := &MongoItemStore{
		client: client,
		db:     db,
		coll:   coll,
	}

	// Best-effort indexes.
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "address", Value: 1}}},
		{Keys: bson.D{{Key: "date_added", Value: -1}}},
	})

	log.Printf("MongoDB connected: db=%s", dbName)
	return store, nil
}

func (s *MongoItemStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func itemDocToModel(d mongoItemDoc) *models.Item {
	deletions := d.DateDeletedArray
	if deletions == nil {
		deletions = []time.Time{}
	}
	return &models.Item{
		ID:               d.ID,
		Name:             d.Name,
		Quantity:         d.Quantity,
		DateAdded:        d.DateAdded,
		DateDeleted:      d.DateDeleted,
		DateDeletedArray: deletions,
		ImageURL:         d.ImageURL,
		Address:          d.Address,
	}
}

func itemModelToDoc(m *models.Item) mongoItemDoc {
	deletions := m.DateDeletedArray
	if deletions == nil {
		deletions = []time.Time{}
	}
	return mongoItemDoc{
		ID:               m.ID,
		Name:             m.Name,
		Quantity:         m.Quantity,
		DateAdded:        m.DateAdded,
		DateDeleted:      m.DateDeleted,
		DateDeletedArray: deletions,
		ImageURL:         m.ImageURL,
		Address:          m.Address,
	}
}

func (s *MongoItemStore) Insert(item *models.Item) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := itemModelToDoc(item)
	doc.ID = uuid.New().String()

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return itemDocToModel(doc), nil
}

// InsertBatch stores all items in one InsertMany call. The write is ordered
// and ids are assigned up front, so either every document lands or the call
// errors with nothing usable inserted.
func (s *MongoItemStore) InsertBatch(items []models.Item) ([]models.Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs := make([]interface{}, 0, len(items))
	stored := make([]models.Item, 0, len(items))
	for i := range items {
		doc := itemModelToDoc(&items[i])
		doc.ID = uuid.New().String()
		docs = append(docs, doc)
		stored = append(stored, *itemDocToModel(doc))
	}

	if len(docs) == 0 {
		return stored, nil
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *MongoItemStore) FindByOwner(address string) ([]models.Item, error) {
	return s.find(bson.M{"address": address})
}

func (s *MongoItemStore) FindAll() ([]models.Item, error) {
	return s.find(bson.M{})
}

func (s *MongoItemStore) find(filter bson.M) ([]models.Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	items := make([]models.Item, 0)
	for cur.Next(ctx) {
		var d mongoItemDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		items = append(items, *itemDocToModel(d))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MongoItemStore) FindOneByIDAndOwner(id, address string) (*models.Item, error) {
	return s.findOne(bson.M{"_id": id, "address": address})
}

func (s *MongoItemStore) FindByID(id string) (*models.Item, error) {
	return s.findOne(bson.M{"_id": id})
}

func (s *MongoItemStore) findOne(filter bson.M) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var d mongoItemDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return itemDocToModel(d), nil
}

// Save replaces the stored document by id.
func (s *MongoItemStore) Save(item *models.Item) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := itemModelToDoc(item)
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": item.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *MongoItemStore) DeleteByID(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
