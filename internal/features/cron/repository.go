package cron_feature

import (
	"context"
	"fmt"

	"coprox/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ListFilter struct {
	Category Category
	Enabled  *bool
}

type CronRepository interface {
	Create(ctx context.Context, cfg *CronConfig) error
	GetByName(ctx context.Context, name string) (*CronConfig, error)
	List(ctx context.Context, filter ListFilter) ([]*CronConfig, error)
	Update(ctx context.Context, cfg *CronConfig) error
	Delete(ctx context.Context, name string) error
	EnsureIndexes(ctx context.Context) error
}

type CronRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCronRepository(db *database.MongodbDB) CronRepository {
	return &CronRepositoryImpl{
		collection: db.DB.Collection("cron_configs"),
	}
}

func (r *CronRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "enabled", Value: 1}, {Key: "priority", Value: -1}}},
	})
	return err
}

func (r *CronRepositoryImpl) Create(ctx context.Context, cfg *CronConfig) error {
	if cfg.ID.IsZero() {
		cfg.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, cfg.ToObject())
	if mongo.IsDuplicateKeyError(err) {
		return DuplicateNameError("Config with name %q already exists", cfg.Name)
	}
	if err != nil {
		return fmt.Errorf("insert cron config %q: %w", cfg.Name, err)
	}
	return nil
}

func (r *CronRepositoryImpl) GetByName(ctx context.Context, name string) (*CronConfig, error) {
	var doc Document
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, NotFoundError("Config %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("find cron config %q: %w", name, err)
	}
	return FromObject(doc), nil
}

func (r *CronRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]*CronConfig, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Enabled != nil {
		query["enabled"] = *filter.Enabled
	}

	opts := options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list cron configs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []Document
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cron configs: %w", err)
	}

	configs := make([]*CronConfig, 0, len(docs))
	for _, d := range docs {
		configs = append(configs, FromObject(d))
	}
	return configs, nil
}

func (r *CronRepositoryImpl) Update(ctx context.Context, cfg *CronConfig) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"name": cfg.Name}, cfg.ToObject())
	if err != nil {
		return fmt.Errorf("replace cron config %q: %w", cfg.Name, err)
	}
	if res.MatchedCount == 0 {
		return NotFoundError("Config %q not found", cfg.Name)
	}
	return nil
}

func (r *CronRepositoryImpl) Delete(ctx context.Context, name string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("delete cron config %q: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return NotFoundError("Config %q not found", name)
	}
	return nil
}
