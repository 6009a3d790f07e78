package script

import (
	"context"
	"fmt"

	"coprox/internal/database"
	cron_feature "coprox/internal/features/cron"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ScriptRepository interface {
	Create(ctx context.Context, s *Script) error
	GetByName(ctx context.Context, name string) (*Script, error)
	List(ctx context.Context) ([]*Script, error)
	ListByStatus(ctx context.Context, status Status) ([]*Script, error)
	Update(ctx context.Context, s *Script) error
	Delete(ctx context.Context, name string) error
	EnsureIndexes(ctx context.Context) error
}

type ScriptRepositoryImpl struct {
	collection *mongo.Collection
}

func NewScriptRepository(db *database.MongodbDB) ScriptRepository {
	return &ScriptRepositoryImpl{
		collection: db.DB.Collection("scripts"),
	}
}

func (r *ScriptRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

func (r *ScriptRepositoryImpl) Create(ctx context.Context, s *Script) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, s)
	if mongo.IsDuplicateKeyError(err) {
		return cron_feature.DuplicateNameError("Script with name %q already exists", s.Name)
	}
	if err != nil {
		return fmt.Errorf("insert script %q: %w", s.Name, err)
	}
	return nil
}

func (r *ScriptRepositoryImpl) GetByName(ctx context.Context, name string) (*Script, error) {
	var s Script
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, cron_feature.NotFoundError("Script %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("find script %q: %w", name, err)
	}
	return &s, nil
}

func (r *ScriptRepositoryImpl) List(ctx context.Context) ([]*Script, error) {
	return r.find(ctx, bson.M{})
}

func (r *ScriptRepositoryImpl) ListByStatus(ctx context.Context, status Status) ([]*Script, error) {
	return r.find(ctx, bson.M{"status": status})
}

func (r *ScriptRepositoryImpl) find(ctx context.Context, query bson.M) ([]*Script, error) {
	// logs can grow large; listings leave them out
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.M{"logs": 0, "execution_history": 0})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer cursor.Close(ctx)

	scripts := []*Script{}
	if err = cursor.All(ctx, &scripts); err != nil {
		return nil, fmt.Errorf("decode scripts: %w", err)
	}
	return scripts, nil
}

func (r *ScriptRepositoryImpl) Update(ctx context.Context, s *Script) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"name": s.Name}, s)
	if err != nil {
		return fmt.Errorf("replace script %q: %w", s.Name, err)
	}
	if res.MatchedCount == 0 {
		return cron_feature.NotFoundError("Script %q not found", s.Name)
	}
	return nil
}

func (r *ScriptRepositoryImpl) Delete(ctx context.Context, name string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("delete script %q: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return cron_feature.NotFoundError("Script %q not found", name)
	}
	return nil
}
