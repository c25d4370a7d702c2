package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
)

// MongoRepo stores one resource kind per collection. The unique index on
// slug backs up the allocator under concurrent writes.
type MongoRepo struct {
	desc *content.Descriptor
	col  *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection, d *content.Descriptor) (*MongoRepo, error) {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("slug_unique")},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, idx); err != nil {
		return nil, fmt.Errorf("ensure %s indexes: %w", col.Name(), err)
	}
	return &MongoRepo{desc: d, col: col}, nil
}

func (m *MongoRepo) Insert(ctx context.Context, r *content.Resource) error {
	if _, err := m.col.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (m *MongoRepo) Replace(ctx context.Context, r *content.Resource) error {
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": r.ID}, r)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlugTaken
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*content.Resource, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoRepo) GetBySlug(ctx context.Context, slug string) (*content.Resource, error) {
	return m.findOne(ctx, bson.M{"slug": slug})
}

func (m *MongoRepo) findOne(ctx context.Context, filter bson.M) (*content.Resource, error) {
	var r content.Resource
	if err := m.col.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	filter := bson.M{"slug": slug}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := m.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *MongoRepo) List(ctx context.Context, q content.Query) ([]*content.Resource, int64, error) {
	filter := buildFilter(m.desc, q)
	total, err := m.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	if m.desc.Ordered {
		sort = append(bson.D{{Key: "order", Value: 1}}, sort...)
	}
	opts := options.Find().SetSort(sort).SetSkip(int64(q.Skip))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	out := []*content.Resource{}
	for cur.Next(ctx) {
		var r content.Resource
		if err := cur.Decode(&r); err != nil {
			return nil, 0, err
		}
		out = append(out, &r)
	}
	return out, total, cur.Err()
}

// buildFilter mirrors matches() in bson.
func buildFilter(d *content.Descriptor, q content.Query) bson.M {
	var and []bson.M
	if q.IsActive != nil {
		and = append(and, bson.M{"isActive": *q.IsActive})
	}
	if q.Category != "" {
		re := exactFold(q.Category)
		and = append(and, bson.M{"$or": []bson.M{
			{"primary.text.category": re},
			{"secondary.text.category": re},
		}})
	}
	if q.Tag != "" {
		re := exactFold(q.Tag)
		and = append(and, bson.M{"$or": []bson.M{
			{"primary.lists.tags": re},
			{"secondary.lists.tags": re},
		}})
	}
	if q.Search != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
		var or []bson.M
		for _, f := range d.SearchFields() {
			or = append(or,
				bson.M{"primary.text." + f.Name: re},
				bson.M{"secondary.text." + f.Name: re},
			)
		}
		if len(or) > 0 {
			and = append(and, bson.M{"$or": or})
		}
	}
	if len(and) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": and}
}

func exactFold(s string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(s) + "$", "$options": "i"}
}
