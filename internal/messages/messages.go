// Package messages stores contact-form submissions for the admin inbox.
package messages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
)

var ErrNotFound = errors.New("message not found")

type Message struct {
	ID        string     `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Email     string     `bson:"email" json:"email"`
	Phone     string     `bson:"phone,omitempty" json:"phone,omitempty"`
	Subject   string     `bson:"subject" json:"subject"`
	Body      string     `bson:"message" json:"message"`
	IsRead    bool       `bson:"isRead" json:"isRead"`
	ReadAt    *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`
	IP        string     `bson:"ip,omitempty" json:"-"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
}

type Query struct {
	IsRead *bool
	Search string
	Limit  int
	Skip   int
}

type Page struct {
	Data   []*Message `json:"data"`
	Total  int64      `json:"total"`
	Unread int64      `json:"unread"`
	Limit  int        `json:"limit"`
	Skip   int        `json:"skip"`
}

type Repository interface {
	Insert(ctx context.Context, m *Message) error
	Get(ctx context.Context, id string) (*Message, error)
	SetRead(ctx context.Context, id string, read bool, at time.Time) (*Message, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) ([]*Message, int64, error)
	CountUnread(ctx context.Context) (int64, error)
}

// MongoRepository implements Repository on a Mongo collection.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(ctx context.Context, col *mongo.Collection) (*MongoRepository, error) {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isRead", Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, idx); err != nil {
		return nil, err
	}
	return &MongoRepository{col: col}, nil
}

func (r *MongoRepository) Insert(ctx context.Context, m *Message) error {
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Message, error) {
	var m Message
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) SetRead(ctx context.Context, id string, read bool, at time.Time) (*Message, error) {
	update := bson.M{"$set": bson.M{"isRead": read, "readAt": at}}
	if !read {
		update = bson.M{"$set": bson.M{"isRead": false}, "$unset": bson.M{"readAt": ""}}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m Message
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, q Query) ([]*Message, int64, error) {
	filter := buildFilter(q)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	out := []*Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepository) CountUnread(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"isRead": false})
}

func buildFilter(q Query) bson.M {
	filter := bson.M{}
	if q.IsRead != nil {
		filter["isRead"] = *q.IsRead
	}
	if q.Search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
		filter["$or"] = []bson.M{{"name": rx}, {"email": rx}, {"subject": rx}, {"message": rx}}
	}
	return filter
}

// MemoryRepository keeps messages in process.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: map[string]*Message{}}
}

func (r *MemoryRepository) Insert(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.store[m.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) SetRead(_ context.Context, id string, read bool, at time.Time) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.IsRead = read
	m.ReadAt = nil
	if read {
		m.ReadAt = &at
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]*Message, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(q.Search)
	var all []*Message
	for _, m := range r.store {
		if q.IsRead != nil && m.IsRead != *q.IsRead {
			continue
		}
		if needle != "" && !containsAny(needle, m.Name, m.Email, m.Subject, m.Body) {
			continue
		}
		cp := *m
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := int64(len(all))
	if q.Skip >= len(all) {
		return []*Message{}, total, nil
	}
	end := q.Skip + q.Limit
	if q.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[q.Skip:end], total, nil
}

func (r *MemoryRepository) CountUnread(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.store {
		if !m.IsRead {
			n++
		}
	}
	return n, nil
}

func containsAny(needle string, hay ...string) bool {
	for _, h := range hay {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

// Service wraps the repository with defaults and clamping.
type Service struct {
	repo         Repository
	defaultLimit int
	maxLimit     int
	now          func() time.Time
	newID        func() string
}

func NewService(r Repository, defaultLimit, maxLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Service{repo: r, defaultLimit: defaultLimit, maxLimit: maxLimit, now: time.Now, newID: uuid.NewString}
}

// Submission is the public contact form.
type Submission struct {
	Name    string `json:"name" binding:"required,max=120"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"max=40"`
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required,max=5000"`
}

func (s *Service) Submit(ctx context.Context, in Submission, ip string) (*Message, error) {
	m := &Message{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     strings.TrimSpace(in.Phone),
		Subject:   strings.TrimSpace(in.Subject),
		Body:      strings.TrimSpace(in.Message),
		IP:        ip,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	logger.Infof("contact message %s received from %s", m.ID, m.Email)
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Message, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) MarkRead(ctx context.Context, id string, read bool) (*Message, error) {
	return s.repo.SetRead(ctx, id, read, s.now().UTC())
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	if q.Limit <= 0 {
		q.Limit = s.defaultLimit
	}
	if q.Limit > s.maxLimit {
		q.Limit = s.maxLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	q.Search = strings.TrimSpace(q.Search)
	list, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx)
	if err != nil {
		return nil, err
	}
	return &Page{Data: list, Total: total, Unread: unread, Limit: q.Limit, Skip: q.Skip}, nil
}
