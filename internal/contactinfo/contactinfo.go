// Package contactinfo stores the single contact card shown in the site footer
// and on the contact page.
package contactinfo

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/localized"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
)

const docID = "default"

// Descriptor declares the contact card fields; it is not a listable kind.
var Descriptor = &content.Descriptor{
	Kind:       "contactInfo",
	Collection: "contact_info",
	Fields: []content.FieldSpec{
		{Name: "address", Type: content.TextField, Localized: true},
		{Name: "workingHours", Type: content.TextField, Localized: true},
		{Name: "phone", Type: content.TextField},
		{Name: "email", Type: content.TextField},
		{Name: "whatsapp", Type: content.TextField},
		{Name: "mapUrl", Type: content.TextField},
		{Name: "socialLinks", Type: content.ListField},
	},
}

type Info struct {
	ID        string         `bson:"_id"`
	Primary   content.Fields `bson:"primary"`
	Secondary content.Fields `bson:"secondary"`
	UpdatedBy string         `bson:"updatedBy,omitempty"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

func (i *Info) MarshalJSON() ([]byte, error) {
	out := content.Flatten(Descriptor.Fields, i.Primary, i.Secondary)
	if !i.UpdatedAt.IsZero() {
		out["updatedAt"] = i.UpdatedAt
	}
	return json.Marshal(out)
}

// Repository loads and saves the single contact document. Load returns
// (nil, nil) before the first save.
type Repository interface {
	Load(ctx context.Context) (*Info, error)
	Save(ctx context.Context, i *Info) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Load(ctx context.Context) (*Info, error) {
	var i Info
	if err := r.col.FindOne(ctx, bson.M{"_id": docID}).Decode(&i); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

func (r *MongoRepository) Save(ctx context.Context, i *Info) error {
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": docID}, i, options.Replace().SetUpsert(true))
	return err
}

type MemoryRepository struct {
	mu  sync.RWMutex
	cur *Info
}

func NewMemoryRepository() *MemoryRepository { return &MemoryRepository{} }

func (r *MemoryRepository) Load(context.Context) (*Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cur == nil {
		return nil, nil
	}
	return clone(r.cur), nil
}

func (r *MemoryRepository) Save(_ context.Context, i *Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur = clone(i)
	return nil
}

func clone(i *Info) *Info {
	cp := *i
	cp.Primary = i.Primary.Clone()
	cp.Secondary = i.Secondary.Clone()
	return &cp
}

type Service struct {
	repo Repository
	mu   sync.Mutex
	now  func() time.Time
}

func NewService(r Repository) *Service { return &Service{repo: r, now: time.Now} }

// Get returns the stored card, or an empty one before the first update.
func (s *Service) Get(ctx context.Context) (*Info, error) {
	i, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i == nil {
		i = &Info{ID: docID}
	}
	return i, nil
}

// Update merges the sent fields into the card; fields not sent are untouched.
func (s *Service) Update(ctx context.Context, actor content.Actor, cmd content.Command) (*Info, error) {
	if email, ok := cmd.Primary.Text["email"]; ok && strings.TrimSpace(email) != "" {
		if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
			return nil, content.Invalid("email", "is not a valid address")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	next := clone(i)
	if err := localized.Apply(Descriptor.Fields, &next.Primary, &next.Secondary, cmd.Primary, cmd.Secondary, localized.Update); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()
	next.UpdatedBy = actor.ID
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}
	logger.Infof("contact info updated by %s", actor.ID)
	return next, nil
}
