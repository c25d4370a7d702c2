package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrSlugTaken is returned when the unique slug index rejects a write.
	ErrSlugTaken = errors.New("slug already taken")
)

// Repository persists resources of one kind. Implementations must enforce
// slug uniqueness themselves and report violations as ErrSlugTaken.
type Repository interface {
	Insert(ctx context.Context, r *content.Resource) error
	Replace(ctx context.Context, r *content.Resource) error
	Get(ctx context.Context, id string) (*content.Resource, error)
	GetBySlug(ctx context.Context, slug string) (*content.Resource, error)
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	List(ctx context.Context, q content.Query) ([]*content.Resource, int64, error)
}

// matches applies q to r the way the Mongo filter does.
func matches(d *content.Descriptor, r *content.Resource, q content.Query) bool {
	if q.IsActive != nil && r.IsActive != *q.IsActive {
		return false
	}
	if q.Category != "" {
		if !strings.EqualFold(r.Primary.Text["category"], q.Category) &&
			!strings.EqualFold(r.Secondary.Text["category"], q.Category) {
			return false
		}
	}
	if q.Tag != "" && !containsFold(r.Primary.Lists["tags"], q.Tag) && !containsFold(r.Secondary.Lists["tags"], q.Tag) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		hit := false
		for _, f := range d.SearchFields() {
			if strings.Contains(strings.ToLower(r.Primary.Text[f.Name]), needle) ||
				strings.Contains(strings.ToLower(r.Secondary.Text[f.Name]), needle) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// sortRecent orders newest first, breaking ties by id for stable pages.
// Ordered kinds sort by their manual position first.
func sortRecent(d *content.Descriptor, out []*content.Resource) {
	sort.SliceStable(out, func(i, j int) bool {
		if d.Ordered && out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func page(out []*content.Resource, skip, limit int) []*content.Resource {
	if skip >= len(out) {
		return []*content.Resource{}
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
