package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/imageset"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/localized"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/repository"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/slug"
	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/metrics"
)

// Service defines the content operations used by the handler layer.
type Service interface {
	Descriptor() *content.Descriptor
	Create(ctx context.Context, actor content.Actor, cmd content.Command, uploaded []string) (*Result, error)
	Update(ctx context.Context, actor content.Actor, id string, cmd content.Command, uploaded []string) (*Result, error)
	Delete(ctx context.Context, actor content.Actor, id string) (*Result, error)
	Get(ctx context.Context, idOrSlug string) (*content.Resource, error)
	List(ctx context.Context, q content.Query) (*content.Page, error)
}

// Result is a successful write. Warnings carry non-fatal storage cleanup
// problems the admin UI shows next to "saved".
type Result struct {
	Resource *content.Resource
	Warnings []string
}

type Options struct {
	// MaxImages overrides the descriptor cap when > 0.
	MaxImages    int
	DefaultLimit int
	MaxLimit     int
}

// Manager runs the create/update/delete lifecycle for one resource kind.
type Manager struct {
	desc      *content.Descriptor
	repo      repository.Repository
	slugs     *slug.Allocator
	store     storage.Store
	maxImages int
	defLimit  int
	maxLimit  int
	now       func() time.Time
	newID     func() string
}

func NewManager(d *content.Descriptor, repo repository.Repository, store storage.Store, opts Options) *Manager {
	m := &Manager{
		desc:      d,
		repo:      repo,
		slugs:     slug.NewAllocator(repo),
		store:     store,
		maxImages: d.MaxImages,
		defLimit:  opts.DefaultLimit,
		maxLimit:  opts.MaxLimit,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	if opts.MaxImages > 0 {
		m.maxImages = opts.MaxImages
	}
	if m.defLimit <= 0 {
		m.defLimit = 20
	}
	if m.maxLimit < m.defLimit {
		m.maxLimit = m.defLimit
	}
	return m
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(d *content.Descriptor, store storage.Store, opts Options) *Manager {
	return NewManager(d, repository.NewMemoryRepo(d), store, opts)
}

// NewMongoService returns a Service backed by the descriptor's collection in db.
func NewMongoService(ctx context.Context, db *mongo.Database, d *content.Descriptor, store storage.Store, opts Options) (*Manager, error) {
	repo, err := repository.NewMongoRepo(ctx, db.Collection(d.Collection), d)
	if err != nil {
		return nil, err
	}
	return NewManager(d, repo, store, opts), nil
}

func (m *Manager) Descriptor() *content.Descriptor { return m.desc }

// Create validates and stores a new record. uploaded paths are already in
// storage; they are removed again if the record is not persisted.
func (m *Manager) Create(ctx context.Context, actor content.Actor, cmd content.Command, uploaded []string) (*Result, error) {
	r := &content.Resource{ID: m.newID(), Kind: m.desc.Kind, IsActive: true}
	if err := localized.Apply(m.desc.Fields, &r.Primary, &r.Secondary, cmd.Primary, cmd.Secondary, localized.Create); err != nil {
		return nil, m.fail(ctx, "create", uploaded, err)
	}
	applyFlags(r, cmd)

	plan := imageset.Reconcile(nil, nil, uploaded, m.maxImages)
	r.Images = plan.Next
	m.desc.Apply(r)

	candidate := r.Primary.Text["title"]
	if cmd.Slug != nil && strings.TrimSpace(*cmd.Slug) != "" {
		candidate = *cmd.Slug
	}
	s, err := m.slugs.Allocate(ctx, candidate, "")
	if err != nil {
		return nil, m.fail(ctx, "create", uploaded, err)
	}
	r.Slug = s
	r.CreatedAt = m.now().UTC()
	r.UpdatedAt = r.CreatedAt
	r.CreatedBy = actor.ID
	r.UpdatedBy = actor.ID

	if err := m.persist(ctx, r, candidate, m.repo.Insert); err != nil {
		return nil, m.fail(ctx, "create", uploaded, err)
	}

	res := &Result{Resource: r, Warnings: m.droppedWarning(plan)}
	res.Warnings = append(res.Warnings, m.cleanup(ctx, plan.Dropped)...)
	m.done("create", r, actor)
	return res, nil
}

// Update applies a partial change. Files removed from the record are
// deleted only after the record is persisted.
func (m *Manager) Update(ctx context.Context, actor content.Actor, id string, cmd content.Command, uploaded []string) (*Result, error) {
	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, m.fail(ctx, "update", uploaded, mapRepoErr(err))
	}
	next := cur.Clone()
	if err := localized.Apply(m.desc.Fields, &next.Primary, &next.Secondary, cmd.Primary, cmd.Secondary, localized.Update); err != nil {
		return nil, m.fail(ctx, "update", uploaded, err)
	}
	applyFlags(next, cmd)

	// slugs only move when the client sends one; an empty slug regenerates from the title
	candidate := cur.Slug
	if cmd.Slug != nil {
		candidate = strings.TrimSpace(*cmd.Slug)
		if candidate == "" {
			candidate = next.Primary.Text["title"]
		}
		if slug.Normalize(candidate) != cur.Slug {
			s, err := m.slugs.Allocate(ctx, candidate, cur.ID)
			if err != nil {
				return nil, m.fail(ctx, "update", uploaded, err)
			}
			next.Slug = s
		}
	}

	keep := cmd.ExistingImages
	if keep != nil {
		if keep, err = m.stillStored(ctx, keep); err != nil {
			return nil, m.fail(ctx, "update", uploaded, err)
		}
	}
	plan := imageset.Reconcile(cur.Images, keep, uploaded, m.maxImages)
	next.Images = plan.Next
	m.desc.Apply(next)
	next.UpdatedAt = m.now().UTC()
	next.UpdatedBy = actor.ID

	if err := m.persist(ctx, next, candidate, m.repo.Replace); err != nil {
		return nil, m.fail(ctx, "update", uploaded, err)
	}

	res := &Result{Resource: next, Warnings: m.droppedWarning(plan)}
	res.Warnings = append(res.Warnings, m.cleanup(ctx, plan.Orphans())...)
	m.done("update", next, actor)
	return res, nil
}

// Delete removes the record, then its files. A file that cannot be removed
// is reported as a warning; the record is gone either way.
func (m *Manager) Delete(ctx context.Context, actor content.Actor, id string) (*Result, error) {
	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, m.fail(ctx, "delete", nil, mapRepoErr(err))
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return nil, m.fail(ctx, "delete", nil, mapRepoErr(err))
	}
	res := &Result{Resource: cur, Warnings: m.cleanup(ctx, cur.Images)}
	m.done("delete", cur, actor)
	return res, nil
}

// Get resolves an id first, then a slug.
func (m *Manager) Get(ctx context.Context, idOrSlug string) (*content.Resource, error) {
	r, err := m.repo.Get(ctx, idOrSlug)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	r, err = m.repo.GetBySlug(ctx, idOrSlug)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return r, nil
}

func (m *Manager) List(ctx context.Context, q content.Query) (*content.Page, error) {
	if q.Limit <= 0 {
		q.Limit = m.defLimit
	}
	if q.Limit > m.maxLimit {
		q.Limit = m.maxLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	q.Category = strings.TrimSpace(q.Category)
	q.Tag = strings.TrimSpace(q.Tag)
	q.Search = strings.TrimSpace(q.Search)

	list, total, err := m.repo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.desc.Collection, err)
	}
	return &content.Page{Data: list, Total: total, Limit: q.Limit, Skip: q.Skip}, nil
}

// persist writes r and, if the unique slug index rejects it, re-allocates
// once and retries.
func (m *Manager) persist(ctx context.Context, r *content.Resource, candidate string, write func(context.Context, *content.Resource) error) error {
	err := write(ctx, r)
	if !errors.Is(err, repository.ErrSlugTaken) {
		return mapRepoErr(err)
	}
	metrics.SlugConflictRetries.Inc()
	logger.Warnf("%s: slug %q taken concurrently, re-allocating", m.desc.Kind, r.Slug)
	s, err := m.slugs.Allocate(ctx, candidate, r.ID)
	if err != nil {
		return err
	}
	r.Slug = s
	err = write(ctx, r)
	if errors.Is(err, repository.ErrSlugTaken) {
		return content.ErrConflict
	}
	return mapRepoErr(err)
}

// stillStored keeps the paths whose files exist.
func (m *Manager) stillStored(ctx context.Context, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		ok, err := m.store.Exists(ctx, p)
		if err != nil {
			return nil, &content.StorageError{Op: "stat", Path: p, Err: err}
		}
		if ok {
			out = append(out, p)
		} else {
			logger.Warnf("%s: kept image %s no longer exists, dropping it", m.desc.Kind, p)
		}
	}
	return out, nil
}

// cleanup deletes paths best-effort. It outlives request cancellation
// because the record change is already durable.
func (m *Manager) cleanup(ctx context.Context, paths []string) []string {
	ctx = context.WithoutCancel(ctx)
	var warnings []string
	for _, p := range paths {
		if err := m.store.Delete(ctx, p); err != nil {
			metrics.StorageCleanupFailures.WithLabelValues(string(m.desc.Kind)).Inc()
			logger.Warnf("%s: could not remove %s: %v", m.desc.Kind, p, err)
			warnings = append(warnings, fmt.Sprintf("saved, but old image %s could not be removed", p))
		}
	}
	return warnings
}

func (m *Manager) droppedWarning(plan imageset.Plan) []string {
	if len(plan.Dropped) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d uploaded image(s) discarded: at most %d images are allowed", len(plan.Dropped), m.maxImages)}
}

// fail discards this request's uploads and records the failure.
func (m *Manager) fail(ctx context.Context, op string, uploaded []string, err error) error {
	if len(uploaded) > 0 {
		m.cleanup(ctx, uploaded)
	}
	metrics.ContentOperations.WithLabelValues(string(m.desc.Kind), op, "error").Inc()
	return err
}

func (m *Manager) done(op string, r *content.Resource, actor content.Actor) {
	metrics.ContentOperations.WithLabelValues(string(m.desc.Kind), op, "ok").Inc()
	logger.L().Info("content "+op,
		zap.String("kind", string(m.desc.Kind)),
		zap.String("id", r.ID),
		zap.String("slug", r.Slug),
		zap.String("actor", actor.ID),
		zap.Int("images", len(r.Images)),
	)
}

func applyFlags(r *content.Resource, cmd content.Command) {
	if cmd.IsActive != nil {
		r.IsActive = *cmd.IsActive
	}
	if cmd.IsFeatured != nil {
		r.IsFeatured = *cmd.IsFeatured
	}
	if cmd.Order != nil {
		r.Order = *cmd.Order
	}
}

func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return content.ErrNotFound
	case errors.Is(err, repository.ErrSlugTaken):
		return content.ErrConflict
	}
	return err
}
