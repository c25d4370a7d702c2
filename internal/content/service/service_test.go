package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/repository"
	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
)

var admin = content.Actor{ID: "admin-1", Email: "admin@example.com"}

type fixture struct {
	t      *testing.T
	store  *storage.FSStorage
	m      *Manager
	n      int
	stored []string
}

func newFixture(t *testing.T, d *content.Descriptor) *fixture {
	store := storage.NewMemoryStorage("/uploads")
	return &fixture{t: t, store: store, m: NewMemoryService(d, store, Options{})}
}

// upload writes n files the way the upload boundary would.
func (f *fixture) upload(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		f.n++
		p, err := f.store.Put(context.Background(), fmt.Sprintf("%s/img%d.png", f.m.desc.Collection, f.n), strings.NewReader("x"), 1, "image/png")
		require.NoError(f.t, err)
		out = append(out, p)
		f.stored = append(f.stored, p)
	}
	return out
}

func (f *fixture) exists(p string) bool {
	ok, err := f.store.Exists(context.Background(), p)
	require.NoError(f.t, err)
	return ok
}

func blogCmd(title string) content.Command {
	return content.Command{
		Primary: content.Fields{Text: map[string]string{
			"title": title, "content": "Gövde", "category": "Eğitim",
		}},
	}
}

func TestCreate_AllocatesUniqueSlugs(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()

	a, err := f.m.Create(ctx, admin, blogCmd("Eğitim Başvurusu"), nil)
	require.NoError(t, err)
	b, err := f.m.Create(ctx, admin, blogCmd("Eğitim Başvurusu"), nil)
	require.NoError(t, err)

	require.Equal(t, "egitim-basvurusu", a.Resource.Slug)
	require.Equal(t, "egitim-basvurusu-1", b.Resource.Slug)

	gotA, err := f.m.Get(ctx, a.Resource.Slug)
	require.NoError(t, err)
	require.Equal(t, a.Resource.ID, gotA.ID)
	gotB, err := f.m.Get(ctx, b.Resource.Slug)
	require.NoError(t, err)
	require.Equal(t, b.Resource.ID, gotB.ID)
	require.Equal(t, admin.ID, gotA.CreatedBy)
}

func TestCreate_ExplicitSlugAndDefaults(t *testing.T) {
	f := newFixture(t, content.Blog)
	cmd := blogCmd("Başlık")
	s := "Özel Adres"
	cmd.Slug = &s
	res, err := f.m.Create(context.Background(), admin, cmd, nil)
	require.NoError(t, err)
	require.Equal(t, "ozel-adres", res.Resource.Slug)
	require.True(t, res.Resource.IsActive)
	require.False(t, res.Resource.IsFeatured)
	require.False(t, res.Resource.CreatedAt.IsZero())
}

func TestCreate_ValidationDiscardsUploads(t *testing.T) {
	f := newFixture(t, content.Blog)
	up := f.upload(2)
	cmd := blogCmd("")
	_, err := f.m.Create(context.Background(), admin, cmd, up)
	var ve *content.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "title", ve.Field)
	for _, p := range up {
		require.False(t, f.exists(p))
	}
}

func TestCreate_CapDropsExtraUploads(t *testing.T) {
	f := newFixture(t, content.Blog)
	up := f.upload(5)
	res, err := f.m.Create(context.Background(), admin, blogCmd("Galeri"), up)
	require.NoError(t, err)
	require.Equal(t, up[:3], res.Resource.Images)
	require.Len(t, res.Warnings, 1)
	require.False(t, f.exists(up[3]))
	require.False(t, f.exists(up[4]))
}

func TestUpdate_KeepOneAddTwo(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	ab := f.upload(2)
	created, err := f.m.Create(ctx, admin, blogCmd("Senaryo"), ab)
	require.NoError(t, err)
	require.Equal(t, ab, created.Resource.Images)

	cd := f.upload(2)
	cmd := content.Command{ExistingImages: []string{ab[0]}}
	updated, err := f.m.Update(ctx, admin, created.Resource.ID, cmd, cd)
	require.NoError(t, err)
	require.Equal(t, []string{ab[0], cd[0], cd[1]}, updated.Resource.Images)
	require.Empty(t, updated.Warnings)

	require.True(t, f.exists(ab[0]))
	require.False(t, f.exists(ab[1]))
	require.True(t, f.exists(cd[0]))
	require.True(t, f.exists(cd[1]))
}

func TestUpdate_ImagesUntouchedWithoutKeepOrUploads(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	imgs := f.upload(2)
	created, err := f.m.Create(ctx, admin, blogCmd("Dokunma"), imgs)
	require.NoError(t, err)

	cmd := content.Command{Primary: content.Fields{Text: map[string]string{"excerpt": "yeni"}}}
	updated, err := f.m.Update(ctx, admin, created.Resource.ID, cmd, nil)
	require.NoError(t, err)
	require.Equal(t, imgs, updated.Resource.Images)
	require.True(t, f.exists(imgs[0]) && f.exists(imgs[1]))
}

func TestUpdate_SlugIsSticky(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	created, err := f.m.Create(ctx, admin, blogCmd("İlk Başlık"), nil)
	require.NoError(t, err)
	require.Equal(t, "ilk-baslik", created.Resource.Slug)

	cmd := content.Command{Primary: content.Fields{Text: map[string]string{"title": "Tamamen Yeni Başlık"}}}
	updated, err := f.m.Update(ctx, admin, created.Resource.ID, cmd, nil)
	require.NoError(t, err)
	require.Equal(t, "ilk-baslik", updated.Resource.Slug)
	require.Equal(t, "Tamamen Yeni Başlık", updated.Resource.Text("title"))

	s := "ikinci-adres"
	updated, err = f.m.Update(ctx, admin, created.Resource.ID, content.Command{Slug: &s}, nil)
	require.NoError(t, err)
	require.Equal(t, "ikinci-adres", updated.Resource.Slug)

	empty := ""
	updated, err = f.m.Update(ctx, admin, created.Resource.ID, content.Command{Slug: &empty}, nil)
	require.NoError(t, err)
	require.Equal(t, "tamamen-yeni-baslik", updated.Resource.Slug)

	// re-sending the current slug keeps it without a suffix
	same := "tamamen-yeni-baslik"
	updated, err = f.m.Update(ctx, admin, created.Resource.ID, content.Command{Slug: &same}, nil)
	require.NoError(t, err)
	require.Equal(t, "tamamen-yeni-baslik", updated.Resource.Slug)
}

func TestUpdate_RenameToTakenSlugGetsSuffix(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	_, err := f.m.Create(ctx, admin, blogCmd("Alfa"), nil)
	require.NoError(t, err)
	b, err := f.m.Create(ctx, admin, blogCmd("Beta"), nil)
	require.NoError(t, err)

	s := "alfa"
	updated, err := f.m.Update(ctx, admin, b.Resource.ID, content.Command{Slug: &s}, nil)
	require.NoError(t, err)
	require.Equal(t, "alfa-1", updated.Resource.Slug)
}

func TestUpdate_LocaleIndependence(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	cmd := blogCmd("Başlık")
	cmd.Secondary = content.Fields{Text: map[string]string{"title": "Title"}}
	created, err := f.m.Create(ctx, admin, cmd, nil)
	require.NoError(t, err)
	primaryBefore := created.Resource.Primary.Clone()

	upd := content.Command{Secondary: content.Fields{
		Text:  map[string]string{"title": "New Title", "content": "Body"},
		Lists: map[string][]string{"tags": {"training"}},
	}}
	updated, err := f.m.Update(ctx, admin, created.Resource.ID, upd, nil)
	require.NoError(t, err)
	require.Equal(t, primaryBefore, updated.Resource.Primary)

	secondaryBefore := updated.Resource.Secondary.Clone()
	upd = content.Command{Primary: content.Fields{Text: map[string]string{"title": "Yeni"}}}
	updated, err = f.m.Update(ctx, admin, created.Resource.ID, upd, nil)
	require.NoError(t, err)
	require.Equal(t, secondaryBefore, updated.Resource.Secondary)
}

func TestUpdate_InactiveClearsFeatured(t *testing.T) {
	f := newFixture(t, content.Announcement)
	ctx := context.Background()
	yes := true
	cmd := content.Command{
		Primary:    content.Fields{Text: map[string]string{"title": "Duyuru", "description": "Açıklama"}},
		IsFeatured: &yes,
	}
	created, err := f.m.Create(ctx, admin, cmd, nil)
	require.NoError(t, err)
	require.True(t, created.Resource.IsFeatured)

	no := false
	updated, err := f.m.Update(ctx, admin, created.Resource.ID, content.Command{IsActive: &no}, nil)
	require.NoError(t, err)
	require.False(t, updated.Resource.IsActive)
	require.False(t, updated.Resource.IsFeatured)

	// featuring an inactive record is corrected in the same operation
	updated, err = f.m.Update(ctx, admin, created.Resource.ID, content.Command{IsFeatured: &yes}, nil)
	require.NoError(t, err)
	require.False(t, updated.Resource.IsFeatured)
}

func TestUpdate_NotFoundDiscardsUploads(t *testing.T) {
	f := newFixture(t, content.Blog)
	up := f.upload(1)
	_, err := f.m.Update(context.Background(), admin, "missing", content.Command{}, up)
	require.ErrorIs(t, err, content.ErrNotFound)
	require.False(t, f.exists(up[0]))
}

func TestUpdate_KeepSkipsMissingFiles(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	imgs := f.upload(2)
	created, err := f.m.Create(ctx, admin, blogCmd("Eksik"), imgs)
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, imgs[1]))

	updated, err := f.m.Update(ctx, admin, created.Resource.ID, content.Command{ExistingImages: imgs}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{imgs[0]}, updated.Resource.Images)
}

func TestOrphanFree(t *testing.T) {
	f := newFixture(t, content.Service)
	ctx := context.Background()
	cmd := content.Command{Primary: content.Fields{Text: map[string]string{
		"title": "PPL", "shortDescription": "Kısa", "description": "Uzun",
	}}}
	created, err := f.m.Create(ctx, admin, cmd, f.upload(2))
	require.NoError(t, err)
	id := created.Resource.ID

	cur := created.Resource.Images
	for i := 0; i < 4; i++ {
		keep := cur
		if len(keep) > 1 {
			keep = keep[1:]
		}
		res, err := f.m.Update(ctx, admin, id, content.Command{ExistingImages: keep}, f.upload(2))
		require.NoError(t, err)
		cur = res.Resource.Images
		require.LessOrEqual(t, len(cur), 3)
	}
	res, err := f.m.Update(ctx, admin, id, content.Command{}, f.upload(1))
	require.NoError(t, err)
	require.Len(t, res.Resource.Images, 1)

	_, err = f.m.Delete(ctx, admin, id)
	require.NoError(t, err)
	for _, p := range f.stored {
		require.False(t, f.exists(p), "orphan %s", p)
	}
	_, err = f.m.Get(ctx, id)
	require.ErrorIs(t, err, content.ErrNotFound)
}

type flakyStore struct {
	*storage.FSStorage
	fail map[string]bool
}

func (s *flakyStore) Delete(ctx context.Context, p string) error {
	if s.fail[p] {
		return errors.New("permission denied")
	}
	return s.FSStorage.Delete(ctx, p)
}

func TestCleanupFailureIsAWarning(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	imgs := f.upload(2)
	store := &flakyStore{FSStorage: f.store, fail: map[string]bool{imgs[1]: true}}
	m := NewMemoryService(content.Blog, store, Options{})

	created, err := m.Create(ctx, admin, blogCmd("Uyarı"), imgs)
	require.NoError(t, err)
	updated, err := m.Update(ctx, admin, created.Resource.ID, content.Command{ExistingImages: imgs[:1]}, nil)
	require.NoError(t, err)
	require.Equal(t, imgs[:1], updated.Resource.Images)
	require.Len(t, updated.Warnings, 1)
	require.Contains(t, updated.Warnings[0], imgs[1])

	deleted, err := m.Delete(ctx, admin, created.Resource.ID)
	require.NoError(t, err)
	require.Empty(t, deleted.Warnings)
}

// racyRepo reports slugs as free even when they are taken, like a second
// writer that checked just before the first one inserted.
type racyRepo struct {
	*repository.MemoryRepo
	mu   sync.Mutex
	lies int
}

func (r *racyRepo) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lies > 0 {
		r.lies--
		return false, nil
	}
	return r.MemoryRepo.SlugExists(ctx, slug, excludeID)
}

func TestCreate_RetriesOnceAfterIndexConflict(t *testing.T) {
	ctx := context.Background()
	repo := &racyRepo{MemoryRepo: repository.NewMemoryRepo(content.Blog)}
	m := NewManager(content.Blog, repo, storage.NewMemoryStorage("/uploads"), Options{})

	_, err := m.Create(ctx, admin, blogCmd("Yarış"), nil)
	require.NoError(t, err)

	repo.lies = 1
	res, err := m.Create(ctx, admin, blogCmd("Yarış"), nil)
	require.NoError(t, err)
	require.Equal(t, "yaris-1", res.Resource.Slug)
}

func TestCreate_SecondConflictSurfaces(t *testing.T) {
	ctx := context.Background()
	repo := &racyRepo{MemoryRepo: repository.NewMemoryRepo(content.Blog)}
	store := storage.NewMemoryStorage("/uploads")
	m := NewManager(content.Blog, repo, store, Options{})

	_, err := m.Create(ctx, admin, blogCmd("Yarış"), nil)
	require.NoError(t, err)

	p, err := store.Put(ctx, "blogs/x.png", strings.NewReader("x"), 1, "image/png")
	require.NoError(t, err)
	repo.lies = 2
	_, err = m.Create(ctx, admin, blogCmd("Yarış"), []string{p})
	require.ErrorIs(t, err, content.ErrConflict)
	ok, _ := store.Exists(ctx, p)
	require.False(t, ok)
}

func TestList_TagAcrossLocales(t *testing.T) {
	f := newFixture(t, content.Blog)
	ctx := context.Background()
	cmd := blogCmd("Etiketli")
	cmd.Primary.Lists = map[string][]string{"tags": {"eğitim"}}
	cmd.Secondary = content.Fields{Lists: map[string][]string{"tags": {"training"}}}
	created, err := f.m.Create(ctx, admin, cmd, nil)
	require.NoError(t, err)
	_, err = f.m.Create(ctx, admin, blogCmd("Etiketsiz"), nil)
	require.NoError(t, err)

	for _, tag := range []string{"eğitim", "training"} {
		page, err := f.m.List(ctx, content.Query{Tag: tag})
		require.NoError(t, err)
		require.Equal(t, int64(1), page.Total, tag)
		require.Equal(t, created.Resource.ID, page.Data[0].ID)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	f := newFixture(t, content.Blog)
	f.m.maxLimit = 50
	page, err := f.m.List(context.Background(), content.Query{Limit: 1000, Skip: -3})
	require.NoError(t, err)
	require.Equal(t, 50, page.Limit)
	require.Equal(t, 0, page.Skip)

	page, err = f.m.List(context.Background(), content.Query{})
	require.NoError(t, err)
	require.Equal(t, 20, page.Limit)
}
