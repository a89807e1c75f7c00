package categories

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/joefazee/categorias/models"
)

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, newBackend backendFactory) {
	ctx := context.Background()

	t.Run("Create and FindOne round trip", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		created, err := b.svc.Create(ctx, CreateCategoryRequest{
			Name:         "  Technology ",
			Description:  "Gadgets and software ",
			Color:        " #0044ff",
			Icon:         "cpu\n",
			DisplayOrder: 3,
			CreatedBy:    int64Ptr(42),
		})
		require.NoError(t, err)
		assert.Positive(t, created.ID)
		assert.Equal(t, "Technology", created.Name)
		assert.Equal(t, "technology", created.Slug)
		assert.Equal(t, "Gadgets and software", created.Description)
		assert.Equal(t, "#0044ff", created.Color)
		assert.Equal(t, "cpu", created.Icon)
		assert.True(t, created.IsActive)
		assert.Zero(t, created.PostsCount)
		assert.Nil(t, created.ParentID)
		assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

		found, err := b.svc.FindOne(ctx, created.ID, FindOneOptions{})
		require.NoError(t, err)
		require.NotNil(t, found)
		assertSameCategory(t, created, found)

		missing, err := b.svc.FindOne(ctx, created.ID+100, FindOneOptions{})
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("Derives unique slugs", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		assert.Equal(t, "test", createCategory(t, b.svc, "Test").Slug)
		assert.Equal(t, "test-1", createCategory(t, b.svc, "Test").Slug)
		assert.Equal(t, "test-2", createCategory(t, b.svc, "TEST").Slug)
		assert.Equal(t, "web-development", createCategory(t, b.svc, " Web \t Development ").Slug)
		assert.Equal(t, "ac-dc", createCategory(t, b.svc, "AC/DC").Slug)
		assert.Equal(t, "c-tips", createCategory(t, b.svc, "C# Tips").Slug)
		assert.Equal(t, "why", createCategory(t, b.svc, "Why?").Slug)
		assert.Equal(t, FallbackSlug, createCategory(t, b.svc, "---").Slug)
		assert.Equal(t, FallbackSlug+"-1", createCategory(t, b.svc, "/?#").Slug)

		explicit := createCategory(t, b.svc, "Anything", func(r *CreateCategoryRequest) { r.Slug = " My Slug " })
		assert.Equal(t, "my-slug", explicit.Slug)

		_, err := b.svc.Create(ctx, CreateCategoryRequest{Name: "Other", Description: "x", Slug: "test"})
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.ErrorIs(t, err, models.ErrSlugTaken)
	})

	t.Run("Accepts color and icon at their column widths", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		c := createCategory(t, b.svc, "Wide", func(r *CreateCategoryRequest) {
			r.Color = strings.Repeat("a", models.MaxCategoryColorLength)
			r.Icon = strings.Repeat("í", models.MaxCategoryIconLength)
		})
		found, err := b.svc.FindOne(ctx, c.ID, FindOneOptions{})
		require.NoError(t, err)
		assert.Equal(t, c.Color, found.Color)
		assert.Equal(t, c.Icon, found.Icon)
	})

	t.Run("Generated post ids skip explicitly chosen ones", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		chosen := &models.Post{ID: 5, Title: "Imported", Slug: "imported", Status: models.PostStatusDraft}
		require.NoError(t, b.svc.SavePost(ctx, chosen))
		assert.EqualValues(t, 5, chosen.ID)

		next := savePost(t, b.svc, "Fresh", models.PostStatusDraft, nil)
		assert.EqualValues(t, 6, next.ID)

		lower := &models.Post{ID: 2, Title: "Backfilled", Slug: "backfilled", Status: models.PostStatusDraft}
		require.NoError(t, b.svc.SavePost(ctx, lower))
		assert.EqualValues(t, 7, savePost(t, b.svc, "Later", models.PostStatusDraft, nil).ID)
	})

	t.Run("Slug space exhausted", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SlugMaxAttempts = 2
		b := newBackend(t, cfg)

		assert.Equal(t, "dup", createCategory(t, b.svc, "Dup").Slug)
		assert.Equal(t, "dup-1", createCategory(t, b.svc, "Dup").Slug)

		_, err := b.svc.Create(ctx, CreateCategoryRequest{Name: "Dup", Description: "x"})
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.ErrorIs(t, err, models.ErrSlugSpaceExhausted)
	})

	t.Run("Rejects invalid payloads", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		tests := []struct {
			name  string
			req   CreateCategoryRequest
			field string
		}{
			{"Empty name", CreateCategoryRequest{Name: "  ", Description: "x"}, "nombre"},
			{"Long name", CreateCategoryRequest{Name: strings.Repeat("n", 101), Description: "x"}, "nombre"},
			{"Blank description", CreateCategoryRequest{Name: "Tech", Description: " "}, "descripcion"},
			{"Bad slug", CreateCategoryRequest{Name: "Tech", Description: "x", Slug: "a/b"}, "slug"},
			{"Long color", CreateCategoryRequest{Name: "Tech", Description: "x", Color: strings.Repeat("a", 40)}, "color"},
			{"Long icon", CreateCategoryRequest{Name: "Tech", Description: "x", Icon: strings.Repeat("i", 70)}, "icono"},
			{"Negative parent", CreateCategoryRequest{Name: "Tech", Description: "x", ParentID: int64Ptr(-1)}, "parent_id"},
			{"Unknown parent", CreateCategoryRequest{Name: "Tech", Description: "x", ParentID: int64Ptr(999)}, "parent_id"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c, err := b.svc.Create(ctx, tt.req)
				assert.Nil(t, c)
				require.ErrorIs(t, err, models.ErrValidation)

				var domainErr *models.Error
				require.True(t, errors.As(err, &domainErr))
				assert.Contains(t, domainErr.Fields, tt.field)
			})
		}

		page, err := b.svc.FindAll(ctx, FindAllOptions{})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("Orders by display_order then id", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		a := createCategory(t, b.svc, "A", withOrder(2))
		bb := createCategory(t, b.svc, "B", withOrder(1))

		page, err := b.svc.FindAll(ctx, FindAllOptions{OrderBy: "display_order"})
		require.NoError(t, err)
		assert.Equal(t, []int64{bb.ID, a.ID}, idsOf(page.Items))

		c := createCategory(t, b.svc, "C", withOrder(1))

		page, err = b.svc.FindAll(ctx, FindAllOptions{OrderBy: "display_order", Order: "ASC"})
		require.NoError(t, err)
		assert.Equal(t, []int64{bb.ID, c.ID, a.ID}, idsOf(page.Items))

		page, err = b.svc.FindAll(ctx, FindAllOptions{OrderBy: "display_order", Order: "desc"})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.ID, bb.ID, c.ID}, idsOf(page.Items))

		page, err = b.svc.FindAll(ctx, FindAllOptions{OrderBy: "nombre", Order: "desc"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, slugsOf(page.Items))
	})

	t.Run("Search is case-insensitive over name and description", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		tech := createCategory(t, b.svc, "Technology")
		createCategory(t, b.svc, "Sports")
		gadgets := createCategory(t, b.svc, "Gadgets", func(r *CreateCategoryRequest) { r.Description = "Consumer TECH reviews" })
		deals := createCategory(t, b.svc, "Deals", func(r *CreateCategoryRequest) { r.Description = "Up to 50% off" })

		page, err := b.svc.FindAll(ctx, FindAllOptions{Search: "tech"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		assert.Equal(t, []int64{tech.ID, gadgets.ID}, idsOf(page.Items))

		page, err = b.svc.FindAll(ctx, FindAllOptions{Search: "%"})
		require.NoError(t, err)
		assert.Equal(t, []int64{deals.ID}, idsOf(page.Items))

		page, err = b.svc.FindAll(ctx, FindAllOptions{Search: "_"})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("Pages beyond the extent", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		empty, err := b.svc.FindAll(ctx, FindAllOptions{})
		require.NoError(t, err)
		assert.Empty(t, empty.Items)
		assert.Equal(t, 1, empty.Pages)

		for _, name := range []string{"One", "Two", "Three"} {
			createCategory(t, b.svc, name)
		}

		page, err := b.svc.FindAll(ctx, FindAllOptions{Page: 5, Limit: 2})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, 2, page.Pages)
		assert.Equal(t, 5, page.Page)
		assert.Equal(t, 2, page.Limit)

		page, err = b.svc.FindAll(ctx, FindAllOptions{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"three"}, slugsOf(page.Items))

		page, err = b.svc.FindAll(ctx, FindAllOptions{Page: -1, Limit: 1000, OrderBy: "nope", Order: "sideways"})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, MaxLimit, page.Limit)
		assert.Equal(t, []string{"one", "two", "three"}, slugsOf(page.Items))
	})

	t.Run("Filters combine with AND", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		red := func(r *CreateCategoryRequest) { r.Color = "red" }
		blue := func(r *CreateCategoryRequest) { r.Color = "blue" }

		r1 := createCategory(t, b.svc, "Root One", red)
		c1 := createCategory(t, b.svc, "Child One", red, withParent(r1.ID))
		c2 := createCategory(t, b.svc, "Child Two", blue, withParent(r1.ID), inactive())
		r2 := createCategory(t, b.svc, "Root Two", blue)

		tests := []struct {
			name     string
			opts     FindAllOptions
			expected []int64
		}{
			{"By parent", FindAllOptions{ParentID: int64Ptr(r1.ID)}, []int64{c1.ID, c2.ID}},
			{"Roots", FindAllOptions{ParentID: int64Ptr(0)}, []int64{r1.ID, r2.ID}},
			{"By color", FindAllOptions{Color: "red"}, []int64{r1.ID, c1.ID}},
			{"Inactive", FindAllOptions{IsActive: boolPtr(false)}, []int64{c2.ID}},
			{"Color and active", FindAllOptions{Color: "blue", IsActive: boolPtr(true)}, []int64{r2.ID}},
			{"By slug", FindAllOptions{Slug: "root-two"}, []int64{r2.ID}},
			{"Nothing", FindAllOptions{Slug: "root-two", Color: "red"}, []int64{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				page, err := b.svc.FindAll(ctx, tt.opts)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, idsOf(page.Items))
				assert.Equal(t, int64(len(tt.expected)), page.Total)
			})
		}
	})

	t.Run("Empty update only bumps updated_at", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		before := createCategory(t, b.svc, "Science", withOrder(4))

		after, err := b.svc.Update(ctx, before.ID, UpdateCategoryRequest{})
		require.NoError(t, err)
		require.NotNil(t, after)
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

		expected := before.Clone()
		expected.UpdatedAt = after.UpdatedAt
		assertSameCategory(t, expected, after)

		found, err := b.svc.FindOne(ctx, before.ID, FindOneOptions{})
		require.NoError(t, err)
		assertSameCategory(t, after, found)

		missing, err := b.svc.Update(ctx, before.ID+100, UpdateCategoryRequest{Name: strPtr("Ghost")})
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("Update re-derives slug only on rename", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		createCategory(t, b.svc, "Technology")
		tech := createCategory(t, b.svc, "Tech")

		same, err := b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Name: strPtr("Tech"), Color: strPtr("green")})
		require.NoError(t, err)
		assert.Equal(t, "tech", same.Slug)
		assert.Equal(t, "green", same.Color)

		renamed, err := b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Name: strPtr("Technology")})
		require.NoError(t, err)
		assert.Equal(t, "Technology", renamed.Name)
		assert.Equal(t, "technology-1", renamed.Slug)

		recased, err := b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Name: strPtr("TECHNOLOGY")})
		require.NoError(t, err)
		assert.Equal(t, "technology-1", recased.Slug)

		explicit, err := b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Name: strPtr("Gizmos"), Slug: strPtr("gear")})
		require.NoError(t, err)
		assert.Equal(t, "gear", explicit.Slug)

		_, err = b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Slug: strPtr("technology")})
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.ErrorIs(t, err, models.ErrSlugTaken)

		_, err = b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Name: strPtr(" ")})
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Color: strPtr(strings.Repeat("a", 33))})
		assert.ErrorIs(t, err, models.ErrValidation)
		_, err = b.svc.Update(ctx, tech.ID, UpdateCategoryRequest{Icon: strPtr(strings.Repeat("i", 65))})
		assert.ErrorIs(t, err, models.ErrValidation)

		found, err := b.svc.FindOne(ctx, tech.ID, FindOneOptions{})
		require.NoError(t, err)
		assert.Equal(t, "gear", found.Slug)
		assert.Equal(t, "Gizmos", found.Name)
	})

	t.Run("Update rejects cycles", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		a := createCategory(t, b.svc, "A")
		bb := createCategory(t, b.svc, "B", withParent(a.ID))
		c := createCategory(t, b.svc, "C", withParent(bb.ID))

		_, err := b.svc.Update(ctx, a.ID, UpdateCategoryRequest{ParentID: int64Ptr(a.ID)})
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.ErrorIs(t, err, models.ErrCategoryCycle)

		_, err = b.svc.Update(ctx, a.ID, UpdateCategoryRequest{ParentID: int64Ptr(c.ID)})
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.ErrorIs(t, err, models.ErrCategoryCycle)

		_, err = b.svc.Update(ctx, a.ID, UpdateCategoryRequest{ParentID: int64Ptr(c.ID + 100)})
		assert.ErrorIs(t, err, models.ErrValidation)

		moved, err := b.svc.Update(ctx, c.ID, UpdateCategoryRequest{ParentID: int64Ptr(a.ID)})
		require.NoError(t, err)
		assert.Equal(t, a.ID, *moved.ParentID)

		rooted, err := b.svc.Update(ctx, bb.ID, UpdateCategoryRequest{ParentID: int64Ptr(0)})
		require.NoError(t, err)
		assert.Nil(t, rooted.ParentID)
	})

	t.Run("Remove refuses categories with published posts", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		parent := createCategory(t, b.svc, "Parent")
		child := createCategory(t, b.svc, "Child", withParent(parent.ID))
		busy := createCategory(t, b.svc, "Busy")
		drafts := createCategory(t, b.svc, "Drafts")

		post := publishedPost(t, b.svc, "Live")
		draft := savePost(t, b.svc, "Draft", models.PostStatusDraft, nil)
		_, err := b.svc.AttachPost(ctx, post.ID, busy.ID)
		require.NoError(t, err)
		_, err = b.svc.AttachPost(ctx, draft.ID, drafts.ID)
		require.NoError(t, err)

		removed, err := b.svc.Remove(ctx, busy.ID)
		assert.False(t, removed)
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.ErrorIs(t, err, models.ErrCategoryInUse)
		assert.Equal(t, 1, postsCount(t, b.svc, busy.ID))

		removed, err = b.svc.Remove(ctx, drafts.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = b.svc.Remove(ctx, parent.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		orphan, err := b.svc.FindOne(ctx, child.ID, FindOneOptions{})
		require.NoError(t, err)
		assert.Nil(t, orphan.ParentID)

		gone, err := b.svc.FindOne(ctx, parent.ID, FindOneOptions{})
		require.NoError(t, err)
		assert.Nil(t, gone)

		removed, err = b.svc.Remove(ctx, parent.ID)
		assert.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("Remove cascades when configured", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RemovePolicy = RemoveCascade
		b := newBackend(t, cfg)

		x := createCategory(t, b.svc, "X")
		y := createCategory(t, b.svc, "Y")
		post := publishedPost(t, b.svc, "Shared")
		for _, id := range []int64{x.ID, y.ID} {
			_, err := b.svc.AttachPost(ctx, post.ID, id)
			require.NoError(t, err)
		}

		removed, err := b.svc.Remove(ctx, x.ID)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, 1, postsCount(t, b.svc, y.ID))

		detached, err := b.svc.DetachPost(ctx, post.ID, x.ID)
		require.NoError(t, err)
		assert.False(t, detached)
	})

	t.Run("Counters follow published memberships", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		x := createCategory(t, b.svc, "X")
		post := savePost(t, b.svc, "Story", models.PostStatusDraft, nil)

		created, err := b.svc.AttachPost(ctx, post.ID, x.ID)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, 0, postsCount(t, b.svc, x.ID))

		at := testEpoch
		post.Status, post.PublishedAt = models.PostStatusPublished, &at
		require.NoError(t, b.svc.SavePost(ctx, post))
		assert.Equal(t, 1, postsCount(t, b.svc, x.ID))

		created, err = b.svc.AttachPost(ctx, post.ID, x.ID)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, 1, postsCount(t, b.svc, x.ID))

		post.Title = "Story, revised"
		require.NoError(t, b.svc.SavePost(ctx, post))
		assert.Equal(t, 1, postsCount(t, b.svc, x.ID))

		post.Status = models.PostStatusArchived
		require.NoError(t, b.svc.SavePost(ctx, post))
		assert.Equal(t, 0, postsCount(t, b.svc, x.ID))

		post.Status = models.PostStatusPublished
		require.NoError(t, b.svc.SavePost(ctx, post))
		assert.Equal(t, 1, postsCount(t, b.svc, x.ID))

		removed, err := b.svc.DetachPost(ctx, post.ID, x.ID)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, 0, postsCount(t, b.svc, x.ID))

		removed, err = b.svc.DetachPost(ctx, post.ID, x.ID)
		require.NoError(t, err)
		assert.False(t, removed)
		assert.Equal(t, 0, postsCount(t, b.svc, x.ID))
	})

	t.Run("Counter bump touches updated_at", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		x := createCategory(t, b.svc, "X")
		post := publishedPost(t, b.svc, "Fresh")

		_, err := b.svc.AttachPost(ctx, post.ID, x.ID)
		require.NoError(t, err)

		found, err := b.svc.FindOne(ctx, x.ID, FindOneOptions{})
		require.NoError(t, err)
		assert.True(t, found.UpdatedAt.After(x.UpdatedAt))
	})

	t.Run("Deleting a post releases its memberships", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		x := createCategory(t, b.svc, "X")
		y := createCategory(t, b.svc, "Y")
		post := publishedPost(t, b.svc, "Gone soon")
		for _, id := range []int64{x.ID, y.ID} {
			_, err := b.svc.AttachPost(ctx, post.ID, id)
			require.NoError(t, err)
		}

		require.NoError(t, b.svc.DeletePost(ctx, post.ID))
		assert.Equal(t, 0, postsCount(t, b.svc, x.ID))
		assert.Equal(t, 0, postsCount(t, b.svc, y.ID))

		err := b.svc.DeletePost(ctx, post.ID)
		assert.ErrorIs(t, err, models.ErrRecordNotFound)
		assert.ErrorIs(t, err, models.ErrPostNotFound)
	})

	t.Run("Membership errors", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		x := createCategory(t, b.svc, "X")
		post := publishedPost(t, b.svc, "Lonely")

		_, err := b.svc.AttachPost(ctx, post.ID+100, x.ID)
		assert.ErrorIs(t, err, models.ErrRecordNotFound)
		assert.ErrorIs(t, err, models.ErrPostNotFound)

		_, err = b.svc.AttachPost(ctx, post.ID, x.ID+100)
		assert.ErrorIs(t, err, models.ErrRecordNotFound)
		assert.ErrorIs(t, err, models.ErrCategoryNotFound)

		_, err = b.svc.DetachPost(ctx, post.ID+100, x.ID)
		assert.ErrorIs(t, err, models.ErrPostNotFound)

		_, err = b.svc.AttachPost(ctx, 0, x.ID)
		assert.ErrorIs(t, err, models.ErrValidation)

		err = b.svc.SavePost(ctx, &models.Post{Title: "Bad", Status: "live"})
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.ErrorIs(t, err, models.ErrInvalidPostState)

		assert.Equal(t, 0, postsCount(t, b.svc, x.ID))
	})

	t.Run("FindOne includes published posts newest first", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		x := createCategory(t, b.svc, "X")

		older := testEpoch.Add(-3 * time.Hour)
		newer := testEpoch.Add(-time.Hour)
		p1 := savePost(t, b.svc, "Oldest", models.PostStatusPublished, &older)
		p2 := savePost(t, b.svc, "Newer", models.PostStatusPublished, &newer)
		p3 := savePost(t, b.svc, "Newer twin", models.PostStatusPublished, &newer)
		draft := savePost(t, b.svc, "Unfinished", models.PostStatusDraft, nil)
		for _, p := range []*models.Post{p1, p2, p3, draft} {
			_, err := b.svc.AttachPost(ctx, p.ID, x.ID)
			require.NoError(t, err)
		}

		found, err := b.svc.FindOne(ctx, x.ID, FindOneOptions{IncludePosts: true})
		require.NoError(t, err)
		require.Len(t, found.Posts, 3)
		assert.Equal(t, []int64{p3.ID, p2.ID, p1.ID}, []int64{found.Posts[0].ID, found.Posts[1].ID, found.Posts[2].ID})
		assert.Equal(t, 3, found.PostsCount)

		plain, err := b.svc.FindOne(ctx, x.ID, FindOneOptions{})
		require.NoError(t, err)
		assert.Empty(t, plain.Posts)
	})

	t.Run("Hierarchy", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())

		a := createCategory(t, b.svc, "A", withOrder(2))
		bb := createCategory(t, b.svc, "B", withOrder(1))
		a1 := createCategory(t, b.svc, "A1", withOrder(1), withParent(a.ID))
		a2 := createCategory(t, b.svc, "A2", withOrder(0), withParent(a.ID))
		hidden := createCategory(t, b.svc, "Hidden", inactive())
		surfaced := createCategory(t, b.svc, "Surfaced", withOrder(5), withParent(hidden.ID))
		createCategory(t, b.svc, "Hidden leaf", inactive(), withParent(bb.ID))

		tree, err := b.svc.Hierarchy(ctx)
		require.NoError(t, err)
		assert.Empty(t, tree.Unreachable)
		assert.Equal(t, 5, tree.Len())

		require.Len(t, tree.Roots, 3)
		assert.Equal(t, []int64{bb.ID, a.ID, surfaced.ID}, []int64{
			tree.Roots[0].Category.ID, tree.Roots[1].Category.ID, tree.Roots[2].Category.ID,
		})
		assert.Empty(t, tree.Roots[0].Children)

		children := tree.Roots[1].Children
		require.Len(t, children, 2)
		assert.Equal(t, a2.ID, children[0].Category.ID)
		assert.Equal(t, a1.ID, children[1].Category.ID)
	})

	t.Run("Random membership sequences keep counters exact", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		rng := rand.New(rand.NewSource(7))

		var cats []int64
		for _, name := range []string{"North", "South", "East", "West"} {
			cats = append(cats, createCategory(t, b.svc, name).ID)
		}

		statuses := []models.PostStatus{
			models.PostStatusDraft, models.PostStatusInReview, models.PostStatusPublished,
			models.PostStatusRejected, models.PostStatusArchived,
		}
		posts := map[int64]*models.Post{}
		members := map[models.PostCategory]bool{}
		newPost := func() {
			p := savePost(t, b.svc, "Post", statuses[rng.Intn(len(statuses))], nil)
			posts[p.ID] = p
		}
		for i := 0; i < 6; i++ {
			newPost()
		}
		pick := func() *models.Post {
			ids := make([]int64, 0, len(posts))
			for id := range posts {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			return posts[ids[rng.Intn(len(ids))]]
		}

		for step := 0; step < 150; step++ {
			p := pick()
			catID := cats[rng.Intn(len(cats))]
			key := models.PostCategory{PostID: p.ID, CategoriaID: catID}

			switch op := rng.Intn(10); {
			case op < 4:
				created, err := b.svc.AttachPost(ctx, p.ID, catID)
				require.NoError(t, err)
				assert.Equal(t, !members[key], created)
				members[key] = true
			case op < 7:
				removed, err := b.svc.DetachPost(ctx, p.ID, catID)
				require.NoError(t, err)
				assert.Equal(t, members[key], removed)
				delete(members, key)
			case op < 9:
				p.Status = statuses[rng.Intn(len(statuses))]
				require.NoError(t, b.svc.SavePost(ctx, p))
			default:
				require.NoError(t, b.svc.DeletePost(ctx, p.ID))
				delete(posts, p.ID)
				for m := range members {
					if m.PostID == p.ID {
						delete(members, m)
					}
				}
				newPost()
			}
		}

		for _, catID := range cats {
			expected := 0
			for m := range members {
				if m.CategoriaID == catID && posts[m.PostID].IsPublished() {
					expected++
				}
			}
			assert.Equal(t, expected, postsCount(t, b.svc, catID), "category %d", catID)
		}

		drift, err := b.svc.RecountPosts(ctx)
		require.NoError(t, err)
		assert.Empty(t, drift)
	})

	t.Run("Concurrent attaches", func(t *testing.T) {
		b := newBackend(t, DefaultConfig())
		x := createCategory(t, b.svc, "Crowded")

		var posts []*models.Post
		for i := 0; i < 20; i++ {
			posts = append(posts, publishedPost(t, b.svc, "Concurrent"))
		}

		var g errgroup.Group
		for _, p := range posts {
			for i := 0; i < 2; i++ {
				postID := p.ID
				g.Go(func() error {
					_, err := b.svc.AttachPost(ctx, postID, x.ID)
					return err
				})
			}
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, 20, postsCount(t, b.svc, x.ID))

		var detach errgroup.Group
		for _, p := range posts[:5] {
			postID := p.ID
			detach.Go(func() error {
				_, err := b.svc.DetachPost(ctx, postID, x.ID)
				return err
			})
		}
		require.NoError(t, detach.Wait())
		assert.Equal(t, 15, postsCount(t, b.svc, x.ID))
	})
}
