package categories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joefazee/categorias/models"
)

// memoryRepository implements Repository in process. Writers hold the write
// lock for the whole operation and record undo entries, so a failing step
// leaves no partial change behind.
type memoryRepository struct {
	mu          sync.RWMutex
	categories  map[int64]*models.Category
	slugs       map[string]int64
	posts       map[int64]*models.Post
	memberships map[models.PostCategory]struct{}

	nextCategoryID int64
	nextPostID     int64

	now     func() time.Time
	counter func(tx *memoryTx) Counter
}

// NewMemoryRepository creates an empty in-process category repository
func NewMemoryRepository(opts ...Option) Repository {
	o := buildOptions(opts)
	return &memoryRepository{
		categories:  make(map[int64]*models.Category),
		slugs:       make(map[string]int64),
		posts:       make(map[int64]*models.Post),
		memberships: make(map[models.PostCategory]struct{}),
		now:         o.now,
		counter: func(tx *memoryTx) Counter {
			return &memoryCounter{tx: tx}
		},
	}
}

type memoryTx struct {
	store *memoryRepository
	undo  []func()
}

func (tx *memoryTx) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

// atomically runs fn under the write lock and replays the undo log in reverse
// when fn fails.
func (r *memoryRepository) atomically(fn func(tx *memoryTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{store: r}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (r *memoryRepository) exists(id int64) bool {
	_, ok := r.categories[id]
	return ok
}

// Insert stores a new category
func (r *memoryRepository) Insert(_ context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.slugs[category.Slug]; taken {
		return models.ErrSlugTaken
	}
	if category.ParentID != nil && !r.exists(*category.ParentID) {
		return models.ErrInvalidParentID
	}

	r.nextCategoryID++
	stored := category.Clone()
	stored.ID = r.nextCategoryID
	stored.Posts = nil
	r.categories[stored.ID] = stored
	r.slugs[stored.Slug] = stored.ID

	category.ID = stored.ID
	return nil
}

// Save writes the mutable columns of an existing category
func (r *memoryRepository) Save(_ context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.categories[category.ID]
	if !ok {
		return models.ErrRecordNotFound
	}
	if owner, taken := r.slugs[category.Slug]; taken && owner != category.ID {
		return models.ErrSlugTaken
	}
	if category.ParentID != nil && !r.exists(*category.ParentID) {
		return models.ErrInvalidParentID
	}

	delete(r.slugs, stored.Slug)
	next := category.Clone()
	stored.Name = next.Name
	stored.Description = next.Description
	stored.Slug = next.Slug
	stored.Color = next.Color
	stored.Icon = next.Icon
	stored.ParentID = next.ParentID
	stored.IsActive = next.IsActive
	stored.DisplayOrder = next.DisplayOrder
	stored.UpdatedAt = next.UpdatedAt
	r.slugs[stored.Slug] = stored.ID

	*category = *stored.Clone()
	return nil
}

// GetByID returns a copy of a category
func (r *memoryRepository) GetByID(_ context.Context, id int64) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.categories[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return stored.Clone(), nil
}

// List filters, sorts and pages the store
func (r *memoryRepository) List(ctx context.Context, q Query) ([]models.Category, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	matched := make([]*models.Category, 0, len(r.categories))
	for _, c := range r.categories {
		if q.matches(c, r.exists) {
			matched = append(matched, c.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return q.less(matched[i], matched[j])
	})

	total := int64(len(matched))
	items := make([]models.Category, 0, q.Limit)
	for i := q.Offset(); i < len(matched) && len(items) < q.Limit; i++ {
		items = append(items, *matched[i])
	}
	return items, total, nil
}

// SlugsWithPrefix returns base and base-N slugs in use
func (r *memoryRepository) SlugsWithPrefix(_ context.Context, base string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for slug := range r.slugs {
		if isSuffixOf(slug, base) {
			out = append(out, slug)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Delete removes a category, orphaning its children
func (r *memoryRepository) Delete(_ context.Context, id int64, policy RemovePolicy) error {
	return r.atomically(func(tx *memoryTx) error {
		stored, ok := r.categories[id]
		if !ok {
			return models.ErrRecordNotFound
		}
		if stored.PostsCount > 0 && policy != RemoveCascade {
			return models.ErrCategoryInUse
		}

		for m := range r.memberships {
			if m.CategoriaID == id {
				delete(r.memberships, m)
			}
		}
		for _, c := range r.categories {
			if c.ParentID != nil && *c.ParentID == id {
				c.ParentID = nil
			}
		}
		delete(r.slugs, stored.Slug)
		delete(r.categories, id)
		return nil
	})
}

// PublishedPosts lists published posts of a category, newest first
func (r *memoryRepository) PublishedPosts(_ context.Context, categoryID int64) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := []models.Post{}
	for m := range r.memberships {
		if m.CategoriaID != categoryID {
			continue
		}
		if p, ok := r.posts[m.PostID]; ok && p.IsPublished() {
			posts = append(posts, *clonePost(p))
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a == nil && b != nil:
			return false
		case a != nil && b == nil:
			return true
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

// AttachPost creates a membership and counts it when the post is published
func (r *memoryRepository) AttachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	var created bool
	err := r.atomically(func(tx *memoryTx) error {
		post, ok := r.posts[postID]
		if !ok {
			return models.NewNotFoundError(opAttach, models.ErrPostNotFound)
		}
		if !r.exists(categoryID) {
			return models.NewNotFoundError(opAttach, models.ErrCategoryNotFound)
		}

		key := models.PostCategory{PostID: postID, CategoriaID: categoryID}
		if _, dup := r.memberships[key]; dup {
			return nil
		}
		r.memberships[key] = struct{}{}
		tx.onRollback(func() { delete(r.memberships, key) })
		created = true

		if post.IsPublished() {
			return r.counter(tx).OnMembershipAdded(ctx, categoryID)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// DetachPost removes a membership and uncounts it when the post is published
func (r *memoryRepository) DetachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	var removed bool
	err := r.atomically(func(tx *memoryTx) error {
		post, ok := r.posts[postID]
		if !ok {
			return models.NewNotFoundError(opDetach, models.ErrPostNotFound)
		}

		key := models.PostCategory{PostID: postID, CategoriaID: categoryID}
		if _, ok := r.memberships[key]; !ok {
			return nil
		}
		delete(r.memberships, key)
		tx.onRollback(func() { r.memberships[key] = struct{}{} })
		removed = true

		if post.IsPublished() {
			return r.counter(tx).OnMembershipRemoved(ctx, categoryID)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// SavePost creates or updates a content item
func (r *memoryRepository) SavePost(ctx context.Context, post *models.Post) error {
	return r.atomically(func(tx *memoryTx) error {
		now := stamp(r.now())

		existing, ok := r.posts[post.ID]
		if post.ID == 0 || !ok {
			if post.ID == 0 {
				r.nextPostID++
				post.ID = r.nextPostID
			} else if post.ID > r.nextPostID {
				r.nextPostID = post.ID
			}
			post.CreatedAt, post.UpdatedAt = now, now
			r.posts[post.ID] = clonePost(post)
			return nil
		}

		previous := clonePost(existing)
		tx.onRollback(func() { r.posts[previous.ID] = previous })

		post.CreatedAt, post.UpdatedAt = existing.CreatedAt, now
		r.posts[post.ID] = clonePost(post)

		if previous.IsPublished() == post.IsPublished() {
			return nil
		}
		counter := r.counter(tx)
		for _, categoryID := range r.categoriesOf(post.ID) {
			var err error
			if post.IsPublished() {
				err = counter.OnMembershipAdded(ctx, categoryID)
			} else {
				err = counter.OnMembershipRemoved(ctx, categoryID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePost removes a content item and its memberships
func (r *memoryRepository) DeletePost(ctx context.Context, postID int64) error {
	return r.atomically(func(tx *memoryTx) error {
		post, ok := r.posts[postID]
		if !ok {
			return models.NewNotFoundError(opDeletePost, models.ErrPostNotFound)
		}

		counter := r.counter(tx)
		for _, categoryID := range r.categoriesOf(postID) {
			key := models.PostCategory{PostID: postID, CategoriaID: categoryID}
			delete(r.memberships, key)
			tx.onRollback(func() { r.memberships[key] = struct{}{} })

			if post.IsPublished() {
				if err := counter.OnMembershipRemoved(ctx, categoryID); err != nil {
					return err
				}
			}
		}

		delete(r.posts, postID)
		tx.onRollback(func() { r.posts[postID] = post })
		return nil
	})
}

// RecountPosts rebuilds every counter from the membership relation
func (r *memoryRepository) RecountPosts(_ context.Context) ([]CountDrift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actual := make(map[int64]int, len(r.categories))
	for m := range r.memberships {
		if p, ok := r.posts[m.PostID]; ok && p.IsPublished() {
			actual[m.CategoriaID]++
		}
	}

	now := stamp(r.now())
	drift := []CountDrift{}
	for id, c := range r.categories {
		if c.PostsCount == actual[id] {
			continue
		}
		drift = append(drift, CountDrift{CategoryID: id, Stored: c.PostsCount, Actual: actual[id]})
		c.PostsCount = actual[id]
		c.UpdatedAt = now
	}
	sort.Slice(drift, func(i, j int) bool {
		return drift[i].CategoryID < drift[j].CategoryID
	})
	return drift, nil
}

// categoriesOf returns the categories a post belongs to, in id order.
func (r *memoryRepository) categoriesOf(postID int64) []int64 {
	var ids []int64
	for m := range r.memberships {
		if m.PostID == postID {
			ids = append(ids, m.CategoriaID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func clonePost(p *models.Post) *models.Post {
	out := *p
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		out.PublishedAt = &t
	}
	return &out
}
