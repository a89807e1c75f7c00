package categories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/joefazee/categorias/internal/logger"
	"github.com/joefazee/categorias/internal/validator"
	"github.com/joefazee/categorias/models"
)

const (
	opCreate     = "categorias.create"
	opUpdate     = "categorias.update"
	opRemove     = "categorias.remove"
	opAttach     = "categorias.attach_post"
	opDetach     = "categorias.detach_post"
	opSavePost   = "categorias.save_post"
	opDeletePost = "categorias.delete_post"
)

var errPostsCountDrift = errors.New("posts_count drifted from the membership relation")

// service implements the Service interface
type service struct {
	repo   Repository
	config Config
	now    func() time.Time
	logger logger.Logger
}

// NewService creates a new category service
func NewService(repo Repository, config Config, opts ...Option) Service {
	o := buildOptions(opts)
	if config.SlugMaxAttempts <= 0 {
		config.SlugMaxAttempts = DefaultSlugMaxAttempts
	}
	if config.RemovePolicy == "" {
		config.RemovePolicy = RemoveRefuse
	}
	return &service{
		repo:   repo,
		config: config,
		now:    o.now,
		logger: o.logger,
	}
}

// Create validates and stores a new category, deriving its slug when none is given
func (s *service) Create(ctx context.Context, req CreateCategoryRequest) (*models.Category, error) {
	v := validator.New()
	req.validate(v)
	if !v.Valid() {
		return nil, models.NewValidationError(opCreate, v.Errors)
	}
	if req.ParentID != nil {
		if err := s.checkParent(ctx, opCreate, 0, *req.ParentID); err != nil {
			return nil, err
		}
	}

	now := stamp(s.now())
	category := &models.Category{
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Color:        strings.TrimSpace(req.Color),
		Icon:         strings.TrimSpace(req.Icon),
		ParentID:     copyID(req.ParentID),
		IsActive:     true,
		DisplayOrder: req.DisplayOrder,
		CreatedBy:    copyID(req.CreatedBy),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	insert := func() error { return s.repo.Insert(ctx, category) }

	var err error
	if req.Slug != "" {
		category.Slug = normalizeSlug(req.Slug)
		err = s.write(opCreate, category, insert)
	} else {
		err = s.claimSlug(ctx, opCreate, category, "", insert)
	}
	if err != nil {
		return nil, s.writeError(opCreate, err)
	}

	s.logger.Debug("category created", map[string]interface{}{
		"id":   category.ID,
		"slug": category.Slug,
	})
	return category, nil
}

// FindAll returns one page of categories
func (s *service) FindAll(ctx context.Context, opts FindAllOptions) (*CategoryPage, error) {
	q := opts.Normalize()
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &CategoryPage{
		Items: items,
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
		Pages: q.Pages(total),
	}, nil
}

// FindOne returns a category by ID, or nil when it does not exist
func (s *service) FindOne(ctx context.Context, id int64, opts FindOneOptions) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if opts.IncludePosts {
		posts, err := s.repo.PublishedPosts(ctx, id)
		if err != nil {
			return nil, err
		}
		category.Posts = posts
	}
	return category, nil
}

// Update applies a partial update, or returns nil when the category does not exist
func (s *service) Update(ctx context.Context, id int64, req UpdateCategoryRequest) (*models.Category, error) {
	v := validator.New()
	req.validate(v)
	if !v.Valid() {
		return nil, models.NewValidationError(opUpdate, v.Errors)
	}

	category, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	currentSlug := category.Slug
	renamed := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		renamed = name != category.Name
		category.Name = name
	}
	if req.Description != nil {
		category.Description = strings.TrimSpace(*req.Description)
	}
	if req.Color != nil {
		category.Color = strings.TrimSpace(*req.Color)
	}
	if req.Icon != nil {
		category.Icon = strings.TrimSpace(*req.Icon)
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
	if req.DisplayOrder != nil {
		category.DisplayOrder = *req.DisplayOrder
	}
	if req.ParentID != nil {
		if *req.ParentID == 0 {
			category.ParentID = nil
		} else {
			if err := s.checkParent(ctx, opUpdate, id, *req.ParentID); err != nil {
				return nil, err
			}
			category.ParentID = copyID(req.ParentID)
		}
	}
	category.UpdatedAt = stamp(s.now())

	save := func() error { return s.repo.Save(ctx, category) }

	switch {
	case req.Slug != nil:
		category.Slug = normalizeSlug(*req.Slug)
		err = s.write(opUpdate, category, save)
	case renamed:
		err = s.claimSlug(ctx, opUpdate, category, currentSlug, save)
	default:
		err = s.write(opUpdate, category, save)
	}
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.writeError(opUpdate, err)
	}

	s.logger.Debug("category updated", map[string]interface{}{
		"id":   category.ID,
		"slug": category.Slug,
	})
	return category, nil
}

// Remove deletes a category. It reports false when the id is unknown.
func (s *service) Remove(ctx context.Context, id int64) (bool, error) {
	err := s.repo.Delete(ctx, id, s.config.RemovePolicy)
	switch {
	case err == nil:
		s.logger.Debug("category removed", map[string]interface{}{"id": id})
		return true, nil
	case errors.Is(err, models.ErrRecordNotFound):
		return false, nil
	case errors.Is(err, models.ErrCategoryInUse):
		return false, models.NewConflictError(opRemove, err)
	}
	return false, err
}

// Hierarchy assembles the active categories into a tree
func (s *service) Hierarchy(ctx context.Context) (*Tree, error) {
	active := true
	var all []models.Category
	for page := 1; ; page++ {
		q := FindAllOptions{Page: page, Limit: MaxLimit, IsActive: &active}.Normalize()
		items, total, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < q.Limit || int64(len(all)) >= total {
			break
		}
	}

	tree := BuildTree(all)
	if len(tree.Unreachable) > 0 {
		s.logger.Warn("categories unreachable from any root", map[string]interface{}{
			"ids": tree.Unreachable,
		})
	}
	return tree, nil
}

// RecountPosts repairs drifted counters and reports them
func (s *service) RecountPosts(ctx context.Context) ([]CountDrift, error) {
	drift, err := s.repo.RecountPosts(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drift {
		s.logger.Error(errPostsCountDrift, map[string]interface{}{
			"categoria_id": d.CategoryID,
			"stored":       d.Stored,
			"actual":       d.Actual,
		})
	}
	return drift, nil
}

// AttachPost links a post to a category
func (s *service) AttachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	if err := checkMembershipIDs(opAttach, postID, categoryID); err != nil {
		return false, err
	}
	created, err := s.repo.AttachPost(ctx, postID, categoryID)
	if err != nil {
		s.logMembershipError(err, opAttach, postID, categoryID)
		return false, err
	}
	return created, nil
}

// DetachPost unlinks a post from a category
func (s *service) DetachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	if err := checkMembershipIDs(opDetach, postID, categoryID); err != nil {
		return false, err
	}
	removed, err := s.repo.DetachPost(ctx, postID, categoryID)
	if err != nil {
		s.logMembershipError(err, opDetach, postID, categoryID)
		return false, err
	}
	return removed, nil
}

// SavePost creates or updates a content item
func (s *service) SavePost(ctx context.Context, post *models.Post) error {
	if post == nil {
		return models.NewValidationError(opSavePost, map[string]string{"post": "must be provided"})
	}
	if post.ID < 0 {
		return models.NewValidationError(opSavePost, map[string]string{"id": "must be a positive id"})
	}
	if err := post.Validate(); err != nil {
		return models.NewValidationCause(opSavePost, err)
	}
	if err := s.repo.SavePost(ctx, post); err != nil {
		s.logMembershipError(err, opSavePost, post.ID, 0)
		return err
	}
	return nil
}

// DeletePost removes a content item and its memberships
func (s *service) DeletePost(ctx context.Context, postID int64) error {
	if postID <= 0 {
		return models.NewValidationError(opDeletePost, map[string]string{"post_id": "must be a positive id"})
	}
	if err := s.repo.DeletePost(ctx, postID); err != nil {
		s.logMembershipError(err, opDeletePost, postID, 0)
		return err
	}
	return nil
}

// checkParent rejects a parent that does not exist or whose ancestor chain
// contains id.
func (s *service) checkParent(ctx context.Context, op string, id, parentID int64) error {
	seen := make(map[int64]bool)
	for cur, depth := parentID, 0; ; depth++ {
		if cur == id {
			return models.NewValidationCause(op, models.ErrCategoryCycle)
		}
		if seen[cur] {
			return nil
		}
		seen[cur] = true

		ancestor, err := s.repo.GetByID(ctx, cur)
		if errors.Is(err, models.ErrRecordNotFound) {
			if depth == 0 {
				return models.NewValidationError(op, map[string]string{"parent_id": "does not exist"})
			}
			return nil
		}
		if err != nil {
			return err
		}
		if ancestor.ParentID == nil {
			return nil
		}
		cur = *ancestor.ParentID
	}
}

// write checks the final record shape before handing it to the repository.
func (s *service) write(op string, category *models.Category, fn func() error) error {
	if err := category.Validate(); err != nil {
		return models.NewValidationCause(op, err)
	}
	return fn()
}

// claimSlug derives a slug from the name and retries with the next free
// suffix until fn stops reporting a collision. own is the slug the category
// already holds, which never counts as taken.
func (s *service) claimSlug(ctx context.Context, op string, category *models.Category, own string, fn func() error) error {
	base := Slugify(category.Name)
	attempts := s.config.SlugMaxAttempts
	for try := 0; try < attempts; try++ {
		used, err := s.repo.SlugsWithPrefix(ctx, base)
		if err != nil {
			return err
		}
		taken := make(map[string]struct{}, len(used))
		for _, slug := range used {
			if slug != own {
				taken[slug] = struct{}{}
			}
		}

		slug, ok := firstFreeSlug(base, attempts, taken)
		if !ok {
			break
		}
		category.Slug = slug

		err = s.write(op, category, fn)
		if !errors.Is(err, models.ErrSlugTaken) {
			return err
		}
	}
	return models.NewConflictError(op, models.ErrSlugSpaceExhausted)
}

// writeError maps repository sentinels onto error kinds.
func (s *service) writeError(op string, err error) error {
	var domainErr *models.Error
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, models.ErrSlugTaken):
		return models.NewConflictError(op, err)
	case errors.Is(err, models.ErrInvalidParentID):
		return models.NewValidationCause(op, err)
	}
	return err
}

func (s *service) logMembershipError(err error, op string, postID, categoryID int64) {
	if !errors.Is(err, models.ErrConsistency) {
		return
	}
	fields := map[string]interface{}{"op": op, "post_id": postID}
	if categoryID != 0 {
		fields["categoria_id"] = categoryID
	}
	s.logger.Error(err, fields)
}

func checkMembershipIDs(op string, postID, categoryID int64) error {
	v := validator.New()
	v.Check(postID > 0, "post_id", "must be a positive id")
	v.Check(categoryID > 0, "categoria_id", "must be a positive id")
	if !v.Valid() {
		return models.NewValidationError(op, v.Errors)
	}
	return nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}
