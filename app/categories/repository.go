package categories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/joefazee/categorias/models"
)

// repository implements the Repository interface using GORM
type repository struct {
	db      *gorm.DB
	now     func() time.Time
	counter func(tx *gorm.DB) Counter
}

// NewRepository creates a new category repository
func NewRepository(db *gorm.DB, opts ...Option) Repository {
	o := buildOptions(opts)
	r := &repository{
		db:  db,
		now: o.now,
	}
	r.counter = func(tx *gorm.DB) Counter {
		return newGormCounter(tx, r.now)
	}
	return r
}

// translate maps driver errors onto the repository's sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.ErrSlugTaken
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return models.ErrInvalidParentID
	}
	return err
}

// Insert creates a new category
func (r *repository) Insert(ctx context.Context, category *models.Category) error {
	return translate(r.db.WithContext(ctx).Create(category).Error)
}

// Save updates the mutable columns of a category and reloads it
func (r *repository) Save(ctx context.Context, category *models.Category) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Category{}).
			Where("id = ?", category.ID).
			Updates(map[string]interface{}{
				"nombre":        category.Name,
				"descripcion":   category.Description,
				"slug":          category.Slug,
				"color":         category.Color,
				"icono":         category.Icon,
				"parent_id":     category.ParentID,
				"is_active":     category.IsActive,
				"display_order": category.DisplayOrder,
				"updated_at":    category.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", category.ID).First(category).Error
	})
	return translate(err)
}

// GetByID returns a category by ID
func (r *repository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&category).Error
	if err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

// filtered builds the WHERE clause shared by the count and the page query.
func (r *repository) filtered(ctx context.Context, q Query) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Category{})

	if q.Search != "" {
		// Needle and columns fold under the same database locale.
		pattern := "%" + escapeLike(q.Search) + "%"
		query = query.Where("(LOWER(categorias.nombre) LIKE LOWER(?) OR LOWER(categorias.descripcion) LIKE LOWER(?))", pattern, pattern)
	}
	if q.Slug != "" {
		query = query.Where("categorias.slug = ?", q.Slug)
	}
	if q.Color != "" {
		query = query.Where("categorias.color = ?", q.Color)
	}
	if q.ParentID != nil {
		if *q.ParentID == 0 {
			query = query.Where("(categorias.parent_id IS NULL OR NOT EXISTS (SELECT 1 FROM categorias parent WHERE parent.id = categorias.parent_id))")
		} else {
			query = query.Where("categorias.parent_id = ?", *q.ParentID)
		}
	}
	if q.IsActive != nil {
		query = query.Where("categorias.is_active = ?", *q.IsActive)
	}
	return query
}

// List returns a filtered, sorted page and the total number of matches
func (r *repository) List(ctx context.Context, q Query) ([]models.Category, int64, error) {
	var total int64
	if err := r.filtered(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	categories := []models.Category{}
	err := r.filtered(ctx, q).
		Order(q.orderClause()).
		Offset(q.Offset()).
		Limit(q.Limit).
		Find(&categories).Error
	if err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

// SlugsWithPrefix returns base and base-N slugs in use
func (r *repository) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	var candidates []string
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("slug = ? OR slug LIKE ?", base, escapeLike(base)+"-%").
		Order(`slug COLLATE "C"`).
		Pluck("slug", &candidates).Error
	if err != nil {
		return nil, err
	}

	slugs := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if isSuffixOf(s, base) {
			slugs = append(slugs, s)
		}
	}
	return slugs, nil
}

// Delete deletes a category by ID. Children are re-rooted and memberships
// dropped by the foreign keys.
func (r *repository) Delete(ctx context.Context, id int64, policy RemovePolicy) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&category).Error
		if err != nil {
			return err
		}
		if category.PostsCount > 0 && policy != RemoveCascade {
			return models.ErrCategoryInUse
		}
		return tx.Delete(&models.Category{}, id).Error
	})
	return translate(err)
}

// PublishedPosts lists the published posts of a category, newest first
func (r *repository) PublishedPosts(ctx context.Context, categoryID int64) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Joins("JOIN posts_categorias pc ON pc.post_id = posts.id").
		Where("pc.categoria_id = ? AND posts.estado = ?", categoryID, models.PostStatusPublished).
		Order("posts.fecha_publicacion DESC NULLS LAST, posts.id DESC").
		Find(&posts).Error
	return posts, err
}

// lockPost loads a post FOR UPDATE so membership and status changes on the
// same post serialise.
// advancePostSequence moves the posts id sequence past an explicitly chosen
// id so later generated ids never collide with it. It never moves backwards.
func advancePostSequence(tx *gorm.DB, id int64) error {
	return tx.Exec(`
		SELECT setval(s.seq, ?)
		FROM (SELECT pg_get_serial_sequence('posts', 'id') AS seq) s
		WHERE ? > COALESCE(pg_sequence_last_value(s.seq::regclass), 0)`, id, id).Error
}

func lockPost(tx *gorm.DB, op string, postID int64) (*models.Post, error) {
	var post models.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", postID).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError(op, models.ErrPostNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// AttachPost creates a membership and counts it when the post is published
func (r *repository) AttachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, opAttach, postID)
		if err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostCategory{PostID: postID, CategoriaID: categoryID})
		if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
			return models.NewNotFoundError(opAttach, models.ErrCategoryNotFound)
		}
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1

		if created && post.IsPublished() {
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
func (r *repository) DetachPost(ctx context.Context, postID, categoryID int64) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, opDetach, postID)
		if err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND categoria_id = ?", postID, categoryID).
			Delete(&models.PostCategory{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected == 1

		if removed && post.IsPublished() {
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
func (r *repository) SavePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := stamp(r.now())

		var existing *models.Post
		if post.ID != 0 {
			var err error
			existing, err = lockPost(tx, opSavePost, post.ID)
			if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
				return err
			}
		}
		if existing == nil {
			post.CreatedAt, post.UpdatedAt = now, now
			if err := tx.Create(post).Error; err != nil {
				return err
			}
			return advancePostSequence(tx, post.ID)
		}

		post.CreatedAt, post.UpdatedAt = existing.CreatedAt, now
		err := tx.Model(&models.Post{}).
			Where("id = ?", post.ID).
			Updates(map[string]interface{}{
				"titulo":            post.Title,
				"slug":              post.Slug,
				"estado":            post.Status,
				"fecha_publicacion": post.PublishedAt,
				"updated_at":        post.UpdatedAt,
			}).Error
		if err != nil {
			return err
		}

		if existing.IsPublished() == post.IsPublished() {
			return nil
		}
		categoryIDs, err := categoriesOf(tx, post.ID)
		if err != nil {
			return err
		}
		counter := r.counter(tx)
		for _, categoryID := range categoryIDs {
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

// DeletePost removes a content item; memberships go with it through the FK
func (r *repository) DeletePost(ctx context.Context, postID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := lockPost(tx, opDeletePost, postID)
		if err != nil {
			return err
		}

		if post.IsPublished() {
			categoryIDs, err := categoriesOf(tx, postID)
			if err != nil {
				return err
			}
			counter := r.counter(tx)
			for _, categoryID := range categoryIDs {
				if err := counter.OnMembershipRemoved(ctx, categoryID); err != nil {
					return err
				}
			}
		}
		return tx.Delete(&models.Post{}, postID).Error
	})
}

// categoriesOf returns the categories a post belongs to, in id order so
// counter rows are always locked in the same sequence.
func categoriesOf(tx *gorm.DB, postID int64) ([]int64, error) {
	var ids []int64
	err := tx.Model(&models.PostCategory{}).
		Where("post_id = ?", postID).
		Order("categoria_id ASC").
		Pluck("categoria_id", &ids).Error
	return ids, err
}

type countRow struct {
	ID     int64
	Stored int
	Actual int
}

// recountAttempts bounds how often a recount aborted by a concurrent counter
// update is retried.
const recountAttempts = 3

// sqlStateSerializationFailure is the SQLSTATE Postgres reports when a
// REPEATABLE READ transaction loses a write conflict.
const sqlStateSerializationFailure = "40001"

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateSerializationFailure
}

// RecountPosts rebuilds every counter from the membership relation. It runs
// at REPEATABLE READ so a concurrent adjustment aborts the repair instead of
// being overwritten; an aborted repair is retried on a fresh snapshot.
func (r *repository) RecountPosts(ctx context.Context) ([]CountDrift, error) {
	var err error
	for attempt := 0; attempt < recountAttempts; attempt++ {
		var drift []CountDrift
		drift, err = r.recountOnce(ctx)
		if !isSerializationFailure(err) {
			return drift, err
		}
	}
	return nil, err
}

func (r *repository) recountOnce(ctx context.Context) ([]CountDrift, error) {
	drift := []CountDrift{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []countRow
		err := tx.Raw(`
			SELECT c.id AS id, c.posts_count AS stored, COUNT(p.id) AS actual
			FROM categorias c
			LEFT JOIN posts_categorias pc ON pc.categoria_id = c.id
			LEFT JOIN posts p ON p.id = pc.post_id AND p.estado = ?
			GROUP BY c.id, c.posts_count
			HAVING c.posts_count <> COUNT(p.id)
			ORDER BY c.id`, models.PostStatusPublished).
			Scan(&rows).Error
		if err != nil {
			return err
		}

		now := stamp(r.now())
		for _, row := range rows {
			err := tx.Model(&models.Category{}).
				Where("id = ?", row.ID).
				UpdateColumns(map[string]interface{}{
					"posts_count": row.Actual,
					"updated_at":  now,
				}).Error
			if err != nil {
				return err
			}
			drift = append(drift, CountDrift{CategoryID: row.ID, Stored: row.Stored, Actual: row.Actual})
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, err
	}
	return drift, nil
}
