package categories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/joefazee/categorias/models"
)

const (
	opCounterAdd    = "posts_count.add"
	opCounterRemove = "posts_count.remove"
)

// gormCounter adjusts posts_count through the transaction it was created with.
// The UPDATE takes the row lock, so concurrent adjustments serialise.
type gormCounter struct {
	tx  *gorm.DB
	now func() time.Time
}

func newGormCounter(tx *gorm.DB, now func() time.Time) Counter {
	return &gormCounter{tx: tx, now: now}
}

func (c *gormCounter) OnMembershipAdded(ctx context.Context, categoryID int64) error {
	return c.adjust(ctx, opCounterAdd, categoryID, gorm.Expr("posts_count + 1"))
}

func (c *gormCounter) OnMembershipRemoved(ctx context.Context, categoryID int64) error {
	return c.adjust(ctx, opCounterRemove, categoryID, gorm.Expr("GREATEST(posts_count - 1, 0)"))
}

func (c *gormCounter) adjust(ctx context.Context, op string, categoryID int64, expr interface{}) error {
	res := c.tx.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", categoryID).
		UpdateColumns(map[string]interface{}{
			"posts_count": expr,
			"updated_at":  stamp(c.now()),
		})
	if res.Error != nil {
		return models.NewConsistencyError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConsistencyError(op, models.NewNotFoundError(op, models.ErrCategoryNotFound))
	}
	return nil
}

// memoryCounter adjusts posts_count inside a memory transaction; the undo
// entries it records restore the previous values on rollback.
type memoryCounter struct {
	tx *memoryTx
}

func (c *memoryCounter) OnMembershipAdded(_ context.Context, categoryID int64) error {
	return c.adjust(opCounterAdd, categoryID, 1)
}

func (c *memoryCounter) OnMembershipRemoved(_ context.Context, categoryID int64) error {
	return c.adjust(opCounterRemove, categoryID, -1)
}

func (c *memoryCounter) adjust(op string, categoryID int64, delta int) error {
	cat, ok := c.tx.store.categories[categoryID]
	if !ok {
		return models.NewConsistencyError(op, models.NewNotFoundError(op, models.ErrCategoryNotFound))
	}
	prevCount, prevUpdated := cat.PostsCount, cat.UpdatedAt
	c.tx.onRollback(func() {
		cat.PostsCount, cat.UpdatedAt = prevCount, prevUpdated
	})

	cat.PostsCount += delta
	if cat.PostsCount < 0 {
		cat.PostsCount = 0
	}
	cat.UpdatedAt = stamp(c.tx.store.now())
	return nil
}
