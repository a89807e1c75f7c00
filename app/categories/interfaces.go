package categories

import (
	"context"

	"github.com/joefazee/categorias/models"
)

// MembershipHooks is the contract the content subsystem drives. It is the only
// path through which posts_count moves.
type MembershipHooks interface {
	// AttachPost links a post to a category. It reports whether a new
	// membership was created; attaching twice is a no-op.
	AttachPost(ctx context.Context, postID, categoryID int64) (bool, error)
	// DetachPost removes a membership. It reports whether one was removed.
	DetachPost(ctx context.Context, postID, categoryID int64) (bool, error)
	// SavePost creates or updates a content item. Moving into or out of the
	// published state adjusts every category the post belongs to.
	SavePost(ctx context.Context, post *models.Post) error
	// DeletePost removes a content item and all of its memberships.
	DeletePost(ctx context.Context, postID int64) error
}

// Counter applies a single posts_count adjustment inside the caller's unit of work.
type Counter interface {
	OnMembershipAdded(ctx context.Context, categoryID int64) error
	OnMembershipRemoved(ctx context.Context, categoryID int64) error
}

// Repository defines the interface for category data access. The GORM and the
// in-memory implementations must answer every call identically.
type Repository interface {
	MembershipHooks

	// Insert stores a new category and assigns its ID. A slug collision
	// returns models.ErrSlugTaken, an unknown parent models.ErrInvalidParentID.
	Insert(ctx context.Context, category *models.Category) error
	// Save writes the mutable columns of an existing category and reloads it.
	// posts_count is never written. A missing row returns models.ErrRecordNotFound.
	Save(ctx context.Context, category *models.Category) error
	// GetByID returns models.ErrRecordNotFound for an unknown id.
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	// List returns one page of the categories matching q and the total match count.
	List(ctx context.Context, q Query) ([]models.Category, int64, error)
	// SlugsWithPrefix returns base itself and every base-N slug in use.
	SlugsWithPrefix(ctx context.Context, base string) ([]string, error)
	// Delete removes a category. Children become roots and memberships are
	// dropped. It returns models.ErrCategoryInUse when the category still
	// counts published posts and policy is RemoveRefuse.
	Delete(ctx context.Context, id int64, policy RemovePolicy) error
	// PublishedPosts lists the published posts of a category, newest first.
	PublishedPosts(ctx context.Context, categoryID int64) ([]models.Post, error)
	// RecountPosts recomputes every counter from the membership relation and
	// returns the rows that had drifted.
	RecountPosts(ctx context.Context) ([]CountDrift, error)
}

// Service defines the interface for category business logic
type Service interface {
	MembershipHooks

	Create(ctx context.Context, req CreateCategoryRequest) (*models.Category, error)
	FindAll(ctx context.Context, opts FindAllOptions) (*CategoryPage, error)
	FindOne(ctx context.Context, id int64, opts FindOneOptions) (*models.Category, error)
	Update(ctx context.Context, id int64, req UpdateCategoryRequest) (*models.Category, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Hierarchy(ctx context.Context) (*Tree, error)
	RecountPosts(ctx context.Context) ([]CountDrift, error)
}
