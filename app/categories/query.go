package categories

import (
	"strings"

	"github.com/joefazee/categorias/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// SortField is a column FindAll may order by.
type SortField string

const (
	SortByID           SortField = "id"
	SortByName         SortField = "nombre"
	SortBySlug         SortField = "slug"
	SortByDisplayOrder SortField = "display_order"
	SortByPostsCount   SortField = "posts_count"
	SortByCreatedAt    SortField = "created_at"
	SortByUpdatedAt    SortField = "updated_at"
)

var sortFields = map[SortField]struct{}{
	SortByID:           {},
	SortByName:         {},
	SortBySlug:         {},
	SortByDisplayOrder: {},
	SortByPostsCount:   {},
	SortByCreatedAt:    {},
	SortByUpdatedAt:    {},
}

// FindAllOptions is the caller-facing listing request. Every field is optional.
type FindAllOptions struct {
	Page     int
	Limit    int
	Search   string
	Slug     string
	Color    string
	ParentID *int64 // pointer to 0 selects categories without a resolvable parent
	IsActive *bool
	OrderBy  string
	Order    string
}

// Query is a normalised FindAllOptions. Backends only ever see a Query.
type Query struct {
	Page     int
	Limit    int
	Search   string
	Slug     string
	Color    string
	ParentID *int64
	IsActive *bool
	OrderBy  SortField
	Desc     bool
}

// Normalize clamps paging, falls back to id ordering for unknown fields and
// never fails.
func (o FindAllOptions) Normalize() Query {
	q := Query{
		Page:     o.Page,
		Limit:    o.Limit,
		Search:   o.Search,
		Slug:     o.Slug,
		Color:    o.Color,
		ParentID: o.ParentID,
		IsActive: o.IsActive,
		OrderBy:  SortByID,
		Desc:     strings.EqualFold(strings.TrimSpace(o.Order), "desc"),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if f := SortField(strings.ToLower(strings.TrimSpace(o.OrderBy))); f != "" {
		if _, ok := sortFields[f]; ok {
			q.OrderBy = f
		}
	}
	return q
}

func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Pages returns max(1, ceil(total/limit)).
func (q Query) Pages(total int64) int {
	if total <= 0 {
		return 1
	}
	limit := int64(q.Limit)
	return int((total + limit - 1) / limit)
}

// orderClause renders the ORDER BY for the relational backend. Text columns
// compare bytewise so both backends agree.
func (q Query) orderClause() string {
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	switch q.OrderBy {
	case SortByID:
		return "id " + dir
	case SortByName, SortBySlug:
		return string(q.OrderBy) + ` COLLATE "C" ` + dir + ", id ASC"
	default:
		return string(q.OrderBy) + " " + dir + ", id ASC"
	}
}

// less is the in-memory twin of orderClause.
func (q Query) less(a, b *models.Category) bool {
	c := compareBy(q.OrderBy, a, b)
	if q.Desc {
		c = -c
	}
	if c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

func compareBy(f SortField, a, b *models.Category) int {
	switch f {
	case SortByName:
		return strings.Compare(a.Name, b.Name)
	case SortBySlug:
		return strings.Compare(a.Slug, b.Slug)
	case SortByDisplayOrder:
		return compareInt(int64(a.DisplayOrder), int64(b.DisplayOrder))
	case SortByPostsCount:
		return compareInt(int64(a.PostsCount), int64(b.PostsCount))
	case SortByCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return compareInt(a.ID, b.ID)
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// matches is the in-memory twin of the relational WHERE clause. exists
// resolves parent ids for the root filter.
func (q Query) matches(c *models.Category, exists func(id int64) bool) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Description), needle) {
			return false
		}
	}
	if q.Slug != "" && c.Slug != q.Slug {
		return false
	}
	if q.Color != "" && c.Color != q.Color {
		return false
	}
	if q.ParentID != nil {
		if *q.ParentID == 0 {
			if c.ParentID != nil && exists(*c.ParentID) {
				return false
			}
		} else if c.ParentID == nil || *c.ParentID != *q.ParentID {
			return false
		}
	}
	if q.IsActive != nil && c.IsActive != *q.IsActive {
		return false
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
