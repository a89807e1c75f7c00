package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Longest accepted values, in runes. They match the column widths.
const (
	MaxCategoryNameLength  = 100
	MaxCategoryColorLength = 32
	MaxCategoryIconLength  = 64
)

// Category is a node in the content taxonomy.
type Category struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"column:nombre;type:varchar(100);not null" json:"nombre"`
	Description  string    `gorm:"column:descripcion;type:text;not null" json:"descripcion"`
	Slug         string    `gorm:"type:varchar(120);not null;uniqueIndex" json:"slug"`
	Color        string    `gorm:"type:varchar(32);not null" json:"color,omitempty"`
	Icon         string    `gorm:"column:icono;type:varchar(64);not null" json:"icono,omitempty"`
	ParentID     *int64    `gorm:"index" json:"parent_id"`
	PostsCount   int       `gorm:"not null" json:"posts_count"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	DisplayOrder int       `gorm:"not null" json:"display_order"`
	CreatedBy    *int64    `json:"created_by,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`

	// Posts is only populated by an explicit FindOne expansion.
	Posts []Post `gorm:"-" json:"posts,omitempty"`
}

// TableName specifies the table name for Category model
func (*Category) TableName() string {
	return "categorias"
}

// Validate checks the record shape. It does not look at other categories.
func (c *Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return ErrInvalidCategoryName
	}
	if strings.TrimSpace(c.Description) == "" {
		return ErrInvalidCategoryDescription
	}
	if !c.IsValidSlug() {
		return ErrInvalidCategorySlug
	}
	if utf8.RuneCountInString(c.Color) > MaxCategoryColorLength {
		return ErrInvalidCategoryColor
	}
	if utf8.RuneCountInString(c.Icon) > MaxCategoryIconLength {
		return ErrInvalidCategoryIcon
	}
	if c.ParentID != nil && (*c.ParentID <= 0 || *c.ParentID == c.ID) {
		return ErrInvalidParentID
	}
	if c.PostsCount < 0 {
		return ErrNegativePostsCount
	}
	return nil
}

// IsValidSlug checks the slug is non-empty, has no whitespace and no leading
// or trailing hyphen.
func (c *Category) IsValidSlug() bool {
	if c.Slug == "" || strings.HasPrefix(c.Slug, "-") || strings.HasSuffix(c.Slug, "-") {
		return false
	}
	return !strings.ContainsAny(c.Slug, " \t\n\r\v\f/?#")
}

// IsRoot reports whether the category declares no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// Clone returns a deep copy, so stored records never share pointers with callers.
func (c *Category) Clone() *Category {
	out := *c
	if c.ParentID != nil {
		p := *c.ParentID
		out.ParentID = &p
	}
	if c.CreatedBy != nil {
		cb := *c.CreatedBy
		out.CreatedBy = &cb
	}
	if c.Posts != nil {
		out.Posts = append([]Post(nil), c.Posts...)
	}
	return &out
}
