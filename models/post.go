package models

import (
	"strings"
	"time"
)

// PostStatus mirrors the publication states a content item moves through.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "borrador"
	PostStatusInReview  PostStatus = "en_revision"
	PostStatusPublished PostStatus = "publicado"
	PostStatusRejected  PostStatus = "rechazado"
	PostStatusArchived  PostStatus = "archivado"
)

// IsValid reports whether s is a known publication state.
func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusDraft, PostStatusInReview, PostStatusPublished, PostStatusRejected, PostStatusArchived:
		return true
	}
	return false
}

// Post is the slice of a content item the category core needs: its
// publication state decides whether its memberships are counted.
type Post struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string     `gorm:"column:titulo;type:varchar(255);not null" json:"titulo"`
	Slug        string     `gorm:"type:varchar(255);not null" json:"slug"`
	Status      PostStatus `gorm:"column:estado;type:varchar(32);not null;index" json:"estado"`
	PublishedAt *time.Time `gorm:"column:fecha_publicacion" json:"fecha_publicacion,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName specifies the table name for Post model
func (*Post) TableName() string {
	return "posts"
}

// Validate performs validation on the post model
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrInvalidPostTitle
	}
	if !p.Status.IsValid() {
		return ErrInvalidPostState
	}
	return nil
}

// IsPublished reports whether memberships of this post count towards posts_count.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// PostCategory is one membership of a post in a category.
type PostCategory struct {
	PostID      int64 `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	CategoriaID int64 `gorm:"column:categoria_id;primaryKey;autoIncrement:false;index" json:"categoria_id"`
}

// TableName specifies the table name for PostCategory model
func (*PostCategory) TableName() string {
	return "posts_categorias"
}
