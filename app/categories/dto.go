package categories

import (
	"strings"

	"github.com/joefazee/categorias/internal/validator"
	"github.com/joefazee/categorias/models"
)

const maxSlugLength = 120

// CreateCategoryRequest represents the request to create a category
type CreateCategoryRequest struct {
	Name         string `json:"nombre"`
	Description  string `json:"descripcion"`
	Slug         string `json:"slug,omitempty"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icono,omitempty"`
	ParentID     *int64 `json:"parent_id,omitempty"`
	IsActive     *bool  `json:"is_active,omitempty"`
	DisplayOrder int    `json:"display_order,omitempty"`
	CreatedBy    *int64 `json:"created_by,omitempty"`
}

// UpdateCategoryRequest represents a partial update. Nil fields are left alone;
// a ParentID pointing at 0 turns the category into a root.
type UpdateCategoryRequest struct {
	Name         *string `json:"nombre,omitempty"`
	Description  *string `json:"descripcion,omitempty"`
	Slug         *string `json:"slug,omitempty"`
	Color        *string `json:"color,omitempty"`
	Icon         *string `json:"icono,omitempty"`
	ParentID     *int64  `json:"parent_id,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
}

// FindOneOptions controls FindOne expansions.
type FindOneOptions struct {
	IncludePosts bool
}

// CategoryPage is one page of a FindAll listing.
type CategoryPage struct {
	Items []models.Category `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Pages int               `json:"pages"`
}

// CountDrift is a counter found out of step with the membership relation.
type CountDrift struct {
	CategoryID int64 `json:"categoria_id"`
	Stored     int   `json:"stored"`
	Actual     int   `json:"actual"`
}

func (r *CreateCategoryRequest) validate(v *validator.Validator) {
	v.Check(validator.NotBlank(r.Name), "nombre", "must be provided")
	v.Check(validator.MaxRunes(strings.TrimSpace(r.Name), models.MaxCategoryNameLength), "nombre", "must not be more than 100 characters long")
	v.Check(validator.NotBlank(r.Description), "descripcion", "must be provided")
	checkStyle(v, r.Color, r.Icon)
	if r.Slug != "" {
		checkSlug(v, normalizeSlug(r.Slug))
	}
	v.Check(validator.Positive(r.ParentID), "parent_id", "must be a positive id")
}

func (r *UpdateCategoryRequest) validate(v *validator.Validator) {
	if r.Name != nil {
		v.Check(validator.NotBlank(*r.Name), "nombre", "must be provided")
		v.Check(validator.MaxRunes(strings.TrimSpace(*r.Name), models.MaxCategoryNameLength), "nombre", "must not be more than 100 characters long")
	}
	if r.Description != nil {
		v.Check(validator.NotBlank(*r.Description), "descripcion", "must be provided")
	}
	if r.Color != nil {
		checkStyle(v, *r.Color, "")
	}
	if r.Icon != nil {
		checkStyle(v, "", *r.Icon)
	}
	if r.Slug != nil {
		checkSlug(v, normalizeSlug(*r.Slug))
	}
	if r.ParentID != nil {
		v.Check(*r.ParentID >= 0, "parent_id", "must be a positive id, or 0 for none")
	}
}

func checkStyle(v *validator.Validator, color, icon string) {
	v.Check(validator.MaxRunes(strings.TrimSpace(color), models.MaxCategoryColorLength), "color", "must not be more than 32 characters long")
	v.Check(validator.MaxRunes(strings.TrimSpace(icon), models.MaxCategoryIconLength), "icono", "must not be more than 64 characters long")
}

func checkSlug(v *validator.Validator, slug string) {
	v.Check(validator.Matches(slug, validator.SlugRgx), "slug", "must not be empty or contain spaces or URL delimiters")
	v.Check(validator.MaxRunes(slug, maxSlugLength), "slug", "must not be more than 120 characters long")
}
