package models

import "github.com/google/uuid"

type Category struct {
	BaseModel
	Name         string    `json:"name"`
	Slug         string    `gorm:"uniqueIndex" json:"slug"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	ProductCount int       `json:"product_count"`
	Products     []Product `json:"products,omitempty"`
}

type Product struct {
	BaseModel
	Slug        string     `gorm:"uniqueIndex" json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	Currency    string     `json:"currency"`
	Image       string     `json:"image"`
	Stock       int        `json:"stock"`
	IsActive    bool       `json:"is_active"`
	RatingAvg   float64    `json:"rating_average"`
	RatingCount int        `json:"rating_count"`
	CategoryID  *uuid.UUID `gorm:"type:uuid" json:"category_id"`
	Category    *Category  `json:"category,omitempty"`
	Reviews     []Review   `json:"reviews,omitempty"`
}

type Review struct {
	BaseModel
	ProductID uuid.UUID `gorm:"type:uuid;index:idx_review_product_user,unique" json:"product_id"`
	UserID    uuid.UUID `gorm:"type:uuid;index:idx_review_product_user,unique" json:"user_id"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title"`
	Comment   string    `json:"comment"`
}
