package models

import (
	"time"
)

// Post categories accepted on create and edit.
const (
	CategoryAgriculture   = "Agriculture"
	CategoryBusiness      = "Business"
	CategoryEducation     = "Education"
	CategoryEntertainment = "Entertainment"
	CategoryArt           = "Art"
	CategoryInvestment    = "Investment"
	CategoryUncategorized = "Uncategorized"
	CategoryWeather       = "Weather"
)

// Categories lists every valid post category in display order.
var Categories = []string{
	CategoryAgriculture,
	CategoryBusiness,
	CategoryEducation,
	CategoryEntertainment,
	CategoryArt,
	CategoryInvestment,
	CategoryUncategorized,
	CategoryWeather,
}

// IsValidCategory reports whether name is one of Categories.
func IsValidCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Post represents a blog post with its thumbnail.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Category    string    `gorm:"not null;index;default:Uncategorized" json:"category"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Thumbnail   string    `gorm:"not null" json:"thumbnail"`
	CreatorID   uint      `gorm:"not null;index" json:"creator"`
	Version     uint      `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
}

func (p *Post) BlobURL() string { return p.Thumbnail }

func (p *Post) SetBlobURL(url string) { p.Thumbnail = url }

func (p *Post) OwnerID() uint { return p.CreatorID }
