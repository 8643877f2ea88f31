// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an author account.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Avatar    string    `json:"avatar"`
	Posts     int       `gorm:"not null;default:0" json:"posts"`
	Version   uint      `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BlobURL() string { return u.Avatar }

func (u *User) SetBlobURL(url string) { u.Avatar = url }

// OwnerID is the user itself.
func (u *User) OwnerID() uint { return u.ID }
