// Package models defines data models for the accounts service.
package models

import "time"

// User represents a user account. Password and RefreshToken are never
// serialized into responses.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Password      []byte    `json:"-"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	RefreshToken  *string   `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Sanitize zeroes the credential fields so a record can be attached to a
// request context or returned without carrying secrets.
func (u User) Sanitize() User {
	u.Password = nil
	u.RefreshToken = nil
	return u
}

// NewUser carries the fields needed to create a user. Username and Email are
// expected to be trimmed and lowercased by the caller, Password already
// hashed.
type NewUser struct {
	Username      string
	Email         string
	FullName      string
	Password      []byte
	AvatarURL     string
	CoverImageURL string
}

// WatchHistoryEntry is a single watched-video record (reporting view only).
type WatchHistoryEntry struct {
	VideoID   string    `json:"video_id"`
	WatchedAt time.Time `json:"watched_at"`
}
