package models

import (
	"errors"
	"time"
)

var _ Model = (*User)(nil)

// User is a local record of a Spotify account that has signed in.
type User struct {
	id          string
	sequence    int
	spotifyID   string
	displayName string
	email       string
	country     string
	product     string
	lastLoginAt time.Time
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewUser creates a user for the given Spotify account.
func NewUser(sequence int, spotifyID, displayName, email string) *User {
	now := time.Now()
	return &User{
		sequence:    sequence,
		spotifyID:   spotifyID,
		displayName: displayName,
		email:       email,
		lastLoginAt: now,
		createdAt:   now,
		updatedAt:   now,
	}
}

// UserFromProfile creates a user from a fetched [Profile].
func UserFromProfile(p Profile) *User {
	u := NewUser(0, p.ID, p.DisplayName, p.Email)
	u.country = p.Country
	u.product = p.Product
	return u
}

func (u *User) ID() string             { return u.id }
func (u *User) Sequence() int          { return u.sequence }
func (u *User) SpotifyID() string      { return u.spotifyID }
func (u *User) DisplayName() string    { return u.displayName }
func (u *User) Email() string          { return u.email }
func (u *User) Country() string        { return u.country }
func (u *User) Product() string        { return u.product }
func (u *User) LastLoginAt() time.Time { return u.lastLoginAt }
func (u *User) CreatedAt() time.Time   { return u.createdAt }
func (u *User) UpdatedAt() time.Time   { return u.updatedAt }
func (u *User) DeletedAt() *time.Time  { return u.deletedAt }

func (u *User) SetID(id string)            { u.id = id }
func (u *User) SetSequence(seq int)        { u.sequence = seq }
func (u *User) SetCreatedAt(t time.Time)   { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)   { u.updatedAt = t }
func (u *User) SetLastLoginAt(t time.Time) { u.lastLoginAt = t }
func (u *User) SetDeletedAt(t *time.Time)  { u.deletedAt = t }
func (u *User) SetCountry(country string)  { u.country = country }
func (u *User) SetProduct(product string)  { u.product = product }
func (u *User) SetDisplayName(name string) { u.displayName = name }
func (u *User) SetEmail(email string)      { u.email = email }

// Validate checks required fields.
func (u *User) Validate() error {
	if u.spotifyID == "" {
		return errors.New("spotify id is required")
	}
	return nil
}
