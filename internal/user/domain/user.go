// Package domain holds the core user entity.
package domain

import (
	"errors"
	"time"
)

// User is the locally owned identity record. CurrentWorkspaceID is empty
// only until the user's first workspace exists; afterwards it always points
// at one of the user's active memberships.
type User struct {
	ID                 string
	Email              string
	GivenName          string
	FamilyName         string
	Active             bool
	CurrentWorkspaceID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate validates the user for persistence.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.GivenName == "" {
		return errors.New("given name is required")
	}
	if u.FamilyName == "" {
		return errors.New("family name is required")
	}
	return nil
}

// DisplayName is the name used when deriving a default workspace name.
func (u *User) DisplayName() string {
	return u.GivenName + " " + u.FamilyName
}
