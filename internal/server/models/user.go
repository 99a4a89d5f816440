// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row. PasswordHash holds a bcrypt hash; IsVerified is
// the gate between pending and active accounts.
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	IsVerified      bool
	FirstName       string
	LastName        string
	DateOfBirth     time.Time
	Bio             *string
	MobileNumber    *string
	Gender          *string
	CoverImage      *string
	ProfileImageURL *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VerificationState is the account's position in the registration flow.
type VerificationState int

const (
	StateUnregistered VerificationState = iota
	StatePendingVerification
	StateVerified
)

func (s VerificationState) String() string {
	switch s {
	case StatePendingVerification:
		return "pending_verification"
	case StateVerified:
		return "verified"
	default:
		return "unregistered"
	}
}

// State derives the verification state of a (possibly nil) user.
func (u *User) State() VerificationState {
	switch {
	case u == nil:
		return StateUnregistered
	case u.IsVerified:
		return StateVerified
	default:
		return StatePendingVerification
	}
}

// ProfileUpdate lists the profile columns a user may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Bio             *string
	MobileNumber    *string
	Gender          *string
	CoverImage      *string
	ProfileImageURL *string
}

// Empty reports whether no field was supplied.
func (p ProfileUpdate) Empty() bool {
	return p.Bio == nil && p.MobileNumber == nil && p.Gender == nil &&
		p.CoverImage == nil && p.ProfileImageURL == nil
}
