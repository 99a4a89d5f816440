package models

import "time"

// OtpRecord is one issued one-time passcode.
type OtpRecord struct {
	ID         string
	UserID     string
	Code       string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	IsVerified bool
}
