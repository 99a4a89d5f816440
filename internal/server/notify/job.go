// Package notify delivers one-time passcode emails out of band: jobs are
// queued by the request path and processed by a Dispatcher with bounded
// retries.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Intent selects which email a job produces.
type Intent string

const (
	IntentVerify         Intent = "verify"
	IntentForgotPassword Intent = "forgotpassword"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	return i == IntentVerify || i == IntentForgotPassword
}

// purpose is the snake_case description used in mail text.
func (i Intent) purpose() string {
	switch i {
	case IntentVerify:
		return "email_verification"
	case IntentForgotPassword:
		return "password_reset"
	default:
		return "one_time_passcode"
	}
}

// Job asks for an OTP email of the given intent to be sent to a user.
type Job struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	Intent     Intent    `json:"intent"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// receipt is the payload a RedisQueue handed out, used to release it.
	receipt string
}

// NewJob returns a job with a fresh id.
func NewJob(userID, email string, intent Intent) Job {
	return Job{
		ID:         uuid.NewString(),
		UserID:     userID,
		Email:      email,
		Intent:     intent,
		EnqueuedAt: time.Now().UTC(),
	}
}

func encodeJob(j Job) (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	return string(b), nil
}

func decodeJob(s string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(s), &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}

func encodeFailed(f FailedJob) (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode failed job: %w", err)
	}
	return string(b), nil
}
