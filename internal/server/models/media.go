package models

import "time"

// Media describes a file a user uploaded. The bytes live in object storage
// under StorageKey; URL is the address handed back to clients.
type Media struct {
	ID           string
	UserID       string
	StorageKey   string
	URL          string
	OriginalName string
	ContentType  string
	Size         int64
	CreatedAt    time.Time
}
