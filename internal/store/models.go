package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsExternal            bool
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Task is the canonical persisted record. The store is authoritative for
// ID and CreatedAt; callers must use the returned record after a write.
type Task struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskPatch is a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title     *string
	Topic     *string
	Completed *bool
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Topic == nil && p.Completed == nil
}
