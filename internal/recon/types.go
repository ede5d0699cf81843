// Package recon implements the client-side reconciliation of AI-generated
// task suggestions against the persisted task store: duplicate filtering,
// single and bulk save orchestration, and derived statistics.
package recon

import (
	"context"
	"errors"
	"time"
)

// Task mirrors the store's canonical record as seen over the wire.
type Task struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskPatch is a partial update; nil fields are left unchanged.
type TaskPatch struct {
	Title     *string
	Topic     *string
	Completed *bool
}

// TaskStore is the engine's view of the persistence collaborator. Each call
// is independent; there are no transactional guarantees across calls.
type TaskStore interface {
	List(ctx context.Context, userID string) ([]Task, error)
	Create(ctx context.Context, title, userID, topic string, completed bool) (Task, error)
	Patch(ctx context.Context, id int64, patch TaskPatch) (Task, error)
	Delete(ctx context.Context, id int64) error
}

// Generator produces candidate task titles for a topic.
type Generator interface {
	Generate(ctx context.Context, topic string) ([]string, error)
}

// SaveOutcome reports the result of one item in a bulk save.
type SaveOutcome struct {
	Title string
	Task  Task
	Err   error
}

var (
	// ErrDuplicate rejects a save whose title already matches a saved task.
	ErrDuplicate = errors.New("task already saved")
	// ErrAuthRequired rejects mutating actions without an identity.
	ErrAuthRequired = errors.New("not logged in")
	// ErrNothingToSave signals a bulk save where every suggestion is already saved.
	ErrNothingToSave = errors.New("all tasks already saved")
	// ErrSaveInFlight rejects a save for a title whose previous save has not settled.
	ErrSaveInFlight = errors.New("save already in flight for title")
	// ErrPartialSave is the aggregate failure for a bulk save in which at
	// least one create failed; successes are still merged into local state.
	ErrPartialSave = errors.New("some tasks could not be saved")
)
