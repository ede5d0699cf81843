package recon

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Engine owns one session's task view: the authoritative mirror of the
// store (refreshed on Load, mutated only after store acknowledgement), the
// current suggestion list, the save-in-flight set, and the active topic.
//
// All state access is serialized by a mutex. Bulk save is the only fan-out:
// it issues one create per title concurrently and merges at the barrier, so
// the dedup predicate never sees partial merges mid-flight; the in-flight
// set suppresses duplicate submissions during that window instead.
type Engine struct {
	store TaskStore
	gen   Generator

	mu          sync.Mutex
	userID      string
	topic       string
	tasks       []Task
	suggestions []string
	inflight    map[string]struct{} // case-folded titles
}

func NewEngine(store TaskStore, gen Generator) *Engine {
	return &Engine{
		store:    store,
		gen:      gen,
		inflight: make(map[string]struct{}),
	}
}

// SetIdentity records the authenticated user. An empty id means logged out;
// all mutating operations are blocked until an identity is present.
func (e *Engine) SetIdentity(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = userID
}

// SetTopic sets the active topic without generating suggestions. Saves made
// afterwards carry it.
func (e *Engine) SetTopic(topic string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topic = topic
}

// Load refreshes the task set from the store. On failure local state is
// left unchanged.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	userID := e.userID
	e.mu.Unlock()
	if userID == "" {
		return ErrAuthRequired
	}

	tasks, err := e.store.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	e.mu.Lock()
	e.tasks = tasks
	e.mu.Unlock()
	return nil
}

// Generate requests a fresh suggestion batch for the topic and replaces the
// suggestion list wholesale. The generator's failure is terminal for this
// request; nothing is retried.
func (e *Engine) Generate(ctx context.Context, topic string) ([]string, error) {
	e.mu.Lock()
	userID := e.userID
	e.mu.Unlock()
	if userID == "" {
		return nil, ErrAuthRequired
	}

	titles, err := e.gen.Generate(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	e.mu.Lock()
	e.topic = topic
	e.suggestions = titles
	e.mu.Unlock()
	return append([]string(nil), titles...), nil
}

// IsSaved is the dedup predicate: true iff the title, case-folded, equals
// the folded title of some task in the current set. Evaluated fresh against
// current state on every call.
func (e *Engine) IsSaved(title string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return taskExists(e.tasks, title)
}

// InFlight reports whether a save for the title is currently outstanding.
func (e *Engine) InFlight(title string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[fold(title)]
	return ok
}

// SaveOne persists a single suggestion. Duplicates are rejected before any
// store call; the in-flight marker is cleared unconditionally once the
// request settles.
func (e *Engine) SaveOne(ctx context.Context, title string) (Task, error) {
	trimmed := strings.TrimSpace(title)

	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return Task{}, ErrAuthRequired
	}
	if taskExists(e.tasks, trimmed) {
		e.mu.Unlock()
		return Task{}, fmt.Errorf("%q: %w", trimmed, ErrDuplicate)
	}
	if _, ok := e.inflight[fold(trimmed)]; ok {
		e.mu.Unlock()
		return Task{}, fmt.Errorf("%q: %w", trimmed, ErrSaveInFlight)
	}
	e.inflight[fold(trimmed)] = struct{}{}
	userID := e.userID
	topic := strings.TrimSpace(e.topic)
	e.mu.Unlock()

	if topic == "" {
		log.Printf("recon: saving task %q with no topic", trimmed)
	}

	created, err := e.store.Create(ctx, trimmed, userID, topic, false)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, fold(trimmed))
	if err != nil {
		return Task{}, fmt.Errorf("save task: %w", err)
	}

	created = reconcileTopic(created, topic)
	e.tasks = append(e.tasks, created)
	return created, nil
}

// SaveAll persists every current suggestion not matching the dedup
// predicate, issuing the creates concurrently and merging at the barrier.
// It returns per-item outcomes; if any item failed the aggregate error
// wraps ErrPartialSave, but successful records are merged regardless.
func (e *Engine) SaveAll(ctx context.Context) ([]SaveOutcome, error) {
	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return nil, ErrAuthRequired
	}

	pending := make([]string, 0, len(e.suggestions))
	for _, suggestion := range e.suggestions {
		title := strings.TrimSpace(suggestion)
		if title == "" || taskExists(e.tasks, title) {
			continue
		}
		if _, ok := e.inflight[fold(title)]; ok {
			continue
		}
		pending = append(pending, title)
	}
	if len(pending) == 0 {
		e.mu.Unlock()
		return nil, ErrNothingToSave
	}

	for _, title := range pending {
		e.inflight[fold(title)] = struct{}{}
	}
	userID := e.userID
	topic := strings.TrimSpace(e.topic)
	e.mu.Unlock()

	if topic == "" {
		log.Printf("recon: bulk saving %d tasks with no topic", len(pending))
	}

	outcomes := make([]SaveOutcome, len(pending))
	var wg sync.WaitGroup
	for i, title := range pending {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			created, err := e.store.Create(ctx, title, userID, topic, false)
			if err != nil {
				outcomes[i] = SaveOutcome{Title: title, Err: fmt.Errorf("save task: %w", err)}
				return
			}
			outcomes[i] = SaveOutcome{Title: title, Task: reconcileTopic(created, topic)}
		}(i, title)
	}
	wg.Wait()

	e.mu.Lock()
	failed := 0
	for _, outcome := range outcomes {
		delete(e.inflight, fold(outcome.Title))
		if outcome.Err != nil {
			failed++
			log.Printf("recon: bulk save %q: %v", outcome.Title, outcome.Err)
			continue
		}
		e.tasks = append(e.tasks, outcome.Task)
	}
	e.mu.Unlock()

	if failed > 0 {
		return outcomes, fmt.Errorf("%d of %d: %w", failed, len(outcomes), ErrPartialSave)
	}
	return outcomes, nil
}

// Toggle flips the task's completed flag. Local state changes only from the
// store's acknowledged record; on failure it is left untouched.
func (e *Engine) Toggle(ctx context.Context, id int64) (Task, error) {
	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return Task{}, ErrAuthRequired
	}
	current, ok := findTask(e.tasks, id)
	e.mu.Unlock()
	if !ok {
		return Task{}, fmt.Errorf("toggle task %d: unknown id", id)
	}

	next := !current.Completed
	updated, err := e.store.Patch(ctx, id, TaskPatch{Completed: &next})
	if err != nil {
		return Task{}, fmt.Errorf("toggle task: %w", err)
	}

	e.mu.Lock()
	replaceTask(e.tasks, updated)
	e.mu.Unlock()
	return updated, nil
}

// Edit updates a task's title and topic, acknowledgement-gated like Toggle.
func (e *Engine) Edit(ctx context.Context, id int64, title, topic string) (Task, error) {
	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return Task{}, ErrAuthRequired
	}
	e.mu.Unlock()

	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return Task{}, fmt.Errorf("edit task %d: title must not be empty", id)
	}
	trimmedTopic := strings.TrimSpace(topic)

	updated, err := e.store.Patch(ctx, id, TaskPatch{Title: &trimmedTitle, Topic: &trimmedTopic})
	if err != nil {
		return Task{}, fmt.Errorf("edit task: %w", err)
	}

	e.mu.Lock()
	replaceTask(e.tasks, updated)
	e.mu.Unlock()
	return updated, nil
}

// Delete removes a task from local state only after store acknowledgement.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return ErrAuthRequired
	}
	e.mu.Unlock()

	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	e.mu.Lock()
	for i, task := range e.tasks {
		if task.ID == id {
			e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
	return nil
}

// Tasks returns a copy of the current task set.
func (e *Engine) Tasks() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Task(nil), e.tasks...)
}

// Suggestions returns a copy of the current suggestion list.
func (e *Engine) Suggestions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.suggestions...)
}

// Topic returns the active topic.
func (e *Engine) Topic() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.topic
}

// Stats recomputes the derived statistics from current state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeStats(e.tasks, e.suggestions)
}

// Grouped partitions the current task set by topic.
func (e *Engine) Grouped() []TopicGroup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return GroupByTopic(e.tasks)
}

// reconcileTopic patches the echoed record with the submitted topic when the
// store did not echo one back. The merged record must carry the topic the
// user saved under.
func reconcileTopic(created Task, topic string) Task {
	if created.Topic == "" && topic != "" {
		log.Printf("recon: store did not echo topic for %q, patching locally", created.Title)
		created.Topic = topic
	}
	return created
}

func fold(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func taskExists(tasks []Task, title string) bool {
	folded := fold(title)
	for _, task := range tasks {
		if fold(task.Title) == folded {
			return true
		}
	}
	return false
}

func findTask(tasks []Task, id int64) (Task, bool) {
	for _, task := range tasks {
		if task.ID == id {
			return task, true
		}
	}
	return Task{}, false
}

func replaceTask(tasks []Task, updated Task) {
	for i, task := range tasks {
		if task.ID == updated.ID {
			tasks[i] = updated
			return
		}
	}
}
