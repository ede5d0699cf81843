package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskpilot/api/internal/auth"
	"taskpilot/api/internal/authgoogle"
	"taskpilot/api/internal/authpw"
	"taskpilot/api/internal/config"
	"taskpilot/api/internal/email"
	"taskpilot/api/internal/export"
	"taskpilot/api/internal/recon"
	"taskpilot/api/internal/search"
	"taskpilot/api/internal/store"
	"taskpilot/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	IsExternal   bool
	JTI          string
	ExpiresAt    time.Time
}

// BulkSaveItem reports the per-title result of a bulk create.
type BulkSaveItem struct {
	Title string      `json:"title"`
	Task  *store.Task `json:"task,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  string      `json:"code,omitempty"`
}

type dataStore interface {
	ListTasksByUser(context.Context, string) ([]store.Task, error)
	GetTask(context.Context, int64) (store.Task, error)
	InsertTask(context.Context, string, string, string, bool) (store.Task, error)
	UpdateTask(context.Context, int64, store.TaskPatch) (store.Task, error)
	DeleteTask(context.Context, int64) error
	TaskCounts(context.Context, string) (int, int, error)
	GetUserByID(context.Context, string) (store.User, error)
	EnsureExternalUser(context.Context, string, string, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type generator interface {
	Generate(ctx context.Context, topic string) ([]string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	gen      generator
	search   *search.Service
	export   *export.Service
	email    *email.Service
	authpw   *authpw.Service
	google   *authgoogle.Service
}

// New wires the service against Postgres-backed refresh sessions.
func New(cfg config.Config, dataStore *store.PostgresStore, gen generator, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		gen:      gen,
		search:   searchService,
		export:   export.NewService(dataStore),
		authpw:   authpw.NewService(dataStore),
	}
}

// NewWithSessionStore wires the service with an external refresh session
// store (Redis).
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, gen generator, searchService *search.Service) *Service {
	service := New(cfg, dataStore, gen, searchService)
	service.sessions = sessions
	return service
}

// SetEmailService attaches the SMTP sender. Nil leaves email disabled.
func (s *Service) SetEmailService(svc *email.Service) {
	s.email = svc
}

// SetGoogleService attaches the optional Google sign-in flow.
func (s *Service) SetGoogleService(svc *authgoogle.Service) {
	s.google = svc
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) GoogleService() *authgoogle.Service {
	return s.google
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---------------------------------------------------------------------------
// Sessions

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Redis keeps only the user id; rehydrate the profile from Postgres.
	if user.DisplayName == "" {
		if full, err := s.store.GetUserByID(ctx, user.ID); err == nil {
			user = full
		}
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		IsExternal:   user.IsExternal,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:      token,
		UserID:     user.ID,
		UserName:   user.DisplayName,
		Email:      user.Email,
		IsExternal: user.IsExternal,
		JTI:        claims.JTI,
		ExpiresAt:  time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// LoginWithGoogle completes the OAuth callback: code exchange, profile
// fetch, find-or-create the external user, and session issue.
func (s *Service) LoginWithGoogle(ctx context.Context, state, code string) (Session, error) {
	if s.google == nil || !s.google.Enabled() {
		return Session{}, authgoogle.ErrNotConfigured
	}
	profile, err := s.google.Exchange(ctx, state, code)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.EnsureExternalUser(ctx, profile.Email, profile.Name, util.NewID("usr"))
	if err != nil {
		return Session{}, fmt.Errorf("ensure external user: %w", err)
	}
	return s.issueSession(ctx, user)
}

// SendVerificationEmail delivers the signup verification link when SMTP is
// configured; otherwise it is a no-op and the caller falls back to the dev
// token response.
func (s *Service) SendVerificationEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/verify-email?token=" + token
	if err := s.email.SendVerificationEmail(to, userName, url); err != nil {
		log.Printf("email: send verification to %s: %v", to, err)
	}
}

// SendPasswordResetEmail delivers the reset link when SMTP is configured.
func (s *Service) SendPasswordResetEmail(to, userName, token string) {
	if !s.SMTPConfigured() || token == "" {
		return
	}
	url := strings.TrimRight(s.cfg.AppBaseURL, "/") + "/reset-password?token=" + token
	if err := s.email.SendPasswordResetEmail(to, userName, url); err != nil {
		log.Printf("email: send password reset to %s: %v", to, err)
	}
}

// ---------------------------------------------------------------------------
// Tasks

func (s *Service) ListTasks(ctx context.Context, userID, topic string) ([]store.Task, error) {
	tasks, err := s.store.ListTasksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if topic == "" {
		return tasks, nil
	}
	filtered := make([]store.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Topic == topic {
			filtered = append(filtered, task)
		}
	}
	return filtered, nil
}

// GroupedTasks partitions a user's tasks by topic in discovery order, with
// untopiced tasks collected under the uncategorized label.
func (s *Service) GroupedTasks(ctx context.Context, userID string) ([]recon.TopicGroup, error) {
	tasks, err := s.store.ListTasksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return recon.GroupByTopic(toReconTasks(tasks)), nil
}

func (s *Service) CreateTask(ctx context.Context, userID, title, topic string) (store.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	task, err := s.store.InsertTask(ctx, title, userID, strings.TrimSpace(topic), false)
	if err != nil {
		return store.Task{}, err
	}
	s.indexTask(task)
	return task, nil
}

// BulkCreateTasks creates every given title concurrently and reports a
// per-title outcome. A duplicate or failed title never blocks the others.
func (s *Service) BulkCreateTasks(ctx context.Context, userID string, titles []string, topic string) ([]BulkSaveItem, int, error) {
	pending := make([]string, 0, len(titles))
	seen := make(map[string]struct{})
	for _, raw := range titles {
		title := strings.TrimSpace(raw)
		if title == "" {
			continue
		}
		folded := strings.ToLower(title)
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		pending = append(pending, title)
	}
	if len(pending) == 0 {
		return nil, 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one title is required", nil)
	}

	topic = strings.TrimSpace(topic)
	items := make([]BulkSaveItem, len(pending))
	var wg sync.WaitGroup
	for i, title := range pending {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			task, err := s.store.InsertTask(ctx, title, userID, topic, false)
			if err != nil {
				code := "SERVER_ERROR"
				if errors.Is(err, store.ErrDuplicateTask) {
					code = "DUPLICATE"
				}
				items[i] = BulkSaveItem{Title: title, Error: err.Error(), Code: code}
				return
			}
			items[i] = BulkSaveItem{Title: title, Task: &task}
		}(i, title)
	}
	wg.Wait()

	failed := 0
	for _, item := range items {
		if item.Task == nil {
			failed++
			continue
		}
		s.indexTask(*item.Task)
	}
	return items, failed, nil
}

func (s *Service) UpdateTask(ctx context.Context, userID string, id int64, patch store.TaskPatch) (store.Task, error) {
	if _, err := s.ownedTask(ctx, userID, id); err != nil {
		return store.Task{}, err
	}
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if trimmed == "" {
			return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title must not be empty", nil)
		}
		patch.Title = &trimmed
	}
	if patch.Topic != nil {
		trimmed := strings.TrimSpace(*patch.Topic)
		patch.Topic = &trimmed
	}

	task, err := s.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return store.Task{}, err
	}
	s.indexTask(task)
	return task, nil
}

// ToggleTask flips the completed flag and returns the stored record.
func (s *Service) ToggleTask(ctx context.Context, userID string, id int64) (store.Task, error) {
	current, err := s.ownedTask(ctx, userID, id)
	if err != nil {
		return store.Task{}, err
	}
	next := !current.Completed
	task, err := s.store.UpdateTask(ctx, id, store.TaskPatch{Completed: &next})
	if err != nil {
		return store.Task{}, err
	}
	s.indexTask(task)
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, userID string, id int64) error {
	if _, err := s.ownedTask(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTask(id)
	}
	return nil
}

// ownedTask loads the task and hides other users' records behind 404.
func (s *Service) ownedTask(ctx context.Context, userID string, id int64) (store.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	if task.UserID != userID {
		return store.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (s *Service) indexTask(task store.Task) {
	if s.search == nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:        task.ID,
		UserID:    task.UserID,
		Title:     task.Title,
		Topic:     task.Topic,
		Completed: task.Completed,
	})
}

// ---------------------------------------------------------------------------
// Suggestions and stats

func (s *Service) Suggest(ctx context.Context, topic string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "topic is required", nil)
	}
	if s.gen == nil {
		return nil, domainError(http.StatusServiceUnavailable, "GENERATION_UNAVAILABLE", "Suggestion generation not configured", nil)
	}
	titles, err := s.gen.Generate(ctx, topic)
	if err != nil {
		return nil, err
	}
	return titles, nil
}

// Stats derives a user's completion summary from the store counts.
func (s *Service) Stats(ctx context.Context, userID string) (recon.Stats, error) {
	completed, total, err := s.store.TaskCounts(ctx, userID)
	if err != nil {
		return recon.Stats{}, err
	}
	stats := recon.Stats{
		Completed: completed,
		Pending:   total - completed,
		Total:     total,
	}
	if total > 0 {
		stats.CompletionRate = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return stats, nil
}

func (s *Service) Search(ctx context.Context, userID, text, topic string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:        text,
		UserID:      userID,
		FilterTopic: topic,
		Limit:       limit,
		Offset:      offset,
	}), nil
}

func (s *Service) ExportReport(ctx context.Context, req export.Request) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export not configured", nil)
	}
	return s.export.Export(ctx, req)
}

func toReconTasks(tasks []store.Task) []recon.Task {
	view := make([]recon.Task, 0, len(tasks))
	for _, t := range tasks {
		view = append(view, recon.Task{
			ID:        t.ID,
			UserID:    t.UserID,
			Title:     t.Title,
			Completed: t.Completed,
			Topic:     t.Topic,
			CreatedAt: t.CreatedAt,
		})
	}
	return view
}
