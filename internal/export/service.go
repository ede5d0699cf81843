package export

import (
	"context"
	"fmt"
	"time"

	"taskpilot/api/internal/recon"
	"taskpilot/api/internal/store"
)

// DataStore defines the data access the exporter needs.
type DataStore interface {
	ListTasksByUser(ctx context.Context, userID string) ([]store.Task, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
}

// Service renders task reports.
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates a report in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	tasks, err := s.store.ListTasksByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	view := make([]recon.Task, 0, len(tasks))
	for _, t := range tasks {
		if req.FilterTopic != "" && t.Topic != req.FilterTopic {
			continue
		}
		view = append(view, recon.Task{
			ID:        t.ID,
			UserID:    t.UserID,
			Title:     t.Title,
			Completed: t.Completed,
			Topic:     t.Topic,
			CreatedAt: t.CreatedAt,
		})
	}

	stats := recon.ComputeStats(view, nil)
	groups := make([]ReportGroup, 0)
	for _, g := range recon.GroupByTopic(view) {
		group := ReportGroup{Topic: g.Topic}
		for _, t := range g.Tasks {
			group.Tasks = append(group.Tasks, ReportTask{
				Title:     t.Title,
				Completed: t.Completed,
				CreatedAt: t.CreatedAt,
			})
		}
		groups = append(groups, group)
	}

	html, err := RenderReportHTML(TemplateData{
		UserName:       user.DisplayName,
		GeneratedAt:    time.Now(),
		Total:          stats.Total,
		Completed:      stats.Completed,
		CompletionRate: stats.CompletionRate,
		Groups:         groups,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := "task-report"
	if req.FilterTopic != "" {
		filename = "tasks-" + req.FilterTopic
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, filename)
	case FormatDOCX:
		return exportDOCX(html, filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
