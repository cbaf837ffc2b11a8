package activity

import (
	"context"
	"log/slog"
	"time"
)

// Repository persists activity entries.
type Repository interface {
	Log(ctx context.Context, entry *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
}

// ListOptions filters activity listings.
type ListOptions struct {
	Code   string
	Action string
	Limit  int
}

// Service is the logActivity hook handed to the workflow layer. It stamps
// entries with session identity and swallows sink failures after logging them:
// an audit write must never fail a workflow operation.
type Service struct {
	repo      Repository
	workspace string
	sessionID string
	logger    *slog.Logger
}

// NewService creates an activity service bound to a workspace and session.
func NewService(repo Repository, workspace, sessionID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, workspace: workspace, sessionID: sessionID, logger: logger}
}

// Log records one activity entry.
func (s *Service) Log(ctx context.Context, entry *Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Workspace == "" {
		entry.Workspace = s.workspace
	}
	if entry.SessionID == "" {
		entry.SessionID = s.sessionID
	}
	if entry.Status == "" {
		entry.Status = "OK"
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		s.logger.Warn("activity log write failed", "action", entry.Action, "code", entry.Code, "error", err)
		return err
	}
	return nil
}

// List returns recent activity entries.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	return s.repo.List(ctx, opts)
}
