package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/comments"
	"taskboard/api/internal/config"
	"taskboard/api/internal/notify"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Role      string
	Actor     comments.Actor
	ExpiresAt time.Time
}

type CommentInput struct {
	Content         string `json:"content"`
	ParentCommentID string `json:"parentCommentId"`
}

type dataStore interface {
	comments.TaskStore
	comments.UserDirectory
	ListNotifications(context.Context, string, bool, int) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string) (bool, error)
	UnreadNotificationCount(context.Context, string) (int, error)
	Ping(context.Context) error
}

type commentSearch interface {
	Search(context.Context, search.Query) search.Response
	IndexComment(search.CommentRecord)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	engine   *comments.Engine
	notifier notify.Publisher
	search   commentSearch
}

// NewService wires the comment engine to its store. searchSvc may be nil.
func NewService(cfg config.Config, dataStore dataStore, notifier notify.Publisher, searchSvc commentSearch) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		engine:   comments.NewEngine(dataStore, comments.WithExcerptLength(cfg.ExcerptLength)),
		notifier: notifier,
		search:   searchSvc,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	actor, err := comments.ResolveActor(ctx, s.store, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	session := Session{
		Token:    token,
		UserID:   actor.ID,
		UserName: actor.DisplayName(),
		Role:     string(rbac.Normalize(actor.Role)),
		Actor:    actor,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// SubmitComment appends a comment or reply and hands its notifications to the
// notifier. Notification problems are logged and never fail the submission.
func (s *Service) SubmitComment(ctx context.Context, session Session, taskID string, input CommentInput) (comments.Comment, error) {
	result, err := s.engine.Submit(ctx, session.Actor, comments.Submission{
		TaskID:          taskID,
		Content:         input.Content,
		ParentCommentID: input.ParentCommentID,
	})
	if err != nil {
		return comments.Comment{}, err
	}

	if s.search != nil {
		s.search.IndexComment(commentRecord(result.Task, result.Comment))
	}

	if s.notifier != nil && len(result.Events) > 0 {
		if err := s.notifier.Publish(context.WithoutCancel(ctx), result.Events); err != nil {
			log.Printf("notify: publish %d events for task %s: %v", len(result.Events), result.Task.ID, err)
		}
	}
	return result.Comment, nil
}

func (s *Service) CommentTree(ctx context.Context, session Session, taskID string) ([]comments.Thread, error) {
	_, threads, err := s.engine.Tree(ctx, session.Actor, taskID)
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (s *Service) Notifications(ctx context.Context, session Session, unreadOnly bool, limit int) ([]store.Notification, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.store.ListNotifications(ctx, session.UserID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.store.UnreadNotificationCount(ctx, session.UserID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", "notification id is required", nil)
	}
	ok, err := s.store.MarkNotificationRead(ctx, session.UserID, notificationID)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("notification %s not found", notificationID), nil)
	}
	return nil
}

// Search runs a comment search. Members only see tasks they are assigned to
// or created.
func (s *Service) Search(ctx context.Context, session Session, text string, limit, offset int) search.Response {
	q := search.Query{
		Text:   strings.TrimSpace(text),
		Limit:  limit,
		Offset: offset,
	}
	if !rbac.Can(rbac.Normalize(session.Role), rbac.ActionRead) {
		q.ViewerID = session.UserID
	}
	if s.search == nil || q.Text == "" {
		return search.Response{Results: []search.Result{}, Total: 0, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

func commentRecord(task *comments.Task, c comments.Comment) search.CommentRecord {
	return search.CommentRecord{
		ID:              c.ID,
		TaskID:          task.ID,
		TaskTitle:       task.Title,
		Content:         c.Content,
		AuthorName:      c.AuthorName,
		AssignedTo:      task.AssignedTo,
		CreatedBy:       task.CreatedBy,
		ParentCommentID: c.ParentCommentID,
		CreatedAt:       c.CreatedAt.UnixMilli(),
	}
}
