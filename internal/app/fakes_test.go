package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/comments"
	"taskboard/api/internal/config"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

const testSecret = "test-secret"

// fakeStore keeps tasks and users in memory; the Fn fields override a method.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*comments.Task
	users map[string]*comments.Actor

	notifications []store.Notification

	appendTopLevelCommentFn func(context.Context, string, comments.Comment) error
	markNotificationReadFn  func(context.Context, string, string) (bool, error)
	pingFn                  func(context.Context) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks: map[string]*comments.Task{},
		users: map[string]*comments.Actor{},
	}
}

func (f *fakeStore) addUser(id, first, last, role string) {
	f.users[id] = &comments.Actor{ID: id, FirstName: first, LastName: last, Role: role}
}

func (f *fakeStore) addTask(task *comments.Task) {
	f.tasks[task.ID] = task
}

func (f *fakeStore) FindTaskByID(_ context.Context, taskID string) (*comments.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, nil
	}
	clone := *task
	clone.Comments = append([]comments.Comment(nil), task.Comments...)
	return &clone, nil
}

func (f *fakeStore) AppendTopLevelComment(ctx context.Context, taskID string, comment comments.Comment) error {
	if f.appendTopLevelCommentFn != nil {
		return f.appendTopLevelCommentFn(ctx, taskID, comment)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return comments.ErrNotFound
	}
	task.Comments = append(task.Comments, comment)
	return nil
}

func (f *fakeStore) AppendReply(_ context.Context, taskID, parentID string, comment comments.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return comments.ErrNotFound
	}
	if _, ok := task.TopLevel(parentID); !ok {
		return comments.ErrNotFound
	}
	task.Comments = append(task.Comments, comment)
	return nil
}

func (f *fakeStore) FindActor(_ context.Context, userID string) (*comments.Actor, error) {
	actor, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *actor
	return &copied, nil
}

func (f *fakeStore) ListNotifications(_ context.Context, recipientID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	items := make([]store.Notification, 0)
	for _, n := range f.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		items = append(items, n)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, recipientID, notificationID string) (bool, error) {
	if f.markNotificationReadFn != nil {
		return f.markNotificationReadFn(ctx, recipientID, notificationID)
	}
	for i := range f.notifications {
		if f.notifications[i].ID == notificationID && f.notifications[i].RecipientID == recipientID {
			now := time.Now()
			f.notifications[i].ReadAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UnreadNotificationCount(_ context.Context, recipientID string) (int, error) {
	count := 0
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeNotifier struct {
	events []comments.NotificationEvent
	err    error
}

func (n *fakeNotifier) Publish(_ context.Context, events []comments.NotificationEvent) error {
	n.events = append(n.events, events...)
	return n.err
}

type fakeSearch struct {
	queries []search.Query
	indexed []search.CommentRecord
}

func (s *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	s.queries = append(s.queries, q)
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (s *fakeSearch) IndexComment(c search.CommentRecord) {
	s.indexed = append(s.indexed, c)
}

func newTestService(fs *fakeStore, notifier *fakeNotifier, searchSvc *fakeSearch) *Service {
	cfg := config.Config{JWTSecret: testSecret, ExcerptLength: 100}
	var searcher commentSearch
	if searchSvc != nil {
		searcher = searchSvc
	}
	return NewService(cfg, fs, notifier, searcher)
}

func tokenFor(userID string) string {
	token, err := auth.IssueToken([]byte(testSecret), auth.NewClaims(userID, "", "", time.Hour))
	if err != nil {
		panic(errors.New("issue test token: " + err.Error()))
	}
	return token
}
