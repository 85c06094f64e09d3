package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"taskboard/api/internal/comments"
)

func seededStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db := testDatabase(t)
	ctx := context.Background()
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, role) VALUES
			('u-creator', 'Cara', 'Lee', 'cara@example.com', 'team_leader'),
			('u-assignee', 'Sam', 'Ortiz', 'sam@example.com', 'member');
		INSERT INTO tasks (id, title, assigned_to, created_by) VALUES
			('t-1', 'Ship release', 'u-assignee', 'u-creator'),
			('t-2', 'Other task', 'u-assignee', 'u-creator');
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func TestPostgresStoreCommentTree(t *testing.T) {
	s, ctx := seededStore(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	top := comments.Comment{ID: "cmt_a", Content: "hello", Author: "u-assignee", AuthorName: "Sam Ortiz", Type: comments.TypeComment, CreatedAt: at}
	if err := s.AppendTopLevelComment(ctx, "t-1", top); err != nil {
		t.Fatalf("AppendTopLevelComment() error = %v", err)
	}
	reply := comments.Comment{ID: "cmt_b", Content: "hi back", Author: "u-creator", AuthorName: "Cara Lee", Type: comments.TypeComment, CreatedAt: at.Add(time.Minute), ParentCommentID: "cmt_a"}
	if err := s.AppendReply(ctx, "t-1", "cmt_a", reply); err != nil {
		t.Fatalf("AppendReply() error = %v", err)
	}

	task, err := s.FindTaskByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}
	if task == nil || len(task.Comments) != 2 {
		t.Fatalf("expected two comments, got %+v", task)
	}
	if task.Comments[0].ID != "cmt_a" || task.Comments[1].ParentCommentID != "cmt_a" {
		t.Fatalf("unexpected comment order: %+v", task.Comments)
	}

	missing, err := s.FindTaskByID(ctx, "t-missing")
	if err != nil || missing != nil {
		t.Fatalf("FindTaskByID(missing) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestPostgresStoreRejectsInvalidParents(t *testing.T) {
	s, ctx := seededStore(t)
	at := time.Now().UTC()

	if err := s.AppendTopLevelComment(ctx, "t-1", comments.Comment{ID: "cmt_top", Content: "top", Author: "u-assignee", Type: comments.TypeComment, CreatedAt: at}); err != nil {
		t.Fatalf("AppendTopLevelComment() error = %v", err)
	}
	if err := s.AppendReply(ctx, "t-1", "cmt_top", comments.Comment{ID: "cmt_reply", Content: "r", Author: "u-creator", Type: comments.TypeComment, CreatedAt: at}); err != nil {
		t.Fatalf("AppendReply() error = %v", err)
	}

	cases := []struct {
		name     string
		taskID   string
		parentID string
	}{
		{name: "reply to reply", taskID: "t-1", parentID: "cmt_reply"},
		{name: "unknown parent", taskID: "t-1", parentID: "cmt_nope"},
		{name: "parent on other task", taskID: "t-2", parentID: "cmt_top"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.AppendReply(ctx, tc.taskID, tc.parentID, comments.Comment{ID: "cmt_x" + string(rune('0'+i)), Content: "x", Author: "u-creator", Type: comments.TypeComment, CreatedAt: at})
			if !errors.Is(err, comments.ErrNotFound) {
				t.Fatalf("AppendReply() error = %v, want ErrNotFound", err)
			}
		})
	}

	_, err := s.DB().ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, parent_comment_id, content, author_id)
		VALUES ('cmt_raw', 't-1', 'cmt_reply', 'raw', 'u-creator')
	`)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected trigger to reject nested reply, got: %v", err)
	}
}

func TestPostgresStoreKeepsInsertionOrderUnderClockSkew(t *testing.T) {
	s, ctx := seededStore(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// The second instance's clock runs behind the first.
	first := comments.Comment{ID: "cmt_first", Content: "first", Author: "u-assignee", Type: comments.TypeComment, CreatedAt: at}
	second := comments.Comment{ID: "cmt_second", Content: "second", Author: "u-creator", Type: comments.TypeComment, CreatedAt: at.Add(-time.Minute)}
	for _, c := range []comments.Comment{first, second} {
		if err := s.AppendTopLevelComment(ctx, "t-1", c); err != nil {
			t.Fatalf("AppendTopLevelComment(%s) error = %v", c.ID, err)
		}
	}

	task, err := s.FindTaskByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}
	if len(task.Comments) != 2 || task.Comments[0].ID != "cmt_first" || task.Comments[1].ID != "cmt_second" {
		t.Fatalf("comments not in insertion order: %+v", task.Comments)
	}

	rows, err := s.ListCommentSearchRows(ctx)
	if err != nil {
		t.Fatalf("ListCommentSearchRows() error = %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "cmt_first" {
		t.Fatalf("search rows not in insertion order: %+v", rows)
	}
}

func TestPostgresStoreRejectsCommentUpdates(t *testing.T) {
	s, ctx := seededStore(t)
	c := comments.Comment{ID: "cmt_a", Content: "hello", Author: "u-assignee", Type: comments.TypeComment, CreatedAt: time.Now().UTC()}
	if err := s.AppendTopLevelComment(ctx, "t-1", c); err != nil {
		t.Fatalf("AppendTopLevelComment() error = %v", err)
	}

	_, err := s.DB().ExecContext(ctx, `UPDATE task_comments SET content = 'edited' WHERE id = 'cmt_a'`)
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected update to be rejected, got: %v", err)
	}

	task, err := s.FindTaskByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("FindTaskByID() error = %v", err)
	}
	if task.Comments[0].Content != "hello" {
		t.Fatalf("content = %q, want unchanged", task.Comments[0].Content)
	}
}

func TestPostgresStoreNotifications(t *testing.T) {
	s, ctx := seededStore(t)
	n := Notification{
		ID:          "ntf_1",
		RecipientID: "u-creator",
		TaskID:      "t-1",
		TaskTitle:   "Ship release",
		ActorID:     "u-assignee",
		ActorName:   "Sam Ortiz",
		Excerpt:     "hello",
		Kind:        "comment",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.InsertNotification(ctx, n); err != nil {
		t.Fatalf("InsertNotification() error = %v", err)
	}
	if err := s.InsertNotification(ctx, n); err != nil {
		t.Fatalf("InsertNotification() redelivery error = %v", err)
	}

	count, err := s.UnreadNotificationCount(ctx, "u-creator")
	if err != nil {
		t.Fatalf("UnreadNotificationCount() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread notification, got %d", count)
	}

	ok, err := s.MarkNotificationRead(ctx, "u-assignee", "ntf_1")
	if err != nil || ok {
		t.Fatalf("MarkNotificationRead(other recipient) = %v, %v; want false, nil", ok, err)
	}
	ok, err = s.MarkNotificationRead(ctx, "u-creator", "ntf_1")
	if err != nil || !ok {
		t.Fatalf("MarkNotificationRead() = %v, %v; want true, nil", ok, err)
	}

	unread, err := s.ListNotifications(ctx, "u-creator", true, 10)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(unread))
	}
	all, err := s.ListNotifications(ctx, "u-creator", false, 10)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(all) != 1 || all[0].ReadAt == nil {
		t.Fatalf("expected one read notification, got %+v", all)
	}
}
