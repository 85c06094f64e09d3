package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskboard/api/internal/comments"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	var avatar sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, role, avatar_url, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.Role, &avatar, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	user.AvatarURL = avatar.String
	return user, nil
}

// FindActor resolves a user for the comment engine. Unknown ids yield nil, nil.
func (s *PostgresStore) FindActor(ctx context.Context, userID string) (*comments.Actor, error) {
	user, err := s.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &comments.Actor{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		Avatar:    user.AvatarURL,
	}, nil
}

// FindTaskByID loads a task with its full comment tree. Unknown ids yield nil, nil.
func (s *PostgresStore) FindTaskByID(ctx context.Context, taskID string) (*comments.Task, error) {
	task := &comments.Task{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(assigned_to, ''), COALESCE(created_by, '')
		FROM tasks
		WHERE id=$1
	`, taskID).Scan(&task.ID, &task.Title, &task.AssignedTo, &task.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, author_id, author_name, COALESCE(author_avatar, ''), type, COALESCE(parent_comment_id, ''), created_at
		FROM task_comments
		WHERE task_id=$1
		ORDER BY seq ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task comments: %w", err)
	}
	defer rows.Close()

	task.Comments = make([]comments.Comment, 0)
	for rows.Next() {
		var item comments.Comment
		if err := rows.Scan(
			&item.ID,
			&item.Content,
			&item.Author,
			&item.AuthorName,
			&item.AuthorAvatar,
			&item.Type,
			&item.ParentCommentID,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task comment: %w", err)
		}
		task.Comments = append(task.Comments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task comments: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) AppendTopLevelComment(ctx context.Context, taskID string, comment comments.Comment) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, content, author_id, author_name, author_avatar, type, created_at)
		SELECT $1, t.id, $3, $4, $5, NULLIF($6, ''), $7, $8
		FROM tasks t
		WHERE t.id=$2
	`, comment.ID, taskID, comment.Content, comment.Author, comment.AuthorName, comment.AuthorAvatar, comment.Type, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert comment rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: task %s", comments.ErrNotFound, taskID)
	}
	return nil
}

// AppendReply inserts comment under parentID only if parentID is still a
// top-level comment of taskID; the check and the insert are one statement.
func (s *PostgresStore) AppendReply(ctx context.Context, taskID, parentID string, comment comments.Comment) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO task_comments (id, task_id, parent_comment_id, content, author_id, author_name, author_avatar, type, created_at)
		SELECT $1, p.task_id, p.id, $4, $5, $6, NULLIF($7, ''), $8, $9
		FROM task_comments p
		WHERE p.id=$3 AND p.task_id=$2 AND p.parent_comment_id IS NULL
	`, comment.ID, taskID, parentID, comment.Content, comment.Author, comment.AuthorName, comment.AuthorAvatar, comment.Type, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert reply rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: comment %s on task %s", comments.ErrNotFound, parentID, taskID)
	}
	return nil
}

// InsertNotification is idempotent on the notification id so a redelivered
// queue entry does not produce a second row.
func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, task_id, task_title, comment_id, actor_id, actor_name, excerpt, kind, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, n.RecipientID, n.TaskID, n.TaskTitle, n.CommentID, n.ActorID, n.ActorName, n.Excerpt, n.Kind, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, task_id, task_title, COALESCE(comment_id, ''), actor_id, actor_name, excerpt, kind, read_at, created_at
		FROM notifications
		WHERE recipient_id=$1
		  AND (NOT $2::boolean OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3
	`, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		var readAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.RecipientID,
			&item.TaskID,
			&item.TaskTitle,
			&item.CommentID,
			&item.ActorID,
			&item.ActorName,
			&item.Excerpt,
			&item.Kind,
			&readAt,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if readAt.Valid {
			item.ReadAt = &readAt.Time
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, recipientID, notificationID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET read_at=COALESCE(read_at, NOW())
		WHERE id=$1 AND recipient_id=$2
	`, notificationID, recipientID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND read_at IS NULL`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// ListCommentSearchRows returns every comment with its task context, in insertion order.
func (s *PostgresStore) ListCommentSearchRows(ctx context.Context) ([]CommentSearchRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, t.title, c.content, c.author_name, COALESCE(t.assigned_to, ''), COALESCE(t.created_by, ''), COALESCE(c.parent_comment_id, ''), c.created_at
		FROM task_comments c
		JOIN tasks t ON t.id = c.task_id
		ORDER BY c.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list comment search rows: %w", err)
	}
	defer rows.Close()

	items := make([]CommentSearchRow, 0)
	for rows.Next() {
		var item CommentSearchRow
		if err := rows.Scan(
			&item.ID,
			&item.TaskID,
			&item.TaskTitle,
			&item.Content,
			&item.AuthorName,
			&item.AssignedTo,
			&item.CreatedBy,
			&item.ParentCommentID,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment search row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comment search rows: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
