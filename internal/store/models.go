package store

import (
	"strings"
	"time"
)

type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      string
	AvatarURL string
	CreatedAt time.Time
}

func (u User) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

type Notification struct {
	ID          string
	RecipientID string
	TaskID      string
	TaskTitle   string
	CommentID   string
	ActorID     string
	ActorName   string
	Excerpt     string
	Kind        string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// CommentSearchRow is a comment joined with the task fields search needs.
type CommentSearchRow struct {
	ID              string
	TaskID          string
	TaskTitle       string
	Content         string
	AuthorName      string
	AssignedTo      string
	CreatedBy       string
	ParentCommentID string
	CreatedAt       time.Time
}
