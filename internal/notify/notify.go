// Package notify delivers comment notifications after the comment has been
// stored. Delivery failures are reported and logged, never returned to the
// commenter.
package notify

import (
	"context"
	"time"

	"taskboard/api/internal/comments"
	"taskboard/api/internal/util"
)

// Notification is the delivered form of a comments.NotificationEvent.
type Notification struct {
	ID        string                    `json:"id"`
	Recipient string                    `json:"recipient"`
	TaskID    string                    `json:"taskId"`
	TaskTitle string                    `json:"taskTitle"`
	CommentID string                    `json:"commentId"`
	ActorID   string                    `json:"actorId"`
	ActorName string                    `json:"actorName"`
	Excerpt   string                    `json:"excerpt"`
	Kind      comments.NotificationKind `json:"kind"`
	CreatedAt time.Time                 `json:"createdAt"`
}

func newNotification(event comments.NotificationEvent, now time.Time) Notification {
	return Notification{
		ID:        util.NewID("ntf"),
		Recipient: event.Recipient,
		TaskID:    event.TaskID,
		TaskTitle: event.TaskTitle,
		CommentID: event.CommentID,
		ActorID:   event.ActorID,
		ActorName: event.ActorName,
		Excerpt:   event.Excerpt,
		Kind:      event.Kind,
		CreatedAt: now.UTC(),
	}
}

// Sender is one delivery channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Publisher hands post-commit events to the notification pipeline.
type Publisher interface {
	Publish(ctx context.Context, events []comments.NotificationEvent) error
}
