package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"taskboard/api/internal/comments"
	"taskboard/api/internal/email"
	"taskboard/api/internal/store"
)

type NotificationStore interface {
	InsertNotification(ctx context.Context, n store.Notification) error
}

// StoreSender persists the notification for the in-app inbox.
type StoreSender struct {
	store NotificationStore
}

func NewStoreSender(s NotificationStore) *StoreSender {
	return &StoreSender{store: s}
}

func (s *StoreSender) Name() string { return "store" }

func (s *StoreSender) Send(ctx context.Context, n Notification) error {
	return s.store.InsertNotification(ctx, store.Notification{
		ID:          n.ID,
		RecipientID: n.Recipient,
		TaskID:      n.TaskID,
		TaskTitle:   n.TaskTitle,
		CommentID:   n.CommentID,
		ActorID:     n.ActorID,
		ActorName:   n.ActorName,
		Excerpt:     n.Excerpt,
		Kind:        string(n.Kind),
		CreatedAt:   n.CreatedAt,
	})
}

type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

type Mailer interface {
	IsConfigured() bool
	SendCommentNotification(to string, data email.CommentNotificationData) error
}

// EmailSender mails the recipient. It is a no-op when SMTP is not configured
// or the recipient has no address.
type EmailSender struct {
	users  UserLookup
	mailer Mailer
	appURL string
}

func NewEmailSender(users UserLookup, mailer Mailer, appURL string) *EmailSender {
	return &EmailSender{users: users, mailer: mailer, appURL: strings.TrimRight(appURL, "/")}
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, n Notification) error {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return nil
	}
	user, err := s.users.GetUserByID(ctx, n.Recipient)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}
	return s.mailer.SendCommentNotification(user.Email, email.CommentNotificationData{
		RecipientName: user.DisplayName(),
		ActorName:     n.ActorName,
		TaskTitle:     n.TaskTitle,
		Excerpt:       n.Excerpt,
		TaskURL:       s.appURL + "/tasks/" + n.TaskID,
		Reply:         n.Kind == comments.NotifyReply,
	})
}

// PubSubSender publishes the notification as JSON on notifications:<recipient>.
type PubSubSender struct {
	client *redis.Client
}

func NewPubSubSender(client *redis.Client) *PubSubSender {
	return &PubSubSender{client: client}
}

func (s *PubSubSender) Name() string { return "pubsub" }

func (s *PubSubSender) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.client.Publish(ctx, Channel(n.Recipient), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Channel is the pub/sub channel a recipient's client subscribes to.
func Channel(recipient string) string {
	return "notifications:" + recipient
}
