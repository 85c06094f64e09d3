package comments

import (
	"strings"
	"unicode/utf8"
)

// DefaultExcerptLength is the number of runes of content carried in a
// notification.
const DefaultExcerptLength = 100

// NotificationKind tells the recipient why they are being notified.
type NotificationKind string

const (
	NotifyReply   NotificationKind = "reply"
	NotifyComment NotificationKind = "comment"
)

// NotificationEvent is one post-commit notification owed to a recipient.
type NotificationEvent struct {
	Recipient string           `json:"recipient"`
	TaskID    string           `json:"taskId"`
	TaskTitle string           `json:"taskTitle"`
	CommentID string           `json:"commentId"`
	ActorID   string           `json:"actorId"`
	ActorName string           `json:"actorName"`
	Excerpt   string           `json:"excerpt"`
	Kind      NotificationKind `json:"kind"`
}

// Excerpt returns the first n runes of content, marking a cut with "...".
func Excerpt(content string, n int) string {
	content = strings.TrimSpace(content)
	if n <= 0 || utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

type fanout struct {
	task    *Task
	comment Comment
	excerpt string
	events  []NotificationEvent
}

func (f *fanout) add(recipient string, kind NotificationKind) {
	f.events = append(f.events, NotificationEvent{
		Recipient: recipient,
		TaskID:    f.task.ID,
		TaskTitle: f.task.Title,
		CommentID: f.comment.ID,
		ActorID:   f.comment.Author,
		ActorName: f.comment.AuthorName,
		Excerpt:   f.excerpt,
		Kind:      kind,
	})
}

// PlanNotifications decides who hears about comment, in dispatch order.
//
// For a reply, parentAuthor is the author of the comment being replied to,
// or "" when the parent could not be located. The parent author receives a
// reply notification and is then left out of the generic comment
// notifications; the assignee and creator are never notified twice.
func PlanNotifications(task *Task, comment Comment, parentAuthor string, excerptLength int) []NotificationEvent {
	f := &fanout{task: task, comment: comment, excerpt: Excerpt(comment.Content, excerptLength)}
	author := comment.Author
	assigned := task.AssignedTo
	creator := task.CreatedBy

	if comment.Kind() == KindReply {
		if parentAuthor != "" && parentAuthor != author {
			f.add(parentAuthor, NotifyReply)
		}
		if assigned != "" && assigned != author && (parentAuthor == "" || parentAuthor != assigned) {
			f.add(assigned, NotifyComment)
		}
		if creator != "" && creator != author && (parentAuthor == "" || parentAuthor != creator) && creator != assigned {
			f.add(creator, NotifyComment)
		}
		return f.events
	}

	if creator != "" && creator != author {
		f.add(creator, NotifyComment)
	}
	if assigned != "" && assigned != author && assigned != creator {
		f.add(assigned, NotifyComment)
	}
	return f.events
}
