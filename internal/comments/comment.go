// Package comments implements the two-level comment tree kept on each task:
// top-level comments and one level of replies beneath them, plus the rule
// deciding who hears about a new entry.
package comments

import (
	"strings"
	"time"
)

// TypeComment is the type tag stamped on every entry created here.
const TypeComment = "comment"

// NodeKind distinguishes a top-level comment from a reply.
type NodeKind string

const (
	KindTopLevel NodeKind = "top_level"
	KindReply    NodeKind = "reply"
)

type Comment struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	Author          string    `json:"author"`
	AuthorName      string    `json:"authorName"`
	AuthorAvatar    string    `json:"authorAvatar,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	Type            string    `json:"type"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
}

func (c Comment) Kind() NodeKind {
	if c.ParentCommentID == "" {
		return KindTopLevel
	}
	return KindReply
}

// Task is the aggregate that owns a comment tree. Comments are kept in
// insertion order, which is also chronological order.
type Task struct {
	ID         string
	Title      string
	AssignedTo string
	CreatedBy  string
	Comments   []Comment
}

// TopLevel returns the top-level comment with the given id. Replies never
// match, so a reply can never become a parent.
func (t *Task) TopLevel(id string) (Comment, bool) {
	for _, c := range t.Comments {
		if c.ID == id && c.Kind() == KindTopLevel {
			return c, true
		}
	}
	return Comment{}, false
}

// Actor is the authenticated user submitting or reading comments.
type Actor struct {
	ID        string
	FirstName string
	LastName  string
	Role      string
	Avatar    string
}

func (a Actor) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Thread is a top-level comment together with its replies.
type Thread struct {
	Comment
	Replies []Comment `json:"replies"`
}

// BuildTree groups comments into threads. Threads and replies keep insertion
// order; replies whose parent is missing or is itself a reply are dropped.
func BuildTree(items []Comment) []Thread {
	threads := make([]Thread, 0)
	index := make(map[string]int)
	for _, c := range items {
		if c.Kind() != KindTopLevel {
			continue
		}
		index[c.ID] = len(threads)
		threads = append(threads, Thread{Comment: c, Replies: []Comment{}})
	}
	for _, c := range items {
		if c.Kind() != KindReply {
			continue
		}
		pos, ok := index[c.ParentCommentID]
		if !ok {
			continue
		}
		threads[pos].Replies = append(threads[pos].Replies, c)
	}
	return threads
}
