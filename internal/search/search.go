package search

import (
	"context"
	"time"
)

// Result is a single comment hit returned to the caller.
type Result struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"taskId"`
	TaskTitle       string    `json:"taskTitle"`
	Snippet         string    `json:"snippet"`
	AuthorName      string    `json:"authorName"`
	ParentCommentID string    `json:"parentCommentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`

	assignedTo string
	createdBy  string
}

// Query describes a search request. When ViewerID is set, only comments on
// tasks the viewer is assigned to or created are returned.
type Query struct {
	Text     string
	TaskID   string
	ViewerID string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Index is a Searcher that can also accept comment records.
type Index interface {
	Searcher
	IndexComment(c CommentRecord) error
	IndexComments(records []CommentRecord) error
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID              string `json:"id"`
	TaskID          string `json:"taskId"`
	TaskTitle       string `json:"taskTitle"`
	Content         string `json:"content"`
	AuthorName      string `json:"authorName"`
	AssignedTo      string `json:"assignedTo"`
	CreatedBy       string `json:"createdBy"`
	ParentCommentID string `json:"parentCommentId"`
	CreatedAt       int64  `json:"createdAt"`
}
