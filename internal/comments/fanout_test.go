package comments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanNotifications(t *testing.T) {
	cases := []struct {
		name         string
		task         Task
		comment      Comment
		parentAuthor string
		want         []NotificationEvent
	}{
		{
			name:    "top-level distinct creator and assignee",
			task:    Task{ID: "t", CreatedBy: "U1", AssignedTo: "U2"},
			comment: Comment{Author: "U3"},
			want:    []NotificationEvent{{Recipient: "U1", Kind: NotifyComment}, {Recipient: "U2", Kind: NotifyComment}},
		},
		{
			name:    "top-level by creator",
			task:    Task{ID: "t", CreatedBy: "U1", AssignedTo: "U2"},
			comment: Comment{Author: "U1"},
			want:    []NotificationEvent{{Recipient: "U2", Kind: NotifyComment}},
		},
		{
			name:    "top-level unassigned",
			task:    Task{ID: "t", CreatedBy: "U1"},
			comment: Comment{Author: "U3"},
			want:    []NotificationEvent{{Recipient: "U1", Kind: NotifyComment}},
		},
		{
			name:    "top-level orphan task",
			task:    Task{ID: "t"},
			comment: Comment{Author: "U3"},
			want:    nil,
		},
		{
			name:         "reply to third party",
			task:         Task{ID: "t", CreatedBy: "U1", AssignedTo: "U2"},
			comment:      Comment{Author: "U3", ParentCommentID: "c"},
			parentAuthor: "U4",
			want: []NotificationEvent{
				{Recipient: "U4", Kind: NotifyReply},
				{Recipient: "U2", Kind: NotifyComment},
				{Recipient: "U1", Kind: NotifyComment},
			},
		},
		{
			name:         "reply to own comment",
			task:         Task{ID: "t", CreatedBy: "U1", AssignedTo: "U2"},
			comment:      Comment{Author: "U3", ParentCommentID: "c"},
			parentAuthor: "U3",
			want: []NotificationEvent{
				{Recipient: "U2", Kind: NotifyComment},
				{Recipient: "U1", Kind: NotifyComment},
			},
		},
		{
			name:         "reply to creator comment",
			task:         Task{ID: "t", CreatedBy: "U1", AssignedTo: "U2"},
			comment:      Comment{Author: "U3", ParentCommentID: "c"},
			parentAuthor: "U1",
			want: []NotificationEvent{
				{Recipient: "U1", Kind: NotifyReply},
				{Recipient: "U2", Kind: NotifyComment},
			},
		},
		{
			name:    "reply with parent missing",
			task:    Task{ID: "t", CreatedBy: "U1", AssignedTo: "U1"},
			comment: Comment{Author: "U3", ParentCommentID: "c"},
			want:    []NotificationEvent{{Recipient: "U1", Kind: NotifyComment}},
		},
		{
			name:         "assignee replies to creator",
			task:         Task{ID: "t", CreatedBy: "U1", AssignedTo: "U2"},
			comment:      Comment{Author: "U2", ParentCommentID: "c"},
			parentAuthor: "U1",
			want:         []NotificationEvent{{Recipient: "U1", Kind: NotifyReply}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := tc.task
			got := PlanNotifications(&task, tc.comment, tc.parentAuthor, DefaultExcerptLength)
			assert.Len(t, got, len(tc.want))
			for i := range tc.want {
				if i >= len(got) {
					break
				}
				assert.Equal(t, tc.want[i].Recipient, got[i].Recipient, "event %d recipient", i)
				assert.Equal(t, tc.want[i].Kind, got[i].Kind, "event %d kind", i)
			}
		})
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("  short ", 10))
	assert.Equal(t, "abc...", Excerpt("abcdef", 3))
	assert.Equal(t, "héé...", Excerpt("héééé", 3))
	long := strings.Repeat("x", 150)
	assert.Equal(t, strings.Repeat("x", 100)+"...", Excerpt(long, DefaultExcerptLength))
	assert.Equal(t, long, Excerpt(long, 0))
}

func TestBuildTreeKeepsOrderAndDropsOrphans(t *testing.T) {
	items := []Comment{
		{ID: "c1"},
		{ID: "r1", ParentCommentID: "c1"},
		{ID: "c2"},
		{ID: "r2", ParentCommentID: "c1"},
		{ID: "rr", ParentCommentID: "r1"},
		{ID: "ghost", ParentCommentID: "gone"},
		{ID: "r3", ParentCommentID: "c2"},
	}

	threads := BuildTree(items)

	if assert.Len(t, threads, 2) {
		assert.Equal(t, "c1", threads[0].ID)
		assert.Equal(t, []string{"r1", "r2"}, ids(threads[0].Replies))
		assert.Equal(t, "c2", threads[1].ID)
		assert.Equal(t, []string{"r3"}, ids(threads[1].Replies))
	}
	assert.NotNil(t, BuildTree(nil))
}

func ids(items []Comment) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}
