package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/util"
)

// TaskStore persists comment trees. FindTaskByID returns nil, nil for an
// unknown task. AppendReply must fail with an error wrapping ErrNotFound when
// parentID is not a top-level comment of the task at write time.
type TaskStore interface {
	FindTaskByID(ctx context.Context, taskID string) (*Task, error)
	AppendTopLevelComment(ctx context.Context, taskID string, comment Comment) error
	AppendReply(ctx context.Context, taskID, parentID string, comment Comment) error
}

// UserDirectory resolves user ids. FindActor returns nil, nil for an unknown
// user.
type UserDirectory interface {
	FindActor(ctx context.Context, userID string) (*Actor, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Submission is a new comment or reply as received at the boundary.
type Submission struct {
	TaskID          string
	Content         string
	ParentCommentID string
}

// Result carries the stored comment, the task it was added to as loaded
// before the append, and the notifications it owes. Events are not
// dispatched by the engine.
type Result struct {
	Task    *Task
	Comment Comment
	Events  []NotificationEvent
}

type Engine struct {
	tasks         TaskStore
	clock         Clock
	newID         func() string
	excerptLength int
}

type Option func(*Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func WithExcerptLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.excerptLength = n
		}
	}
}

func NewEngine(tasks TaskStore, opts ...Option) *Engine {
	e := &Engine{
		tasks:         tasks,
		clock:         systemClock{},
		newID:         func() string { return util.NewID("cmt") },
		excerptLength: DefaultExcerptLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveActor loads the caller from the directory, failing with ErrAuth when
// the id is blank or unknown.
func ResolveActor(ctx context.Context, users UserDirectory, userID string) (Actor, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Actor{}, fmt.Errorf("%w: missing caller identity", ErrAuth)
	}
	actor, err := users.FindActor(ctx, userID)
	if err != nil {
		return Actor{}, fmt.Errorf("resolve caller: %w", err)
	}
	if actor == nil {
		return Actor{}, fmt.Errorf("%w: unknown user %s", ErrAuth, userID)
	}
	return *actor, nil
}

// Authorize checks that actor may comment on task: admins, team leaders and
// the task's assignee may.
func Authorize(actor Actor, task *Task) error {
	role := rbac.Normalize(actor.Role)
	if rbac.Can(role, rbac.ActionComment) {
		return nil
	}
	if rbac.Participant(rbac.ActionComment, task.AssignedTo != "" && task.AssignedTo == actor.ID, task.CreatedBy != "" && task.CreatedBy == actor.ID) {
		return nil
	}
	return fmt.Errorf("%w: %s may not comment on task %s", ErrPermission, actor.ID, task.ID)
}

// CanRead reports whether actor may view task's comments.
func CanRead(actor Actor, task *Task) bool {
	role := rbac.Normalize(actor.Role)
	if rbac.Can(role, rbac.ActionRead) {
		return true
	}
	return rbac.Participant(rbac.ActionRead, task.AssignedTo != "" && task.AssignedTo == actor.ID, task.CreatedBy != "" && task.CreatedBy == actor.ID)
}

// Submit validates, authorizes and appends a comment or reply, returning the
// stored node and the notifications owed. Every failure before the append
// leaves the task untouched.
func (e *Engine) Submit(ctx context.Context, actor Actor, in Submission) (Result, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return Result{}, fmt.Errorf("%w: missing caller identity", ErrAuth)
	}
	taskID := strings.TrimSpace(in.TaskID)
	if taskID == "" {
		return Result{}, fmt.Errorf("%w: task id is required", ErrValidation)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return Result{}, fmt.Errorf("%w: content is required", ErrValidation)
	}

	task, err := e.tasks.FindTaskByID(ctx, taskID)
	if err != nil {
		return Result{}, fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return Result{}, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if err := Authorize(actor, task); err != nil {
		return Result{}, err
	}

	comment := Comment{
		ID:              e.newID(),
		Content:         content,
		Author:          actor.ID,
		AuthorName:      actor.DisplayName(),
		AuthorAvatar:    actor.Avatar,
		CreatedAt:       e.clock.Now(),
		Type:            TypeComment,
		ParentCommentID: strings.TrimSpace(in.ParentCommentID),
	}

	parentAuthor := ""
	if comment.Kind() == KindReply {
		parent, ok := task.TopLevel(comment.ParentCommentID)
		if !ok {
			return Result{}, fmt.Errorf("%w: comment %s on task %s", ErrNotFound, comment.ParentCommentID, task.ID)
		}
		parentAuthor = parent.Author
		err = e.tasks.AppendReply(ctx, task.ID, parent.ID, comment)
	} else {
		err = e.tasks.AppendTopLevelComment(ctx, task.ID, comment)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return Result{
		Task:    task,
		Comment: comment,
		Events:  PlanNotifications(task, comment, parentAuthor, e.excerptLength),
	}, nil
}

// Tree returns task's comments grouped into threads.
func (e *Engine) Tree(ctx context.Context, actor Actor, taskID string) (*Task, []Thread, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, nil, fmt.Errorf("%w: task id is required", ErrValidation)
	}
	task, err := e.tasks.FindTaskByID(ctx, taskID)
	if err != nil {
		return nil, nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return nil, nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if !CanRead(actor, task) {
		return nil, nil, fmt.Errorf("%w: %s may not view task %s", ErrPermission, actor.ID, task.ID)
	}
	return task, BuildTree(task.Comments), nil
}
