package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/api/internal/comments"
)

const (
	defaultQueueKey    = "notify:queue"
	defaultDelayedKey  = "notify:delayed"
	defaultDeadKey     = "notify:dead"
	DefaultMaxAttempts = 5

	// DefaultRetryBackoff is the wait before the first retry. Each later
	// retry waits twice as long, up to maxRetryBackoff.
	DefaultRetryBackoff = 5 * time.Second
	maxRetryBackoff     = 10 * time.Minute

	requeueTimeout = 5 * time.Second
)

// Entry is one queued notification. Pending names the senders still owed a
// delivery; empty means all of them.
type Entry struct {
	Notification Notification `json:"notification"`
	Pending      []string     `json:"pending,omitempty"`
	Attempts     int          `json:"attempts"`
	LastError    string       `json:"lastError,omitempty"`
	NotBefore    time.Time    `json:"notBefore"`
}

// Queue defers delivery to a Worker through a Redis list. Entries waiting
// out a retry backoff sit in a sorted set scored by NotBefore until a worker
// promotes them back onto the list.
type Queue struct {
	client     *redis.Client
	key        string
	delayedKey string
	deadKey    string
	now        func() time.Time
}

// NewQueue connects to redisURL and verifies the connection.
func NewQueue(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewQueueWithClient(client), nil
}

func NewQueueWithClient(client *redis.Client) *Queue {
	return &Queue{
		client:     client,
		key:        defaultQueueKey,
		delayedKey: defaultDelayedKey,
		deadKey:    defaultDeadKey,
		now:        time.Now,
	}
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

// Publish enqueues one entry per event.
func (q *Queue) Publish(ctx context.Context, events []comments.NotificationEvent) error {
	if len(events) == 0 {
		return nil
	}
	payloads := make([]interface{}, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(Entry{Notification: newNotification(event, q.now())})
		if err != nil {
			return fmt.Errorf("marshal queue entry: %w", err)
		}
		payloads = append(payloads, payload)
	}
	if err := q.client.LPush(ctx, q.key, payloads...).Err(); err != nil {
		return fmt.Errorf("enqueue notifications: %w", err)
	}
	return nil
}

func (q *Queue) push(ctx context.Context, key string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	return q.client.LPush(ctx, key, payload).Err()
}

// delay parks entry until entry.NotBefore.
func (q *Queue) delay(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	return q.client.ZAdd(ctx, q.delayedKey, redis.Z{
		Score:  float64(entry.NotBefore.UnixMilli()),
		Member: payload,
	}).Err()
}

// promote moves delayed entries that are due at now onto the ready list and
// returns how many it moved. ZREM decides ownership when several workers race.
func (q *Queue) promote(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list delayed entries: %w", err)
	}
	moved := 0
	for _, payload := range due {
		removed, err := q.client.ZRem(ctx, q.delayedKey, payload).Result()
		if err != nil {
			return moved, fmt.Errorf("claim delayed entry: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
			return moved, fmt.Errorf("promote delayed entry: %w", err)
		}
		moved++
	}
	return moved, nil
}

// Len is the number of entries ready for delivery.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Delayed is the number of entries waiting out a retry backoff.
func (q *Queue) Delayed(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.delayedKey).Result()
}

// DeadLetters lists entries that ran out of attempts, newest first.
func (q *Queue) DeadLetters(ctx context.Context) ([]Entry, error) {
	raw, err := q.client.LRange(ctx, q.deadKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal dead letter: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Worker drains a Queue through a Dispatcher.
type Worker struct {
	queue       *Queue
	dispatcher  *Dispatcher
	maxAttempts int
	backoff     time.Duration
	pollTimeout time.Duration
	now         func() time.Time
}

func NewWorker(queue *Queue, dispatcher *Dispatcher, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Worker{
		queue:       queue,
		dispatcher:  dispatcher,
		maxAttempts: maxAttempts,
		backoff:     DefaultRetryBackoff,
		pollTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

// retryDelay is the backoff before attempt number attempts+1.
func (w *Worker) retryDelay(attempts int) time.Duration {
	delay := w.backoff
	for i := 1; i < attempts && delay < maxRetryBackoff; i++ {
		delay *= 2
	}
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	return delay
}

// Run blocks on the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.queue.promote(ctx, w.now()); err != nil && ctx.Err() == nil {
			log.Printf("notify: %v", err)
		}
		result, err := w.queue.client.BRPop(ctx, w.pollTimeout, w.queue.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("notify: pop queue: %v", err)
			time.Sleep(time.Second)
			continue
		}
		// BRPOP returns [key, value].
		w.handle(ctx, result[1])
	}
}

// Drain processes entries until no ready entry is left and returns how many
// it handled. Entries still waiting out a backoff stay delayed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	if _, err := w.queue.promote(ctx, w.now()); err != nil {
		return 0, err
	}
	handled := 0
	for {
		payload, err := w.queue.client.RPop(ctx, w.queue.key).Result()
		if errors.Is(err, redis.Nil) {
			return handled, nil
		}
		if err != nil {
			return handled, fmt.Errorf("pop queue: %w", err)
		}
		w.handle(ctx, payload)
		handled++
	}
}

func (w *Worker) handle(ctx context.Context, payload string) {
	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		log.Printf("notify: drop malformed queue entry: %v", err)
		return
	}

	report := w.dispatcher.Deliver(ctx, entry.Notification, entry.Pending)
	if len(report.Failures) == 0 {
		return
	}

	entry.Pending = entry.Pending[:0]
	for _, failure := range report.Failures {
		entry.Pending = append(entry.Pending, failure.Sender)
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	// The worker is stopping; the entry goes back as-is so the next worker
	// picks it up without spending an attempt.
	if ctx.Err() != nil {
		if err := w.queue.push(pushCtx, w.queue.key, entry); err != nil {
			log.Printf("notify: requeue %s on shutdown: %v", entry.Notification.ID, err)
		}
		return
	}

	entry.Attempts++
	entry.LastError = report.Failures[len(report.Failures)-1].Err.Error()

	if entry.Attempts >= w.maxAttempts {
		log.Printf("notify: giving up on %s to %s after %d attempts", entry.Notification.Kind, entry.Notification.Recipient, entry.Attempts)
		if err := w.queue.push(pushCtx, w.queue.deadKey, entry); err != nil {
			log.Printf("notify: dead-letter %s: %v", entry.Notification.ID, err)
		}
		return
	}

	entry.NotBefore = w.now().Add(w.retryDelay(entry.Attempts))
	if err := w.queue.delay(pushCtx, entry); err != nil {
		log.Printf("notify: requeue %s: %v", entry.Notification.ID, err)
	}
}
