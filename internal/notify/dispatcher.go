package notify

import (
	"context"
	"log"
	"time"

	"taskboard/api/internal/comments"
)

// Failure records one sender that could not deliver one notification.
type Failure struct {
	Notification Notification
	Sender       string
	Err          error
}

// Report summarises a dispatch. Delivered counts successful sender calls.
type Report struct {
	Delivered int
	Failures  []Failure
}

func (r *Report) merge(other Report) {
	r.Delivered += other.Delivered
	r.Failures = append(r.Failures, other.Failures...)
}

type Dispatcher struct {
	senders []Sender
	now     func() time.Time
}

func NewDispatcher(senders ...Sender) *Dispatcher {
	return &Dispatcher{senders: senders, now: time.Now}
}

// Senders returns the names of the configured senders in call order.
func (d *Dispatcher) Senders() []string {
	names := make([]string, 0, len(d.senders))
	for _, sender := range d.senders {
		names = append(names, sender.Name())
	}
	return names
}

// Dispatch attempts every sender for every event, in order. A failed
// delivery is logged and counted and does not stop the remaining ones.
func (d *Dispatcher) Dispatch(ctx context.Context, events []comments.NotificationEvent) Report {
	var report Report
	for _, event := range events {
		report.merge(d.Deliver(ctx, newNotification(event, d.now()), nil))
	}
	return report
}

// Publish dispatches inline. It never fails.
func (d *Dispatcher) Publish(ctx context.Context, events []comments.NotificationEvent) error {
	d.Dispatch(ctx, events)
	return nil
}

// NotifyReply delivers a single reply notification.
func (d *Dispatcher) NotifyReply(ctx context.Context, event comments.NotificationEvent) Report {
	event.Kind = comments.NotifyReply
	return d.Dispatch(ctx, []comments.NotificationEvent{event})
}

// NotifyComment delivers a single comment notification.
func (d *Dispatcher) NotifyComment(ctx context.Context, event comments.NotificationEvent) Report {
	event.Kind = comments.NotifyComment
	return d.Dispatch(ctx, []comments.NotificationEvent{event})
}

// Deliver sends n through the named senders, or all senders when only is empty.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification, only []string) Report {
	var report Report
	for _, sender := range d.senders {
		if len(only) > 0 && !contains(only, sender.Name()) {
			continue
		}
		if err := sender.Send(ctx, n); err != nil {
			log.Printf("notify: %s to %s for task %s via %s: %v", n.Kind, n.Recipient, n.TaskID, sender.Name(), err)
			report.Failures = append(report.Failures, Failure{Notification: n, Sender: sender.Name(), Err: err})
			continue
		}
		report.Delivered++
	}
	return report
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
