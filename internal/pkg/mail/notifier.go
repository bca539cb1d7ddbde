package mail

import (
	"context"
)

// Notifier sends the account lifecycle mails.
type Notifier interface {
	SendVerification(ctx context.Context, to, name, code string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// Enqueuer hands a message to a background worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, msg Message) error
}

// DirectNotifier sends on the request goroutine, so callers see SMTP errors.
type DirectNotifier struct {
	mailer Mailer
}

func NewDirectNotifier(mailer Mailer) *DirectNotifier {
	return &DirectNotifier{mailer: mailer}
}

func (n *DirectNotifier) SendVerification(ctx context.Context, to, name, code string) error {
	msg, err := VerificationEmail(to, name, code)
	if err != nil {
		return err
	}
	return n.mailer.Send(msg)
}

func (n *DirectNotifier) SendWelcome(ctx context.Context, to, name string) error {
	msg, err := WelcomeEmail(to, name)
	if err != nil {
		return err
	}
	return n.mailer.Send(msg)
}

// QueueNotifier defers delivery to the job queue; only enqueue errors surface.
type QueueNotifier struct {
	queue Enqueuer
}

func NewQueueNotifier(queue Enqueuer) *QueueNotifier {
	return &QueueNotifier{queue: queue}
}

func (n *QueueNotifier) SendVerification(ctx context.Context, to, name, code string) error {
	msg, err := VerificationEmail(to, name, code)
	if err != nil {
		return err
	}
	return n.queue.EnqueueEmail(ctx, msg)
}

func (n *QueueNotifier) SendWelcome(ctx context.Context, to, name string) error {
	msg, err := WelcomeEmail(to, name)
	if err != nil {
		return err
	}
	return n.queue.EnqueueEmail(ctx, msg)
}
