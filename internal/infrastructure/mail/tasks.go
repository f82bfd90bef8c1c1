// Package mail delivers outbound email through an asynq queue. The API
// process enqueues tasks; the worker process sends them over SMTP.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/core/ports"
	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

const (
	// QueueMail is the default asynq queue for mail tasks.
	QueueMail = "mail"
	// TaskTypeSendEmail is the task type for a single outbound email.
	TaskTypeSendEmail = "mail:send"

	defaultMaxRetry = 5
	taskTimeout     = 30 * time.Second
)

// SendEmailPayload is the task body of TaskTypeSendEmail.
type SendEmailPayload struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// NewSendEmailTask builds a TaskTypeSendEmail task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// Enqueuer is the part of *asynq.Client the mailer needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueMailer implements ports.MailService by enqueueing a task per email.
// A nil error means the email was queued, not delivered.
type QueueMailer struct {
	client   Enqueuer
	queue    string
	maxRetry int
	log      zerolog.Logger
}

var _ ports.MailService = (*QueueMailer)(nil)

func NewQueueMailer(client Enqueuer, queue string, maxRetry int, log zerolog.Logger) *QueueMailer {
	if queue == "" {
		queue = QueueMail
	}
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	return &QueueMailer{client: client, queue: queue, maxRetry: maxRetry, log: log}
}

func (m *QueueMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	task, err := NewSendEmailTask(SendEmailPayload{To: to, Subject: subject, HTMLBody: htmlBody})
	if err != nil {
		metrics.MailTasksTotal.WithLabelValues("enqueue", "error").Inc()
		return fmt.Errorf("build mail task: %w", err)
	}

	info, err := m.client.EnqueueContext(ctx, task,
		asynq.Queue(m.queue),
		asynq.MaxRetry(m.maxRetry),
		asynq.Timeout(taskTimeout),
	)
	if err != nil {
		metrics.MailTasksTotal.WithLabelValues("enqueue", "error").Inc()
		return fmt.Errorf("enqueue mail task: %w", err)
	}

	metrics.MailTasksTotal.WithLabelValues("enqueue", "ok").Inc()
	m.log.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("mail task enqueued")
	return nil
}
