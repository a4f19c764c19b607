package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"research-showcase-api/config"
)

const TaskEmailRetry = "email:retry"

// EmailJob is a fully rendered email waiting for another delivery attempt.
type EmailJob struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// EmailQueue accepts emails whose first delivery failed.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, job EmailJob) error
}

// AsynqEmailQueue enqueues EmailJobs on Redis for cmd/worker.
type AsynqEmailQueue struct {
	client   *asynq.Client
	maxRetry int
}

func NewAsynqEmailQueue(redisAddr, redisPassword string) *AsynqEmailQueue {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword})
	return &AsynqEmailQueue{client: client, maxRetry: 8}
}

func (q *AsynqEmailQueue) EnqueueEmail(ctx context.Context, job EmailJob) error {
	task, err := NewEmailRetryTask(job)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(q.maxRetry),
		asynq.ProcessIn(time.Minute),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}
	config.L().Info("email queued for retry", zap.String("task_id", info.ID), zap.Strings("to", job.To))
	return nil
}

func (q *AsynqEmailQueue) Close() error { return q.client.Close() }

func NewEmailRetryTask(job EmailJob) (*asynq.Task, error) {
	if len(job.To) == 0 {
		return nil, fmt.Errorf("email job has no recipients")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailRetry, payload), nil
}

// EmailRetryHandler delivers queued emails.
type EmailRetryHandler struct {
	mailer MailSender
}

func NewEmailRetryHandler(mailer MailSender) *EmailRetryHandler {
	return &EmailRetryHandler{mailer: mailer}
}

// HandleEmailRetry sends the job. Returning an error lets asynq schedule another attempt.
func (h *EmailRetryHandler) HandleEmailRetry(ctx context.Context, t *asynq.Task) error {
	var job EmailJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		config.L().Error("invalid email retry payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(job.To) == 0 {
		return fmt.Errorf("email job has no recipients: %w", asynq.SkipRetry)
	}
	if err := h.mailer.SendMail(job.To, job.Subject, job.HTML); err != nil {
		config.L().Warn("email retry failed", zap.Strings("to", job.To), zap.Error(err))
		return err
	}
	config.L().Info("email retry delivered", zap.Strings("to", job.To), zap.String("subject", job.Subject))
	return nil
}
