package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/monitor"
	"research-showcase-api/utils"
)

// Notifier is one delivery channel for status-change notices.
type Notifier interface {
	Channel() string
	// Wants reports whether recipient opted in to kind on this channel.
	Wants(recipient *models.User, kind string) bool
	Notify(ctx context.Context, recipient *models.User, kind, message string, link *string) error
}

// MailSender is satisfied by *config.Mailer.
type MailSender interface {
	SendMail(to []string, subject, html string) error
}

var emailSubjects = map[string]string{
	models.EventStatusApproved:          "Research Project Approved",
	models.EventStatusRejected:          "Research Project Rejected",
	models.EventStatusRevisionRequested: "Revisions Requested for Research Project",
}

func isStatusChangeEvent(kind string) bool {
	_, ok := emailSubjects[kind]
	return ok
}

// EmailNotifier sends notices through SMTP. Failed sends are handed to the
// retry queue when one is configured.
type EmailNotifier struct {
	mailer  MailSender
	queue   EmailQueue
	baseURL string
}

func NewEmailNotifier(mailer MailSender, queue EmailQueue, baseURL string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, queue: queue, baseURL: baseURL}
}

func (n *EmailNotifier) Channel() string { return "email" }

func (n *EmailNotifier) Wants(recipient *models.User, kind string) bool {
	if recipient == nil || strings.TrimSpace(recipient.Email) == "" {
		return false
	}
	if isStatusChangeEvent(kind) {
		return recipient.NotifyByEmailOnStatusChange
	}
	return true
}

func (n *EmailNotifier) Notify(ctx context.Context, recipient *models.User, kind, message string, link *string) error {
	subject := emailSubjects[kind]
	if subject == "" {
		subject = "Research Showcase Notification"
	}
	body := message
	if link != nil && *link != "" {
		body += "\n\n" + absoluteLink(n.baseURL, *link)
	}
	html := buildFormalEmailHTML(subject, recipient.DisplayName(), body)
	to := []string{recipient.Email}

	err := n.mailer.SendMail(to, subject, html)
	if err == nil {
		return nil
	}
	if n.queue == nil {
		return err
	}
	if qerr := n.queue.EnqueueEmail(ctx, EmailJob{To: to, Subject: subject, HTML: html}); qerr != nil {
		return errors.Join(err, fmt.Errorf("enqueue retry: %w", qerr))
	}
	return fmt.Errorf("%w (queued for retry)", err)
}

// InAppNotifier stores notices in the notifications table.
type InAppNotifier struct {
	db *gorm.DB
}

func NewInAppNotifier(db *gorm.DB) *InAppNotifier {
	if db == nil {
		db = config.DB
	}
	return &InAppNotifier{db: db}
}

func (n *InAppNotifier) Channel() string { return "in_app" }

func (n *InAppNotifier) Wants(recipient *models.User, kind string) bool {
	if recipient == nil || recipient.UserID == 0 {
		return false
	}
	if isStatusChangeEvent(kind) {
		return recipient.NotifyInAppOnStatusChange
	}
	return true
}

func (n *InAppNotifier) Notify(ctx context.Context, recipient *models.User, kind, message string, link *string) error {
	row := models.Notification{
		UserID:  recipient.UserID,
		Kind:    kind,
		Message: message,
		Link:    link,
	}
	return n.db.WithContext(ctx).Create(&row).Error
}

// NotificationDispatcher fans a notice out to every channel after a transition has committed.
type NotificationDispatcher struct {
	channels []Notifier
	timeout  time.Duration
}

func NewNotificationDispatcher(timeout time.Duration, channels ...Notifier) *NotificationDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationDispatcher{channels: channels, timeout: timeout}
}

// Dispatch tries every channel the recipient opted in to and returns one
// warning per failed channel. It never returns an error.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, recipient *models.User, kind, message string, link *string) []string {
	warnings := []string{}
	if d == nil || recipient == nil {
		return warnings
	}
	for _, ch := range d.channels {
		if !ch.Wants(recipient, kind) {
			monitor.Notifications.WithLabelValues(ch.Channel(), "skipped").Inc()
			config.L().Debug("notification skipped",
				zap.String("channel", ch.Channel()),
				zap.String("kind", kind),
				zap.Uint("user_id", recipient.UserID))
			continue
		}
		if err := d.send(ctx, ch, recipient, kind, message, link); err != nil {
			nerr := utils.ErrNotification(err, ch.Channel())
			monitor.Notifications.WithLabelValues(ch.Channel(), "failed").Inc()
			config.L().Warn("notification failed",
				zap.String("channel", ch.Channel()),
				zap.String("kind", kind),
				zap.Uint("user_id", recipient.UserID),
				zap.Error(nerr))
			warnings = append(warnings, channelWarning(ch.Channel(), err))
			continue
		}
		monitor.Notifications.WithLabelValues(ch.Channel(), "sent").Inc()
	}
	return warnings
}

// send bounds one channel by the dispatcher timeout, including channels that ignore ctx.
func (d *NotificationDispatcher) send(ctx context.Context, ch Notifier, recipient *models.User, kind, message string, link *string) (err error) {
	ctx, cancel := context.WithTimeout(persistentContext(ctx), d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- ch.Notify(ctx, recipient, kind, message, link)
	}()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timed out after %s", d.timeout)
	}
}

func channelWarning(channel string, err error) string {
	switch channel {
	case "email":
		if strings.Contains(err.Error(), "queued for retry") {
			return "Failed to send email notification to the author; it has been queued for retry."
		}
		return "Failed to send email notification to the author."
	case "in_app":
		return "Failed to create in-app notification for the author."
	}
	return fmt.Sprintf("Failed to deliver %s notification to the author.", channel)
}

func absoluteLink(base, link string) string {
	if base == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(link, "/")
}

func buildFormalEmailHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "Colleague"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(fmt.Sprintf("Dear %s,", name))
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px 24px 28px 24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}
