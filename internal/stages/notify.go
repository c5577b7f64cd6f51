package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/haris936hk/EchoNote-sub001/internal/models"
)

// ResultSnapshot is what the completion email shows the owner.
type ResultSnapshot struct {
	MeetingID uuid.UUID
	Title     string
	Duration  float64 // seconds
	Summary   models.Summary
}

// EmailNotifier delivers completion and failure emails over SMTP.
type EmailNotifier struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

func NewEmailNotifier(host string, port int, user, password, from string) *EmailNotifier {
	return &EmailNotifier{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
	}
}

func (n *EmailNotifier) NotifyCompleted(ctx context.Context, recipient string, snap ResultSnapshot) error {
	subject := fmt.Sprintf("Your meeting summary is ready: %s", snap.Title)
	if err := n.send(ctx, recipient, subject, completedBody(snap)); err != nil {
		return NewTransient(StageNotify, "failed to send completion email", err)
	}
	slog.Info("completion email sent", "meeting_id", snap.MeetingID, "recipient", recipient)
	return nil
}

func (n *EmailNotifier) NotifyFailed(ctx context.Context, recipient, title, reason string) error {
	subject := fmt.Sprintf("Processing failed: %s", title)
	if err := n.send(ctx, recipient, subject, failedBody(title, reason)); err != nil {
		return NewTransient(StageNotify, "failed to send failure email", err)
	}
	slog.Info("failure email sent", "recipient", recipient)
	return nil
}

func (n *EmailNotifier) send(ctx context.Context, recipient, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(n.host,
		mail.WithPort(n.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.user),
		mail.WithPassword(n.password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}

func completedBody(snap ResultSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi,\n\nYour meeting \"%s\" (%.1f min) has been processed.\n\n", snap.Title, snap.Duration/60)
	fmt.Fprintf(&b, "Summary:\n%s\n\n", snap.Summary.ExecutiveSummary)

	if snap.Summary.KeyDecisions != "" {
		fmt.Fprintf(&b, "Key decisions:\n%s\n\n", snap.Summary.KeyDecisions)
	}

	if len(snap.Summary.ActionItems) > 0 {
		b.WriteString("Action items:\n")
		for _, item := range snap.Summary.ActionItems {
			assignee := "unassigned"
			if item.Assignee != nil {
				assignee = *item.Assignee
			}
			fmt.Fprintf(&b, "  - [%s] %s (%s)\n", item.Priority, item.Task, assignee)
		}
		b.WriteString("\n")
	}

	if snap.Summary.NextSteps != "" {
		fmt.Fprintf(&b, "Next steps:\n%s\n\n", snap.Summary.NextSteps)
	}

	b.WriteString("— EchoNote")
	return b.String()
}

func failedBody(title, reason string) string {
	return fmt.Sprintf(
		"Hi,\n\nWe could not process your meeting \"%s\".\n\nReason: %s\n\nPlease try uploading the recording again.\n\n— EchoNote",
		title, reason)
}
