package ports

import "context"

// MailService delivers outbound email.
type MailService interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}
