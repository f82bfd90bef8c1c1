package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tafelzaak/identity/internal/pkg/metrics"
)

// SMTPConfig holds the relay settings of the worker.
type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender handles TaskTypeSendEmail tasks by relaying them over SMTP.
type SMTPSender struct {
	cfg  SMTPConfig
	auth smtp.Auth
	send SendFunc
	now  func() time.Time
	log  zerolog.Logger
}

func NewSMTPSender(cfg SMTPConfig, log zerolog.Logger) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		host := cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		send: smtp.SendMail,
		now:  time.Now,
		log:  log,
	}
}

// Handle is the asynq handler for TaskTypeSendEmail. Malformed payloads are
// not retried.
func (s *SMTPSender) Handle(_ context.Context, t *asynq.Task) error {
	var p SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		metrics.MailTasksTotal.WithLabelValues("deliver", "invalid").Inc()
		return fmt.Errorf("decode mail payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.To == "" {
		metrics.MailTasksTotal.WithLabelValues("deliver", "invalid").Inc()
		return fmt.Errorf("mail without recipient: %w", asynq.SkipRetry)
	}

	if err := s.send(s.cfg.Addr, s.auth, s.cfg.From, []string{p.To}, s.message(p)); err != nil {
		metrics.MailTasksTotal.WithLabelValues("deliver", "error").Inc()
		s.log.Warn().Err(err).Str("to", p.To).Msg("smtp delivery failed")
		return fmt.Errorf("smtp send: %w", err)
	}

	metrics.MailTasksTotal.WithLabelValues("deliver", "ok").Inc()
	s.log.Info().Str("to", p.To).Str("subject", p.Subject).Msg("mail delivered")
	return nil
}

func (s *SMTPSender) message(p SendEmailPayload) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + p.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", p.Subject) + "\r\n")
	b.WriteString("Date: " + s.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(p.HTMLBody)
	return []byte(b.String())
}
