// Package email adapts the SMTP delivery provider and renders outreach
// messages from templates.
package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// SMTPSender delivers messages over SMTP and reports the Message-ID the
// provider will echo back in engagement webhooks.
type SMTPSender struct {
	cfg config.EmailConfig
	log *logger.Logger
}

func NewSMTPSender(cfg config.EmailConfig, log *logger.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: log}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, bodyHTML, bodyText string) (string, error) {
	if !s.cfg.GetEmailEnabled() {
		// Dry-run mode for local development: no wire traffic, synthetic id.
		id := "dryrun-" + uuid.NewString()
		s.log.Info("email delivery disabled, skipping send", "to", to, "subject", subject, "providerMessageId", id)
		return id, nil
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.GetEmailFromName(), s.cfg.GetEmailFromAddress()); err != nil {
		return "", fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return "", fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, bodyText)
	msg.AddAlternativeString(gomail.TypeTextHTML, bodyHTML)
	msg.SetMessageID()

	client, err := gomail.NewClient(s.cfg.GetSMTPHost(),
		gomail.WithPort(s.cfg.GetSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.GetSMTPUsername()),
		gomail.WithPassword(s.cfg.GetSMTPPassword()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(10*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}

	return strings.Trim(msg.GetMessageID(), "<>"), nil
}
