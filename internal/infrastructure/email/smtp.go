package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/gomail.v2"

	sharedConfig "github.com/icubam/icubam/internal/shared/config"
	"github.com/icubam/icubam/internal/shared/logger"
)

// SMTPSender delivers HTML mail with a plain-text alternative.
type SMTPSender struct {
	config sharedConfig.EmailConfig
	dialer *gomail.Dialer
	strip  *bluemonday.Policy
	send   func(m ...*gomail.Message) error
	logger logger.Interface
}

func NewSMTPSender(cfg sharedConfig.EmailConfig, log logger.Interface) *SMTPSender {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	dialer.SSL = cfg.UseSSL

	return &SMTPSender{
		config: cfg,
		dialer: dialer,
		strip:  bluemonday.StrictPolicy(),
		send:   dialer.DialAndSend,
		logger: log,
	}
}

// Send mails htmlBody to the address in target.
func (s *SMTPSender) Send(_ context.Context, to, subject, htmlBody string) bool {
	if err := s.sendEmail(to, subject, htmlBody); err != nil {
		s.logger.Warnw("email send failed", "to", logger.Mask(to), "error", err)
		return false
	}
	return true
}

func (s *SMTPSender) sendEmail(to, subject, htmlBody string) error {
	m := s.compose(to, subject, htmlBody)
	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) compose(to, subject, htmlBody string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromAddress, s.config.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", s.plainText(htmlBody))
	m.AddAlternative("text/html", htmlBody)
	return m
}

// plainText drops every tag of body; line breaks become newlines.
func (s *SMTPSender) plainText(body string) string {
	r := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n")
	return strings.TrimSpace(html.UnescapeString(s.strip.Sanitize(r.Replace(body))))
}
