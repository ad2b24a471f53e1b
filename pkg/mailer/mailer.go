package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/pkg/config"
)

// Message is a single outbound plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers email messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers mail through a relay using net/smtp.
type SMTPSender struct {
	cfg  config.SMTPConfig
	send sendFunc
}

// NewSMTPSender builds an SMTP-backed sender.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

// Send writes msg to the relay. The context only guards against sending after cancellation;
// net/smtp has no per-call deadline.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, msg.To, encode(s.cfg.From, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(msg.To, ","), err)
	}
	return nil
}

func encode(from string, msg Message) []byte {
	headers := map[string]string{
		"From":         from,
		"To":           strings.Join(msg.To, ", "),
		"Subject":      msg.Subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/plain; charset=\"UTF-8\"",
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// LogSender records messages instead of sending them; used when SMTP is disabled.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a logging sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message envelope.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("email delivery disabled, message logged",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// New picks the sender matching configuration.
func New(cfg config.SMTPConfig, logger *zap.Logger) Sender {
	if !cfg.Enabled {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}
