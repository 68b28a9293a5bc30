// Package notify implements report delivery over e-mail and MQTT.
package notify

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPConfig configures the e-mail notifier.
type SMTPConfig struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// Enabled reports whether a host is configured.
func (c SMTPConfig) Enabled() bool { return c.Host != "" }

// SetDefaults applies the submission port.
func (c *SMTPConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 587
	}
}

// Validate checks sender and recipients.
func (c SMTPConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.From == "" {
		return errors.New("smtp: from is required")
	}
	if len(c.To) == 0 {
		return errors.New("smtp: at least one recipient is required")
	}
	return nil
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier sends each report as an HTML e-mail.
type SMTPNotifier struct {
	cfg    SMTPConfig
	sender mailSender
}

// NewSMTP returns a notifier dialing cfg.Host for every message.
func NewSMTP(cfg SMTPConfig) *SMTPNotifier {
	cfg.SetDefaults()
	return &SMTPNotifier{cfg: cfg, sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)}
}

func (n *SMTPNotifier) message(subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

// Send implements report.Notifier.
func (n *SMTPNotifier) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sender.DialAndSend(n.message(subject, body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
