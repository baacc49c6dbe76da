package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

type Email struct {
	config SMTPConfig
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewEmail(config SMTPConfig) *Email {
	return &Email{
		config: config,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (e *Email) Name() string {
	return "email"
}

func (e *Email) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = e.config.From
	mail.To = e.config.To
	mail.Subject = msg.Title()
	mail.Text = []byte(msg.Text)

	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)

	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Server)
	}

	err := e.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
