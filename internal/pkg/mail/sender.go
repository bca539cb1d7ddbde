package mail

import (
	"crypto/tls"
	"fmt"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"gopkg.in/gomail.v2"
)

const senderName = "Script Store"

// Message is one outgoing HTML email.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// Mailer delivers a message synchronously.
type Mailer interface {
	Send(msg Message) error
}

// Sender delivers mail over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSender(host string, port int, username, password, from string) *Sender {
	d := gomail.NewDialer(host, port, username, password)
	if port == 465 {
		d.SSL = true
	}
	if env.IsDev() {
		d.TLSConfig = &tls.Config{ServerName: host, InsecureSkipVerify: true}
	}
	return &Sender{dialer: d, from: from}
}

func NewSenderFromEnv() *Sender {
	host := env.GetEnv("SMTP_HOST", "localhost")
	username := env.GetEnv("SMTP_USERNAME", "")
	from := env.GetEnv("SMTP_SENDER", username)
	if from == "" {
		from = fmt.Sprintf("no-reply@%s", host)
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", from)
	}
	return NewSender(host, env.GetEnvInt("SMTP_PORT", 587), username, env.GetEnv("SMTP_PASSWORD", ""), from)
}

func (s *Sender) Send(msg Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, senderName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	log.Infof("[Mail] Sent %q to %s", msg.Subject, msg.To)
	return nil
}
