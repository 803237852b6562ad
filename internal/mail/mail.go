// Package mail is the SMTP delivery edge for notification intents: a
// consumer that reads notify.Intent messages off Kafka and turns each one
// into an email, grounded on the teacher's internal/notifications
// SMTPEmailService (SendHTML/buildMessage) and KafkaNotificationConsumer
// (consumer-group Setup/Cleanup/ConsumeClaim) — minus the multi-channel
// (SMS/push) and template-registry machinery the expanded spec's Non-goals
// drop, since only email delivery is in scope here.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"strconv"
	"time"
)

// Config holds SMTP configuration, mirroring the teacher's SMTPConfig.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	UseTLS    bool
	Timeout   time.Duration
}

// ConfigFromEnv builds a Config from SMTP_* environment variables, the
// same knobs the teacher's NewSMTPConfigFromEnv reads.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	timeout, _ := time.ParseDuration(os.Getenv("SMTP_TIMEOUT"))
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return Config{
		Host:      os.Getenv("SMTP_HOST"),
		Port:      port,
		Username:  os.Getenv("SMTP_USERNAME"),
		Password:  os.Getenv("SMTP_PASSWORD"),
		FromEmail: os.Getenv("FROM_EMAIL"),
		FromName:  "Evently",
		UseTLS:    true,
		Timeout:   timeout,
	}
}

// Mailer sends HTML emails over SMTP, with a STARTTLS path for providers
// that require it and a direct sendmail path otherwise.
type Mailer struct {
	cfg Config
}

func NewMailer(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send delivers an HTML email with a plain-text fallback part.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	message := m.buildMessage(to, subject, htmlBody, textBody)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var err error
	if m.cfg.UseTLS {
		err = m.sendWithSTARTTLS(addr, auth, to, message)
	} else {
		err = smtp.SendMail(addr, auth, m.cfg.FromEmail, []string{to}, message)
	}
	if err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func (m *Mailer) sendWithSTARTTLS(addr string, auth smtp.Auth, to string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Quit()

	if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.FromEmail); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return w.Close()
}

// buildMessage assembles a multipart/alternative RFC822 message, same
// header set and boundary scheme as the teacher's buildMessage.
func (m *Mailer) buildMessage(to, subject, htmlBody, textBody string) []byte {
	boundary := "boundary_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.FromEmail),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Date":         time.Now().Format(time.RFC1123Z),
		"Content-Type": fmt.Sprintf("multipart/alternative; boundary=%s", boundary),
	}

	msg := ""
	for k, v := range headers {
		msg += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	msg += "\r\n"

	if textBody != "" {
		msg += fmt.Sprintf("--%s\r\n", boundary)
		msg += "Content-Type: text/plain; charset=UTF-8\r\n\r\n"
		msg += textBody + "\r\n"
	}
	if htmlBody != "" {
		msg += fmt.Sprintf("--%s\r\n", boundary)
		msg += "Content-Type: text/html; charset=UTF-8\r\n\r\n"
		msg += htmlBody + "\r\n"
	}
	msg += fmt.Sprintf("--%s--\r\n", boundary)

	return []byte(msg)
}
