package channels

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/models"
)

// SMTPConfig carries the transport credentials. Host or Password left
// empty means the transport is not configured; sends then fail with a
// configuration error before any dial.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// EmailSender delivers over SMTP with implicit TLS (port 465 style).
type EmailSender struct {
	cfg SMTPConfig
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	return &EmailSender{cfg: cfg}
}

func (s *EmailSender) Send(ctx context.Context, user *models.User, msg Message) Outcome {
	if s.cfg.Host == "" || s.cfg.Password == "" {
		return validationFailure("smtp credentials not configured")
	}
	if user.Email == "" {
		return validationFailure("missing recipient email address")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return transportFailure(fmt.Sprintf("smtp dial %s: %v", addr, err))
	}
	// the ctx deadline only bounds the dial; push it onto the socket so
	// a server stalling mid-session cannot block sibling channels
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return transportFailure(fmt.Sprintf("smtp handshake: %v", err))
	}
	defer func() { _ = client.Close() }()

	auth := smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return transportFailure(fmt.Sprintf("smtp auth: %v", err))
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return transportFailure(fmt.Sprintf("smtp mail from: %v", err))
	}
	if err := client.Rcpt(user.Email); err != nil {
		return transportFailure(fmt.Sprintf("smtp rcpt to: %v", err))
	}
	w, err := client.Data()
	if err != nil {
		return transportFailure(fmt.Sprintf("smtp data: %v", err))
	}
	if _, err := w.Write(buildMIME(s.cfg.From, user.Email, msg)); err != nil {
		_ = w.Close()
		return transportFailure(fmt.Sprintf("smtp write body: %v", err))
	}
	if err := w.Close(); err != nil {
		return transportFailure(fmt.Sprintf("smtp close body: %v", err))
	}
	_ = client.Quit()

	zlog.Logger.Info().Str("to", user.Email).Str("subject", msg.Subject).Msg("email sent")
	return sent()
}

func buildMIME(from, to string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody(msg.Body))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// htmlBody wraps the plain-text message into the standard template.
func htmlBody(message string) string {
	return fmt.Sprintf(`<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9; border-radius: 8px;">
      <div style="text-align: center; margin-bottom: 30px;">
        <h2 style="color: #2c3e50; margin: 0;">NoToFine</h2>
        <p style="color: #7f8c8d; font-size: 12px; margin: 5px 0;">Payment reminder system</p>
      </div>
      <div style="background-color: white; padding: 20px; border-radius: 5px; margin-bottom: 20px;">%s</div>
      <hr style="margin-top: 30px; border: none; border-top: 1px solid #ecf0f1;">
      <p style="font-size: 11px; color: #95a5a6; text-align: center;">
        This email was automatically sent by the NoToFine system.
        Please do not reply to this email.
      </p>
    </div>
  </body>
</html>`, strings.ReplaceAll(message, "\n", "<br>"))
}
