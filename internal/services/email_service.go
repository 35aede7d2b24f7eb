package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// EmailService is the delivery channel: an SMTP transport wrapped in the
// send(to, subject, body) contract the dispatch worker depends on.
type EmailService struct {
	SMTPHost  string
	SMTPPort  string
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

func NewEmailService(smtpHost, smtpPort, username, password, fromEmail, fromName string, timeout time.Duration) *EmailService {
	return &EmailService{
		SMTPHost:  smtpHost,
		SMTPPort:  smtpPort,
		Username:  username,
		Password:  password,
		FromEmail: fromEmail,
		FromName:  fromName,
		Timeout:   timeout,
	}
}

// Verify performs the startup handshake: connect, authenticate, quit.
// A failure here is a fatal configuration error, callers must not start
// dispatching on a transport that cannot authenticate.
func (e *EmailService) Verify(ctx context.Context) error {
	client, err := e.connect(ctx)
	if err != nil {
		return fmt.Errorf("SMTP connection verification failed: %w", err)
	}
	defer client.Close()

	if err := client.Quit(); err != nil {
		return fmt.Errorf("SMTP connection verification failed: %w", err)
	}

	log.Printf("SMTP connection verified for %s:%s", e.SMTPHost, e.SMTPPort)
	return nil
}

// SendEmail sends an email over SMTP. The whole exchange is bounded by the
// context deadline; a timed-out delivery surfaces as an error to the caller.
func (e *EmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	client, err := e.connect(ctx)
	if err != nil {
		log.Printf("Failed to connect to SMTP server for %s: %v", to, err)
		return err
	}
	defer client.Close()

	if err := client.Mail(e.FromEmail); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}

	from := fmt.Sprintf("%s <%s>", e.FromName, e.FromEmail)
	msg := fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, e.formatEmailBody(body))

	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message body failed: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing message body failed: %w", err)
	}

	if err := client.Quit(); err != nil {
		log.Printf("SMTP QUIT after send to %s failed: %v", to, err)
	}

	log.Printf("Email sent successfully to %s", to)
	return nil
}

// connect dials the SMTP server, negotiates TLS, and authenticates. Port
// 465 means implicit TLS; anything else upgrades via STARTTLS when offered.
func (e *EmailService) connect(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(e.SMTPHost, e.SMTPPort)

	dialer := &net.Dialer{Timeout: e.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	// Bound every subsequent read/write by the context deadline.
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if e.SMTPPort == "465" {
		conn = tls.Client(conn, &tls.Config{ServerName: e.SMTPHost})
	}

	client, err := smtp.NewClient(conn, e.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP handshake with %s failed: %w", addr, err)
	}

	if e.SMTPPort != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: e.SMTPHost}); err != nil {
				client.Close()
				return nil, fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	auth := smtp.PlainAuth("", e.Username, e.Password, e.SMTPHost)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP authentication failed: %w", err)
	}

	return client, nil
}

// formatEmailBody formats the email body as HTML
func (e *EmailService) formatEmailBody(body string) string {
	// Convert plain text to HTML
	htmlBody := strings.ReplaceAll(body, "\n", "<br>")

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Reading Reminder</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
        .content { background-color: #ffffff; padding: 20px; border: 1px solid #dee2e6; border-radius: 5px; }
        .footer { margin-top: 20px; text-align: center; color: #6c757d; font-size: 14px; }
        .book-title { background-color: #f8f9fa; padding: 10px; margin: 5px 0; border-radius: 3px; font-weight: bold; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h2>阅读提醒</h2>
        </div>
        <div class="content">
            %s
        </div>
        <div class="footer">
            <p>This is an automated email. Please do not reply.</p>
        </div>
    </div>
</body>
</html>`, htmlBody)
}

// SendReminderEmail sends a formatted reading reminder for one book.
func (e *EmailService) SendReminderEmail(ctx context.Context, to, subject, text, bookTitle string) error {
	body := fmt.Sprintf(`
        <p>%s</p>
        <div class="book-title">%s</div>
        <p>Keep the streak going — even a few pages count.</p>
    `, text, bookTitle)

	return e.SendEmail(ctx, to, subject, body)
}
