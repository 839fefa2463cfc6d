package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"
)

type EmailService struct {
	host        string
	port        string
	user        string
	pass        string
	from        string
	frontendURL string
	devMode     bool
}

func NewEmailService(host, port, user, pass, from, frontendURL string) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		log.Println("⚠ Email service running in DEV MODE (logging to console)")
	}
	return &EmailService{
		host:        host,
		port:        port,
		user:        user,
		pass:        pass,
		from:        from,
		frontendURL: frontendURL,
		devMode:     devMode,
	}
}

func (s *EmailService) SendBookingConfirmedEmail(to, fullName string, start, end time.Time) error {
	subject := "New session booked on Mentorly"
	body := s.wrap("Session Booked", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6;">
        Hi %s, a student booked a session with you for
        <strong>%s – %s</strong>.
      </p>
      <a href="%s/sessions" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        View Schedule
      </a>`,
		fullName, start.Format("Mon, 2 Jan 15:04"), end.Format("15:04 MST"), s.frontendURL))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendCancellationRequestedEmail(to, fullName string) error {
	subject := "A student requested to cancel a session"
	body := s.wrap("Cancellation Requested", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6;">
        Hi %s, a student asked to cancel an upcoming session. Review the
        request to approve the cancellation and refund their token.
      </p>
      <a href="%s/sessions" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Review Request
      </a>`, fullName, s.frontendURL))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendSessionCancelledEmail(to, fullName string) error {
	subject := "Your session was cancelled"
	body := s.wrap("Session Cancelled", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6;">
        Hi %s, your session was cancelled and the token you spent has been
        returned to your balance.
      </p>`, fullName))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendSessionCompletedEmail(to, fullName string, durationMinutes int, earningsAmount int64) error {
	subject := "Session completed — earnings credited"
	body := s.wrap("Session Completed", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6;">
        Hi %s, your session just ended after %d minutes.
        <strong>₹%d</strong> has been credited to your available balance.
      </p>
      <a href="%s/earnings" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        View Earnings
      </a>`, fullName, durationMinutes, earningsAmount, s.frontendURL))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendWithdrawalUpdateEmail(to, fullName, status string, amount int64) error {
	subject := fmt.Sprintf("Withdrawal %s", status)
	body := s.wrap("Withdrawal Update", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6;">
        Hi %s, your withdrawal of <strong>₹%d</strong> is now
        <strong>%s</strong>.
      </p>`, fullName, amount, status))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) wrap(heading, inner string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 480px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: linear-gradient(135deg, #6366f1 0%%, #8b5cf6 100%%); padding: 32px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 700;">Mentorly</h1>
      <p style="color: rgba(255,255,255,0.85); margin: 8px 0 0; font-size: 14px;">1:1 Mentorship Sessions</p>
    </div>
    <div style="padding: 32px;">
      <h2 style="margin: 0 0 16px; font-size: 20px; color: #1e293b;">%s</h2>
      %s
    </div>
  </div>
</body>
</html>`, heading, inner)
}

func (s *EmailService) sendHTML(to, subject, htmlBody string) error {
	if s.devMode {
		log.Printf("📧 [DEV EMAIL] To: %s | Subject: %s", to, subject)
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}
