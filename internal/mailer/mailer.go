// Package mailer delivers OTP emails over SMTP with STARTTLS.
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// SMTP sends mail through an authenticated relay.
type SMTP struct {
	Host        string
	Port        string
	Login       string
	Password    string
	SenderEmail string
	SenderName  string
}

// New creates an SMTP mailer.
func New(host, port, login, password, senderEmail, senderName string) *SMTP {
	return &SMTP{
		Host:        host,
		Port:        port,
		Login:       login,
		Password:    password,
		SenderEmail: senderEmail,
		SenderName:  senderName,
	}
}

// Configured reports whether credentials are present.
func (m *SMTP) Configured() bool {
	return m.Login != "" && m.Password != "" && m.SenderEmail != ""
}

// SendOTP delivers the password-reset code.
func (m *SMTP) SendOTP(ctx context.Context, toEmail, adminName, otp string) error {
	if !m.Configured() {
		log.Printf("mailer: SMTP not configured, OTP not sent")
		return fmt.Errorf("mailer not configured")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", m.SenderName, m.SenderEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", toEmail)
	fmt.Fprintf(&msg, "Subject: Your Password Reset OTP\r\n")
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&msg, "Hello %s,\r\n\r\n", adminName)
	fmt.Fprintf(&msg, "Your password reset code is: %s\r\n\r\n", otp)
	msg.WriteString("The code expires in 10 minutes. If you did not request a reset, ignore this email.\r\n")

	done := make(chan error, 1)
	go func() {
		auth := smtp.PlainAuth("", m.Login, m.Password, m.Host)
		done <- smtp.SendMail(m.Host+":"+m.Port, auth, m.SenderEmail, []string{toEmail}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
