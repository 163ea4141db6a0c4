package utils

import (
	"fmt"
	"html"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"gpodo/config"
	"gpodo/lifecycle"
)

// Mailer delivers one-time codes.
type Mailer interface {
	SendOTPEmail(to, name, otp string, lang lifecycle.Language) error
}

// NewMailer returns an SMTP mailer, or a logging mailer in development
// when no SMTP host is configured.
func NewMailer(cfg config.Config) Mailer {
	if cfg.SMTPHost == "" && cfg.IsDevelopment() {
		return &LogMailer{Logger: logrus.WithField("component", "mailer")}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.FromEmail,
	}
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func (m *SMTPMailer) SendOTPEmail(to, name, otp string, lang lifecycle.Language) error {
	subject, body := otpMessage(name, otp, lang)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending them.
type LogMailer struct {
	Logger *logrus.Entry
}

func (m *LogMailer) SendOTPEmail(to, name, otp string, lang lifecycle.Language) error {
	m.Logger.WithFields(logrus.Fields{
		"to":   to,
		"otp":  otp,
		"lang": lang,
	}).Info("OTP email (not sent in development)")
	return nil
}

var otpSubjects = map[lifecycle.Language]string{
	lifecycle.LangEnglish: "Your GPODO sign-in code",
	lifecycle.LangArabic:  "رمز الدخول إلى GPODO",
	lifecycle.LangFrench:  "Votre code de connexion GPODO",
}

func otpMessage(name, otp string, lang lifecycle.Language) (string, string) {
	subject, ok := otpSubjects[lang]
	if !ok {
		subject = otpSubjects[lifecycle.DefaultLanguage]
	}
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>%s</h2>
			<p>Hello %s,</p>
			<h3>%s</h3>
			<p>This code will expire in %d minutes.</p>
		</body>
		</html>
	`, subject, html.EscapeString(SanitizeText(name)), otp, int(OTPExpiry.Minutes()))
	return subject, body
}
