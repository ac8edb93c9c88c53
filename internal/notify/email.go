// Package notify delivers silence alarm events to the outside world:
// email over SMTP, webhook POSTs, and an append-only log file.
package notify

import (
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/olivier-w/vudial/internal/watch"
)

// Email sends alarm events over SMTP.
type Email struct {
	Host       string
	Port       int
	FromName   string
	Username   string
	Password   string
	Recipients string // comma separated
	Source     string // metered source named in the message body
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(ev watch.Event) error {
	recipients := splitRecipients(e.Recipients)
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	var subject, body string
	switch ev.Kind {
	case watch.EventRecovered:
		subject = "[OK] Audio recovered - vudial"
		body = fmt.Sprintf(
			"Audio recovered on the metered source.\n\n"+
				"Source:         %s\n"+
				"Silence lasted: %.1f seconds\n"+
				"Time:           %s",
			e.Source, ev.Outage.Seconds(), ev.At.Format("2006-01-02 15:04:05"),
		)
	default:
		subject = "[ALERT] Silence detected - vudial"
		body = fmt.Sprintf(
			"Silence detected on the metered source.\n\n"+
				"Source:    %s\n"+
				"Level:     %.1f dBFS\n"+
				"Threshold: %.1f dBFS\n"+
				"Time:      %s\n\n"+
				"Check the audio source.",
			e.Source, ev.DBFS, ev.Threshold, ev.At.Format("2006-01-02 15:04:05"),
		)
	}

	m := mail.NewMsg()
	if e.FromName != "" {
		if err := m.FromFormat(e.FromName, e.Username); err != nil {
			return fmt.Errorf("set from address: %w", err)
		}
	} else {
		if err := m.From(e.Username); err != nil {
			return fmt.Errorf("set from address: %w", err)
		}
	}
	if err := m.To(recipients...); err != nil {
		return fmt.Errorf("set recipient address: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(e.Port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		mail.WithUsername(e.Username),
		mail.WithPassword(e.Password),
	}
	switch e.Port {
	case 465: // SMTPS, implicit TLS
		opts = append(opts, mail.WithSSL())
	case 587: // submission, STARTTLS required
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(e.Host, opts...)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	if err := c.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
