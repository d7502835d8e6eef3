/*
email.go - SMTP notifier for leave requests

PURPOSE:
  Implements leave.Notifier by sending HTML email with calendar
  attachments through an SMTP relay.

MESSAGES:
  Submitted: employee + approver + manager, approve/reject links,
             tentative .ics attachment
  Approved:  employee, confirmed .ics attachment
  Rejected:  employee, reason in the body, no attachment

TEST MODE:
  Every message goes to TestEmail instead of the real recipients.

SEE ALSO:
  - queue.go: Runs sends off the request path
  - ics.go: Calendar attachments
  - templates.go: Message bodies
*/
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/warp/leave-tracker/leave"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPConfig describes the relay.
type SMTPConfig struct {
	Host       string
	Port       int
	Secure     bool
	User       string
	Pass       string
	SkipVerify bool
}

// EmailConfig controls addressing and links.
type EmailConfig struct {
	TestMode     bool
	TestEmail    string
	ServerURL    string
	From         string
	FromName     string
	EnvelopeFrom string
	Domain       string
}

// Router answers who besides the employee gets a submission.
type Router interface {
	ApproverEmail() string
	ManagerEmail(employeeID string) string
}

// Transport delivers a composed message.
type Transport interface {
	Send(envelopeFrom string, to []string, msg *gomail.Message) error
}

// SMTPTransport dials the relay for every message.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

// NewSMTPTransport creates a transport for cfg.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	port := cfg.Port
	if port == 0 {
		port = 25
	}
	d := gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Pass)
	d.SSL = cfg.Secure
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, InsecureSkipVerify: cfg.SkipVerify}
	return &SMTPTransport{dialer: d}
}

// Send implements Transport.
func (t *SMTPTransport) Send(envelopeFrom string, to []string, msg *gomail.Message) error {
	s, err := t.dialer.Dial()
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer s.Close()
	return s.Send(envelopeFrom, to, msg)
}

// Email implements leave.Notifier over SMTP.
type Email struct {
	cfg       EmailConfig
	transport Transport
	router    Router
	calendar  Calendar
	now       func() time.Time
	logger    *zap.Logger
}

// NewEmail creates an email notifier. router may be nil.
func NewEmail(cfg EmailConfig, transport Transport, router Router, logger ...*zap.Logger) *Email {
	l := zap.L().Named("notify.email")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notify.email")
	}
	return &Email{
		cfg:       cfg,
		transport: transport,
		router:    router,
		calendar: Calendar{
			Domain:        cfg.Domain,
			Organizer:     cfg.From,
			OrganizerName: cfg.FromName,
		},
		now:    time.Now,
		logger: l,
	}
}

// NotifySubmitted implements leave.Notifier.
func (e *Email) NotifySubmitted(ctx context.Context, g leave.GroupSummary) error {
	body, err := render(submittedTmpl, newMailData(g, e.cfg.ServerURL, ""))
	if err != nil {
		return &leave.NotificationError{Kind: "submitted", Err: err}
	}
	cal, err := e.calendar.Build(g, ics.ObjectStatusTentative, e.now())
	if err != nil {
		return &leave.NotificationError{Kind: "submitted", Err: err}
	}

	subject := fmt.Sprintf("Leave Request: %s - %s to %s", g.Name(), g.StartDate(), g.EndDate())
	msg := e.compose(e.submittedRecipients(g), subject, body)
	attachCalendar(msg, fmt.Sprintf("leave-%s-%s.ics", g.EmployeeID, g.StartDate()), cal)

	return e.send(ctx, "submitted", msg)
}

// NotifyApproved implements leave.Notifier.
func (e *Email) NotifyApproved(ctx context.Context, g leave.GroupSummary) error {
	body, err := render(approvedTmpl, newMailData(g, e.cfg.ServerURL, ""))
	if err != nil {
		return &leave.NotificationError{Kind: "approved", Err: err}
	}
	cal, err := e.calendar.Build(g, ics.ObjectStatusConfirmed, e.now())
	if err != nil {
		return &leave.NotificationError{Kind: "approved", Err: err}
	}

	subject := fmt.Sprintf("Leave Request Approved - %s to %s", g.StartDate(), g.EndDate())
	msg := e.compose(e.employeeRecipients(g), subject, body)
	attachCalendar(msg, fmt.Sprintf("approved-leave-%s.ics", g.StartDate()), cal)

	return e.send(ctx, "approved", msg)
}

// NotifyRejected implements leave.Notifier.
func (e *Email) NotifyRejected(ctx context.Context, g leave.GroupSummary, reason string) error {
	body, err := render(rejectedTmpl, newMailData(g, e.cfg.ServerURL, reason))
	if err != nil {
		return &leave.NotificationError{Kind: "rejected", Err: err}
	}

	subject := fmt.Sprintf("Leave Request Rejected - %s to %s", g.StartDate(), g.EndDate())
	msg := e.compose(e.employeeRecipients(g), subject, body)

	return e.send(ctx, "rejected", msg)
}

// =============================================================================
// ADDRESSING
// =============================================================================

func (e *Email) submittedRecipients(g leave.GroupSummary) []string {
	if e.cfg.TestMode {
		return []string{e.cfg.TestEmail}
	}
	to := []string{g.Email}
	if e.router != nil {
		to = append(to, e.router.ApproverEmail(), e.router.ManagerEmail(g.EmployeeID))
	}
	return uniqueAddresses(to)
}

func (e *Email) employeeRecipients(g leave.GroupSummary) []string {
	if e.cfg.TestMode {
		return []string{e.cfg.TestEmail}
	}
	return uniqueAddresses([]string{g.Email})
}

func uniqueAddresses(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		key := strings.ToLower(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// =============================================================================
// COMPOSE AND SEND
// =============================================================================

func (e *Email) compose(to []string, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	if e.cfg.FromName != "" {
		m.SetAddressHeader("From", e.cfg.From, e.cfg.FromName)
	} else {
		m.SetHeader("From", e.cfg.From)
	}
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

func attachCalendar(m *gomail.Message, name, content string) {
	m.Attach(name,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.WriteString(w, content)
			return err
		}),
		gomail.SetHeader(map[string][]string{
			"Content-Type": {`text/calendar; charset="utf-8"; method=REQUEST`},
		}),
	)
}

func (e *Email) send(ctx context.Context, kind string, m *gomail.Message) error {
	to := m.GetHeader("To")
	if len(to) == 0 {
		return &leave.NotificationError{Kind: kind, Err: errors.New("no recipients")}
	}
	if err := ctx.Err(); err != nil {
		return &leave.NotificationError{Kind: kind, Err: err}
	}

	envelope := e.cfg.EnvelopeFrom
	if envelope == "" {
		envelope = e.cfg.From
	}
	if err := e.transport.Send(envelope, to, m); err != nil {
		return &leave.NotificationError{Kind: kind, Err: err}
	}

	e.logger.Info("email sent",
		zap.String("kind", kind),
		zap.Strings("to", to),
		zap.Strings("subject", m.GetHeader("Subject")),
	)
	return nil
}
