package notify

import (
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"donorcrm/internal/config"
	"donorcrm/internal/integrity"
	"donorcrm/internal/report"
)

// Sender mails a run summary to operators when a run finds critical issues.
type Sender struct {
	host     string
	port     string
	user     string
	password string
	from     string
	to       []string
	logger   *logrus.Logger
	send     func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSender(cfg config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.NotifyFrom,
		to:       cfg.NotifyTo,
		logger:   logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (s *Sender) Enabled() bool {
	return s != nil && s.host != "" && s.from != "" && len(s.to) > 0
}

// Notify sends the summary of r. It is a no-op when mail is not configured
// or the run found nothing critical.
func (s *Sender) Notify(r report.Report, reportPath string) error {
	if !s.Enabled() || r.Summary.Critical == 0 {
		return nil
	}
	e := Message(r, reportPath)
	e.From = s.from
	e.To = s.to

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send integrity summary: %v", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Infof("Integrity summary sent to %s", strings.Join(s.to, ", "))
	return nil
}

// Message renders the plain-text summary email for a report.
func Message(r report.Report, reportPath string) *email.Email {
	e := email.NewEmail()
	e.Subject = fmt.Sprintf("Integrity check: %d critical issue(s)", r.Summary.Critical)

	var b strings.Builder
	fmt.Fprintf(&b, "Integrity check (%s) at %s\n\n", r.Scope, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Issues: %d (critical %d, warning %d)\n", r.Summary.Total, r.Summary.Critical, r.Summary.Warning)
	fmt.Fprintf(&b, "Affected contacts: %d\n", r.Summary.AffectedContacts)
	if len(r.Summary.ByType) > 0 {
		b.WriteString("\nBy type:\n")
		types := make([]string, 0, len(r.Summary.ByType))
		for t := range r.Summary.ByType {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "  %-32s %d\n", t, r.Summary.ByType[integrity.IssueType(t)])
		}
	}
	if r.Fixes != nil {
		fmt.Fprintf(&b, "\nFixes: applied %d, recomputed %d, failed %d, skipped %d\n",
			r.Fixes.Applied, r.Fixes.Recomputed, r.Fixes.Failed, r.Fixes.Skipped)
	}
	if r.Remaining != nil {
		fmt.Fprintf(&b, "Critical issues remaining: %d\n", r.Remaining.Critical)
	}
	if len(r.AwaitingConversion) > 0 {
		fmt.Fprintf(&b, "Payments awaiting conversion: %d\n", len(r.AwaitingConversion))
	}
	if reportPath != "" {
		fmt.Fprintf(&b, "\nReport: %s\n", reportPath)
	}
	e.Text = []byte(b.String())
	return e
}
