// Package email is the SMTP collaborator used by the Email node.
// Grounded on original_source/src/email/service.rs's EmailService
// (template render, then send via the configured SMTP transport), adapted
// from lettre+SMTP-config-by-name to stdlib net/smtp with one configured
// relay (spec §4.6 names a single SMTP collaborator, not per-node
// provider selection). Stdlib net/smtp and text/template are used
// directly: no pack repo carries a third-party SMTP or templating
// library.
package email

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/openobserve/swisspipe-engine/pkg/collaborators"
	"github.com/openobserve/swisspipe-engine/pkg/model"
)

// Config is the single SMTP relay's connection settings.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Sender renders an EmailConfig against a template context and sends the
// result over one configured SMTP relay.
type Sender struct {
	cfg     Config
	limiter *collaborators.Limiters
	dial    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, limiter *collaborators.Limiters) *Sender {
	return &Sender{
		cfg:     cfg,
		limiter: limiter,
		dial:    smtp.SendMail,
	}
}

// Send renders To/Cc/Bcc/Subject/Body against ctxVars (the inbound
// WorkflowEvent's Data, per spec §4.6 "renders an EmailConfig with the
// event as template context") and relays the message.
func (s *Sender) Send(ctx context.Context, cfg model.EmailConfig, ctxVars map[string]any) error {
	if err := collaborators.Wait(ctx, s.limiter.Email); err != nil {
		return err
	}

	subject, err := render(cfg.Subject, ctxVars)
	if err != nil {
		return fmt.Errorf("email: render subject: %w", err)
	}
	body, err := render(cfg.Body, ctxVars)
	if err != nil {
		return fmt.Errorf("email: render body: %w", err)
	}

	to := append(append([]string{}, cfg.To...), cfg.Cc...)
	to = append(to, cfg.Bcc...)
	if len(to) == 0 {
		return fmt.Errorf("email: no recipients")
	}

	msg := buildMessage(s.cfg.From, cfg.To, cfg.Cc, subject, body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	return s.dial(addr, auth, s.cfg.From, to, msg)
}

func render(tmpl string, vars map[string]any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildMessage(from string, to, cc []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	if len(cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
