// Package mailer relays a rendered contact-form email to the site owner
// over SMTP using github.com/wneessen/go-mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"

	"github.com/dalemusser/formfling/config"
	"github.com/dalemusser/formfling/render"
	"github.com/wneessen/go-mail"
)

// SubjectPrefix is prepended to the visitor's subject.
const SubjectPrefix = "📧 Contact Form: "

// Envelope is what a submission contributes to the outgoing message. The
// sender fields become Reply-To so replies reach the visitor.
type Envelope struct {
	HTML        render.Email
	Subject     string
	SenderName  string
	SenderEmail string
}

// Result is the outcome of a dispatch: Sent when Err is nil, Failed
// otherwise. Err carries transport detail and must not reach the client.
type Result struct {
	Err error
}

// Sent reports whether the message was accepted by the relay.
func (r Result) Sent() bool { return r.Err == nil }

// Sender dispatches envelopes. *Dispatcher is the SMTP implementation.
type Sender interface {
	Send(ctx context.Context, env Envelope) Result
}

// ErrNoHost is returned by NewClient when no SMTP host is configured.
var ErrNoHost = errors.New("mailer: smtp host is empty")

// Dispatcher sends mail through the configured relay. It holds no
// connection state; every Send dials afresh.
type Dispatcher struct {
	cfg config.SMTPConfig
}

// New returns a Dispatcher for cfg.
func New(cfg config.SMTPConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// NewClient builds a go-mail client for the relay without connecting.
func (d *Dispatcher) NewClient() (*mail.Client, error) {
	if d.cfg.Host == "" {
		return nil, ErrNoHost
	}

	var opts []mail.Option
	// Policy first: WithTLSPortPolicy rewrites a default port.
	switch d.cfg.TLSPolicy {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "opportunistic":
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	if d.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(d.cfg.Port))
	}
	if d.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(d.cfg.Timeout))
	}
	if d.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(d.cfg.Username),
			mail.WithPassword(d.cfg.Password),
		)
	}

	c, err := mail.NewClient(d.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: create client: %w", err)
	}
	return c, nil
}

// Message builds the outgoing message for env.
func (d *Dispatcher) Message(env Envelope) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))

	if err := m.FromFormat(d.cfg.FromName, d.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("mailer: invalid from address: %w", err)
	}
	if err := m.AddToFormat(d.cfg.ToName, d.cfg.ToEmail); err != nil {
		return nil, fmt.Errorf("mailer: invalid to address: %w", err)
	}
	// The visitor's name is free text; net/mail quotes or encodes it.
	replyTo := (&netmail.Address{Name: env.SenderName, Address: env.SenderEmail}).String()
	if err := m.ReplyTo(replyTo); err != nil {
		return nil, fmt.Errorf("mailer: invalid reply-to address: %w", err)
	}

	m.Subject(SubjectPrefix + env.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, string(env.HTML))
	return m, nil
}

// Send builds and delivers env. Failures are returned in the Result, never
// panicked or retried.
func (d *Dispatcher) Send(ctx context.Context, env Envelope) Result {
	m, err := d.Message(env)
	if err != nil {
		return Result{Err: err}
	}
	c, err := d.NewClient()
	if err != nil {
		return Result{Err: err}
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return Result{Err: fmt.Errorf("mailer: send: %w", err)}
	}
	return Result{}
}
