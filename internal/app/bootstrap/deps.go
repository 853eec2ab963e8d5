package bootstrap

import (
	"context"

	"github.com/dalemusser/formfling/contact"
	"github.com/dalemusser/formfling/health"
	"github.com/dalemusser/formfling/mailer"
	"github.com/dalemusser/formfling/recaptcha"
	"github.com/dalemusser/formfling/render"
)

// Deps holds the long-lived collaborators built from config.
type Deps struct {
	Sender    mailer.Sender
	MailCheck health.MailCheck
	Renderer  *render.Renderer
	Captcha   *recaptcha.Verifier

	// TestForm is nil unless enable_test_form is set.
	TestForm *contact.TestForm
}

// mailCheck reports whether a mail client can be constructed from config.
// It never opens a connection.
func mailCheck(d *mailer.Dispatcher) health.MailCheck {
	return func(context.Context) error {
		_, err := d.NewClient()
		return err
	}
}
