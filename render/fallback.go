// render/fallback.go
package render

import (
	"bytes"
	"html/template"

	"github.com/dalemusser/formfling/submission"
)

type fallbackData struct {
	Name, Email, Subject string
	Message              template.HTML
	Timestamp, ClientIP  string
	Origin               string
}

var fallbackTpl = template.Must(template.New("fallback").Parse(`<html><head><meta charset="UTF-8"><style>
    body { margin: 2rem; font-family: Arial, sans-serif; }
    .info { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-radius: 5px; }
    .message { background: #e8f4f8; padding: 1rem; margin: 1rem 0; border-radius: 5px; }
    .meta { background: #f0f0f0; padding: 0.5rem; margin: 1rem 0; font-size: 0.9em; color: #666; }
    </style></head><body>
    <h2>📧 New Contact Form Submission</h2>
    <div class="info">
        <strong>Name:</strong> {{.Name}}<br>
        <strong>Email:</strong> {{.Email}}<br>
        <strong>Subject:</strong> {{.Subject}}<br>
    </div>
    <div class="message">
        <strong>Message:</strong><br>{{.Message}}
    </div>
    <div class="meta">
        <strong>Submitted:</strong> {{.Timestamp}}<br>
        <strong>IP:</strong> {{.ClientIP}}<br>
        <strong>Origin:</strong> {{.Origin}}
    </div>
    </body></html>`))

// Fallback renders the built-in layout used when no template is available.
func Fallback(s submission.Submission, md Metadata) Email {
	var buf bytes.Buffer
	err := fallbackTpl.Execute(&buf, fallbackData{
		Name:      s.Name,
		Email:     s.Email,
		Subject:   s.Subject,
		Message:   nl2br(s.Message),
		Timestamp: md.Timestamp(),
		ClientIP:  md.ClientIP,
		Origin:    md.Origin,
	})
	if err != nil {
		return Email(template.HTMLEscapeString(s.Message))
	}
	return Email(buf.String())
}
