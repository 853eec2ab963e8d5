// Package render builds the HTML body of a contact-form email, either from
// a template file with {{PLACEHOLDER}} tokens or from a built-in layout.
package render

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dalemusser/formfling/submission"
	"go.uber.org/zap"
)

// Email is a rendered HTML document.
type Email string

// Placeholder tokens recognised in the template file.
const (
	PlaceholderSubject     = "{{SUBJECT}}"
	PlaceholderWebsiteName = "{{WEBSITE_NAME}}"
	PlaceholderFormFields  = "{{FORM_FIELDS}}"
	PlaceholderTimestamp   = "{{TIMESTAMP}}"
	PlaceholderClientIP    = "{{CLIENT_IP}}"
	PlaceholderUserAgent   = "{{USER_AGENT}}"
	PlaceholderOrigin      = "{{ORIGIN}}"
	PlaceholderReferer     = "{{REFERER}}"
)

// Renderer reads its template on every call, so edits take effect without
// a restart and a missing file simply selects the fallback layout.
type Renderer struct {
	fsys   fs.FS
	name   string
	logger *zap.Logger
}

// New returns a Renderer reading name from fsys. A nil fsys always renders
// the fallback layout.
func New(fsys fs.FS, name string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{fsys: fsys, name: name, logger: logger}
}

// NewFromPath returns a Renderer for a template file on disk.
func NewFromPath(path string, logger *zap.Logger) *Renderer {
	if strings.TrimSpace(path) == "" {
		return New(nil, "", logger)
	}
	return New(os.DirFS(filepath.Dir(path)), filepath.Base(path), logger)
}

// Render produces the email body for s.
func (r *Renderer) Render(s submission.Submission, md Metadata) Email {
	tpl, err := r.load()
	if err != nil {
		r.logger.Debug("email template unavailable; using fallback layout",
			zap.String("template", r.name), zap.Error(err))
		return Fallback(s, md)
	}

	rep := strings.NewReplacer(
		PlaceholderSubject, template.HTMLEscapeString(s.Subject),
		PlaceholderWebsiteName, template.HTMLEscapeString(md.WebsiteName()),
		PlaceholderFormFields, string(FieldBlocks(s)),
		PlaceholderTimestamp, template.HTMLEscapeString(md.Timestamp()),
		PlaceholderClientIP, template.HTMLEscapeString(md.ClientIP),
		PlaceholderUserAgent, template.HTMLEscapeString(md.UserAgent),
		PlaceholderOrigin, template.HTMLEscapeString(md.Origin),
		PlaceholderReferer, template.HTMLEscapeString(md.Referer),
	)
	return Email(rep.Replace(tpl))
}

var errEmptyTemplate = errors.New("template is empty")

func (r *Renderer) load() (string, error) {
	if r.fsys == nil {
		return "", fs.ErrNotExist
	}
	b, err := fs.ReadFile(r.fsys, r.name)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return "", errEmptyTemplate
	}
	return string(b), nil
}

// FieldBlocks renders one block per non-empty field: name, email, subject,
// message, then the additional fields in submission order.
func FieldBlocks(s submission.Submission) template.HTML {
	var buf bytes.Buffer
	write := func(key string, value any) {
		_ = fieldTpl.Execute(&buf, fieldData{Label: Label(key), Value: value})
	}

	write(submission.FieldName, s.Name)
	write(submission.FieldEmail, s.Email)
	if s.Subject != "" {
		write(submission.FieldSubject, s.Subject)
	}
	write(submission.FieldMessage, nl2br(s.Message))
	for _, f := range s.Additional {
		if f.Value != "" {
			write(f.Key, f.Value)
		}
	}
	return template.HTML(buf.String())
}

// Label upper-cases the first character of a field key.
func Label(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

var lineBreaks = strings.NewReplacer(
	"\r\n", "<br />\r\n",
	"\n\r", "<br />\n\r",
	"\n", "<br />\n",
	"\r", "<br />\r",
)

// nl2br escapes s and inserts <br /> before each line break.
func nl2br(s string) template.HTML {
	return template.HTML(lineBreaks.Replace(template.HTMLEscapeString(s)))
}

type fieldData struct {
	Label string
	Value any // string is escaped; template.HTML is trusted
}

var fieldTpl = template.Must(template.New("field").Parse(`
    <div style="color:#000000;font-family:'Open Sans', 'Helvetica Neue', Helvetica, Arial, sans-serif;line-height:1.5;padding-top:10px;padding-right:25px;padding-bottom:10px;padding-left:25px;">
        <div class="txtTinyMce-wrapper" style="line-height: 1.5; font-size: 12px; color: #000000; font-family: 'Open Sans', 'Helvetica Neue', Helvetica, Arial, sans-serif; mso-line-height-alt: 18px;">
            <p style="margin: 0; font-size: 14px; line-height: 1.5; word-break: break-word; mso-line-height-alt: 21px; margin-top: 0; margin-bottom: 0;">
                <span style="color: #999999;">{{.Label}}</span>
            </p>
            <div style="margin: 8px 0; font-size: 16px; line-height: 1.5; word-break: break-word; mso-line-height-alt: 24px;">
                {{.Value}}
            </div>
        </div>
    </div>`))
