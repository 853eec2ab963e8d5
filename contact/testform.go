// contact/testform.go
package contact

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"
)

// TestFormData is passed to the test form template.
type TestFormData struct {
	SiteKey string // reCAPTCHA site key; empty disables the widget
	Action  string // reCAPTCHA action name
}

// TestForm serves a page with a form posting to /contact, for trying the
// endpoint from a browser.
type TestForm struct {
	tpl    *template.Template
	data   TestFormData
	logger *zap.Logger
}

// NewTestForm parses the template at path.
func NewTestForm(path string, data TestFormData, logger *zap.Logger) (*TestForm, error) {
	tpl, err := template.ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("contact: load test form template: %w", err)
	}
	return newTestForm(tpl, data, logger), nil
}

func newTestForm(tpl *template.Template, data TestFormData, logger *zap.Logger) *TestForm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestForm{tpl: tpl, data: data, logger: logger}
}

func (f *TestForm) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := f.tpl.Execute(&buf, f.data); err != nil {
		f.logger.Error("render test form", zap.Error(err))
		http.Error(w, "Error rendering test form", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
