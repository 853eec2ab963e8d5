// Package submission turns a raw contact-form body into a cleaned,
// validated Submission.
package submission

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Required field names.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldSubject = "subject"
	FieldMessage = "message"
)

// CaptchaField carries the reCAPTCHA token. It is never rendered.
const CaptchaField = "g-recaptcha-response"

// MinMessageLength is the shortest accepted message, in characters.
const MinMessageLength = 10

// Validation failures. ErrInvalidEmail and ErrMessageTooShort can be joined;
// the error text is the client-facing message.
var (
	ErrMissingFields   = errors.New("Missing required fields")
	ErrInvalidEmail    = errors.New("Invalid email address.")
	ErrMessageTooShort = errors.New("Message too short (minimum 10 characters).")
)

// Submission is a cleaned contact-form submission.
type Submission struct {
	Name    string
	Email   string
	Subject string
	Message string

	// Additional holds the non-required, non-empty fields in submission order.
	Additional Fields
}

// Process cleans and validates raw. It returns ErrMissingFields alone when a
// required key is absent; otherwise every failed rule is reported, joined
// in the order email, message.
func Process(raw Fields) (Submission, error) {
	var vals [4]string
	for i, key := range [...]string{FieldName, FieldEmail, FieldSubject, FieldMessage} {
		v, ok := raw.Get(key)
		if !ok {
			return Submission{}, ErrMissingFields
		}
		vals[i] = v
	}

	s := Submission{
		Name:    Clean(vals[0]),
		Email:   SanitizeEmail(Clean(vals[1])),
		Subject: Clean(vals[2]),
		Message: Clean(vals[3]),
	}

	for _, f := range raw {
		if isReserved(f.Key) || f.Value == "" {
			continue
		}
		s.Additional = append(s.Additional, Field{Key: f.Key, Value: Clean(f.Value)})
	}

	var errs []error
	if !ValidEmail(s.Email) {
		errs = append(errs, ErrInvalidEmail)
	}
	if utf8.RuneCountInString(s.Message) < MinMessageLength {
		errs = append(errs, ErrMessageTooShort)
	}
	if len(errs) > 0 {
		return s, &ValidationError{errs: errs}
	}
	return s, nil
}

func isReserved(key string) bool {
	switch key {
	case FieldName, FieldEmail, FieldSubject, FieldMessage, CaptchaField:
		return true
	}
	return false
}

// ValidationError is one or more rule failures. Error joins the messages
// with a space; errors.Is matches each underlying sentinel.
type ValidationError struct {
	errs []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, " ")
}

func (e *ValidationError) Unwrap() []error { return e.errs }

// ValidEmail reports whether s is a bare address with a non-empty local part
// and a dotted domain.
func ValidEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}
