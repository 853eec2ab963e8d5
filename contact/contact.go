// Package contact serves the contact-form endpoint: origin check, method
// check, body decoding, optional reCAPTCHA, validation, rendering and
// dispatch, answered with the JSON status envelope.
package contact

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/formfling/config"
	"github.com/dalemusser/formfling/httputil"
	"github.com/dalemusser/formfling/mailer"
	"github.com/dalemusser/formfling/metrics"
	"github.com/dalemusser/formfling/origin"
	"github.com/dalemusser/formfling/recaptcha"
	"github.com/dalemusser/formfling/render"
	"github.com/dalemusser/formfling/submission"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Client-facing messages.
const (
	MsgOriginDenied     = "Access denied: Invalid origin"
	MsgMethodNotAllowed = "Only POST requests are allowed"
	MsgBodyTooLarge     = "Request body too large"
	MsgInvalidBody      = "Invalid request body"
	MsgDispatchFailed   = "Failed to send message"
	MsgSent             = "Message sent successfully"
)

// Handler serves POST and OPTIONS on the contact endpoint.
type Handler struct {
	policy   origin.Policy
	renderer *render.Renderer
	sender   mailer.Sender
	captcha  *recaptcha.Verifier
	logger   *zap.Logger
	now      func() time.Time
}

// New wires a Handler. captcha may be nil (verification off).
func New(cfg *config.Config, renderer *render.Renderer, sender mailer.Sender, captcha *recaptcha.Verifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		policy:   origin.NewPolicy(cfg.AllowedOrigins),
		renderer: renderer,
		sender:   sender,
		captcha:  captcha,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(zap.String("request_id", chimw.GetReqID(r.Context())))

	decision := h.policy.Check(r.Header.Get("Origin"), r.Header.Get("Referer"))

	if r.Method == http.MethodOptions {
		decision.ApplyPreflight(w.Header())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}

	if !decision.Allowed {
		metrics.RecordSubmission(metrics.OutcomeDenied)
		log.Info("origin denied",
			zap.String("origin", r.Header.Get("Origin")),
			zap.String("referer", r.Header.Get("Referer")))
		httputil.WriteError(w, http.StatusBadRequest, MsgOriginDenied)
		return
	}
	decision.Apply(w.Header())

	if r.Method != http.MethodPost {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		httputil.WriteError(w, http.StatusBadRequest, MsgMethodNotAllowed)
		return
	}

	fields, err := submission.ReadRequest(r)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		log.Info("undecodable request body", zap.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, MsgInvalidBody)
		return
	}

	sub, err := submission.Process(fields)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		log.Info("submission rejected", zap.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	md := render.MetadataFromRequest(r, h.now())

	if h.captcha.Enabled() {
		token, _ := fields.Get(submission.CaptchaField)
		if err := h.captcha.Verify(r.Context(), token, md.ClientIP); err != nil {
			metrics.RecordSubmission(metrics.OutcomeInvalid)
			log.Warn("recaptcha rejected submission", zap.Error(err), zap.String("client_ip", md.ClientIP))
			httputil.WriteError(w, http.StatusBadRequest, recaptcha.ErrVerificationFailed.Error())
			return
		}
	}

	body := h.renderer.Render(sub, md)

	res := h.sender.Send(r.Context(), mailer.Envelope{
		HTML:        body,
		Subject:     sub.Subject,
		SenderName:  sub.Name,
		SenderEmail: sub.Email,
	})
	if !res.Sent() {
		metrics.RecordSubmission(metrics.OutcomeFailed)
		log.Error("mail dispatch failed", zap.Error(res.Err), zap.String("client_ip", md.ClientIP))
		httputil.WriteError(w, http.StatusOK, MsgDispatchFailed)
		return
	}

	metrics.RecordSubmission(metrics.OutcomeSent)
	log.Info("contact message sent",
		zap.String("client_ip", md.ClientIP),
		zap.String("origin", md.Origin),
		zap.Int("additional_fields", len(sub.Additional)))
	httputil.WriteSuccess(w, MsgSent)
}

// Mount registers the handler on /contact and /submit for every method, so
// the origin check always precedes the method check.
func (h *Handler) Mount(r chi.Router) {
	r.Handle("/contact", h)
	r.Handle("/submit", h)
}
