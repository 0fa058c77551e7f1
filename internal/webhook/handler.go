package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mattjoyce/intake-gw/internal/intake"
	"github.com/mattjoyce/intake-gw/internal/ledger"
	"github.com/mattjoyce/intake-gw/internal/log"
	"github.com/mattjoyce/intake-gw/internal/metrics"
	"github.com/mattjoyce/intake-gw/internal/notify"
)

// errTooLarge is returned by readBody when the body exceeds MaxBodySize.
var errTooLarge = errors.New("payload too large")

// handleWebhook handles ElevenLabs post-call payloads.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	route := s.config.Path
	logger := log.WithRequest(s.logger, middleware.GetReqID(ctx))

	body, ok := s.admit(w, r, route, logger)
	if !ok {
		return
	}

	payload, err := intake.Parse(body)
	if err != nil {
		logger.Warn("malformed payload", "path", route, "error", err)
		s.fail(w, route, http.StatusBadRequest, metrics.OutcomeMalformed, "malformed JSON payload")
		return
	}

	fields := s.schema.Extract(payload)
	metrics.FieldsExtracted.Observe(float64(len(fields)))

	d := ledger.Delivery{
		RequestID:   middleware.GetReqID(ctx),
		Route:       route,
		Fingerprint: ledger.Fingerprint(body),
		Channel:     s.notifier.Channel(),
		FieldCount:  len(fields),
	}

	if len(fields) == 0 {
		logger.Warn("no patient data found", "path", route, "fingerprint", d.Fingerprint)
		d.Status = ledger.StatusEmpty
		s.record(ctx, logger, d)
		s.fail(w, route, http.StatusBadRequest, metrics.OutcomeEmpty, "no patient data found")
		return
	}

	s.deliver(w, r, logger, d, func(ctx context.Context) (notify.Receipt, error) {
		return s.notifier.NotifyIntake(ctx, fields)
	})
}

// handleEmail handles flat camelCase intake bodies rendered with the basic
// template.
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	route := s.config.EmailPath
	logger := log.WithRequest(s.logger, middleware.GetReqID(ctx))

	body, ok := s.admit(w, r, route, logger)
	if !ok {
		return
	}

	var in notify.BasicIntake
	if err := json.Unmarshal(body, &in); err != nil {
		logger.Warn("malformed payload", "path", route, "error", err)
		s.fail(w, route, http.StatusBadRequest, metrics.OutcomeMalformed, "malformed JSON payload")
		return
	}

	d := ledger.Delivery{
		RequestID:   middleware.GetReqID(ctx),
		Route:       route,
		Fingerprint: ledger.Fingerprint(body),
		Channel:     s.notifier.Channel(),
		FieldCount:  countBasic(in),
	}
	metrics.FieldsExtracted.Observe(float64(d.FieldCount))

	if d.FieldCount == 0 {
		d.Status = ledger.StatusEmpty
		s.record(ctx, logger, d)
		s.fail(w, route, http.StatusBadRequest, metrics.OutcomeEmpty, "no patient data found")
		return
	}

	s.deliver(w, r, logger, d, func(ctx context.Context) (notify.Receipt, error) {
		return s.notifier.NotifyBasic(ctx, in)
	})
}

// admit reads the body and applies the size limit and the signature policy.
// It writes the error response itself and reports false when the request
// must stop.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, route string, logger *slog.Logger) ([]byte, bool) {
	body, err := s.readBody(r)
	if errors.Is(err, errTooLarge) {
		s.fail(w, route, http.StatusRequestEntityTooLarge, metrics.OutcomeTooLarge, "payload too large")
		return nil, false
	}
	if err != nil {
		logger.Error("failed to read request body", "path", route, "error", err)
		s.fail(w, route, http.StatusInternalServerError, metrics.OutcomeFailed, "failed to read request body")
		return nil, false
	}

	if !s.verified(r, body) {
		logger.Warn("webhook signature verification failed",
			"path", route,
			"header", s.config.SignatureHeader,
			"signature_present", r.Header.Get(s.config.SignatureHeader) != "",
		)
		s.fail(w, route, http.StatusUnauthorized, metrics.OutcomeUnauthorized, "invalid signature")
		return nil, false
	}
	return body, true
}

// deliver applies duplicate suppression, dispatches, records the outcome and
// writes the response.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, logger *slog.Logger, d ledger.Delivery, send func(context.Context) (notify.Receipt, error)) {
	ctx := r.Context()
	route := d.Route

	if s.dedupeEnabled() {
		// The claim is held until the outcome is recorded, so a redelivery
		// racing the first send sees either the claim or the sent row.
		if !s.claim(d.Fingerprint) {
			s.suppress(ctx, w, logger, d, "in_flight")
			return
		}
		defer s.unclaim(d.Fingerprint)

		if s.isDuplicate(ctx, logger, d.Fingerprint) {
			s.suppress(ctx, w, logger, d, "sent")
			return
		}
	}

	d.ID = uuid.NewString()
	receipt, err := send(ctx)
	if err != nil {
		d.Status = ledger.StatusFailed
		d.LastError = err.Error()
		s.record(ctx, logger, d)
		logger.Error("intake dispatch failed", "path", route, "delivery_id", d.ID, "error", err)
		s.fail(w, route, http.StatusInternalServerError, metrics.OutcomeFailed, "failed to send notification")
		return
	}

	d.Status = ledger.StatusSent
	d.ProviderID = receipt.ProviderID
	s.record(ctx, logger, d)

	logger.Info("intake delivered",
		"path", route,
		"delivery_id", d.ID,
		"channel", receipt.Channel,
		"provider_id", receipt.ProviderID,
		"fields", d.FieldCount,
	)
	metrics.RequestsTotal.WithLabelValues(route, metrics.OutcomeSuccess).Inc()
	s.respondJSON(w, http.StatusOK, Response{Status: StatusSuccess, DeliveryID: d.ID})
}

// verified applies the signature policy: dev mode or an empty secret skip
// verification.
func (s *Server) verified(r *http.Request, body []byte) bool {
	if s.config.DevMode || s.config.Secret == "" {
		return true
	}
	return VerifySignature(r.Header.Get(s.config.SignatureHeader), body, s.config.Secret)
}

func (s *Server) readBody(r *http.Request) ([]byte, error) {
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.config.MaxBodySize {
		return nil, errTooLarge
	}
	return body, nil
}

func (s *Server) dedupeEnabled() bool {
	return s.ledger != nil && s.config.DedupeTTL > 0
}

// claim marks fingerprint as being dispatched. It reports false when another
// request already holds it.
func (s *Server) claim(fingerprint string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[fingerprint]; busy {
		return false
	}
	s.inflight[fingerprint] = struct{}{}
	return true
}

func (s *Server) unclaim(fingerprint string) {
	s.inflightMu.Lock()
	delete(s.inflight, fingerprint)
	s.inflightMu.Unlock()
}

// suppress records and answers a duplicate delivery. reason says whether the
// earlier copy is still in flight or already sent.
func (s *Server) suppress(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, d ledger.Delivery, reason string) {
	logger.Info("duplicate payload suppressed", "path", d.Route, "fingerprint", d.Fingerprint, "reason", reason)
	d.Status = ledger.StatusDuplicate
	s.record(ctx, logger, d)
	metrics.RequestsTotal.WithLabelValues(d.Route, metrics.OutcomeDuplicate).Inc()
	s.respondJSON(w, http.StatusOK, Response{Status: StatusDuplicate})
}

func (s *Server) isDuplicate(ctx context.Context, logger *slog.Logger, fingerprint string) bool {
	found, err := s.ledger.SentSince(ctx, fingerprint, s.now().Add(-s.config.DedupeTTL))
	if err != nil {
		logger.Warn("duplicate lookup failed", "fingerprint", fingerprint, "error", err)
		return false
	}
	return found
}

// record writes d to the ledger. Failures are logged and never change the
// response.
func (s *Server) record(ctx context.Context, logger *slog.Logger, d ledger.Delivery) {
	if s.ledger == nil {
		return
	}
	// The outcome is still worth recording when the client has gone away.
	if _, err := s.ledger.Record(context.WithoutCancel(ctx), d); err != nil {
		logger.Error("failed to record delivery", "status", d.Status, "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, route string, status int, outcome, message string) {
	metrics.RequestsTotal.WithLabelValues(route, outcome).Inc()
	s.respondError(w, status, message)
}

// countBasic counts the non-empty intake fields of in.
func countBasic(in notify.BasicIntake) int {
	n := 0
	for _, v := range []string{
		in.PatientName, in.PhoneNumber, in.Email, in.DateOfBirth,
		in.InsuranceProvider, in.ReasonForVisit, in.Transcript,
	} {
		if v != "" {
			n++
		}
	}
	return n
}
