// Package server exposes presentation verification over HTTP and websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tlsn-verifier/inspect"
	"tlsn-verifier/notary"
	"tlsn-verifier/shared"
)

// VerifyRequest is the body of POST /verify.
type VerifyRequest struct {
	Presentation    string                  `json:"presentation"`
	NotaryKey       string                  `json:"notaryKey"`
	ResponseMatches []inspect.ResponseMatch `json:"responseMatches,omitempty"`
}

// EnvelopeRequest is the body of POST /verify/envelope.
type EnvelopeRequest struct {
	Envelope        json.RawMessage         `json:"envelope"`
	NotaryKey       string                  `json:"notaryKey"`
	ResponseMatches []inspect.ResponseMatch `json:"responseMatches,omitempty"`
}

// RequestSummary describes the disclosed request line, when it parses.
type RequestSummary struct {
	Method string `json:"method"`
	Target string `json:"target"`
	Host   string `json:"host,omitempty"`
}

type VerifyResponse struct {
	RequestID string `json:"request_id"`
	notary.Result
	ServerName    string               `json:"serverName,omitempty"`
	AttestationID string               `json:"attestationId"`
	Request       *RequestSummary      `json:"request,omitempty"`
	Matches       []inspect.Match      `json:"matches,omitempty"`
	Envelope      *notary.AttestedData `json:"envelope,omitempty"`
	Receipt       string               `json:"receipt,omitempty"`
}

type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

const (
	codeInvalidRequest    = "invalid_request"
	codeBodyTooLarge      = "body_too_large"
	codeMatchFailed       = "response_match_failed"
	codeResponseUnchecked = "response_not_checkable"
	codeInternal          = "internal_error"
)

// Server holds the verifier and everything its handlers share.
type Server struct {
	cfg      *Config
	verifier *notary.Verifier
	logger   *shared.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	receipts *ReceiptService
	upgrader websocket.Upgrader
}

// New builds a server. Extra options are passed to the notary verifier.
func New(cfg *Config, logger *shared.Logger, opts ...notary.Option) *Server {
	if logger == nil {
		logger = shared.NewNopLogger()
	}
	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		verifier: notary.NewVerifier(append([]notary.Option{notary.WithLogger(logger)}, opts...)...),
		logger:   logger,
		registry: registry,
		metrics:  NewMetrics(registry),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Verification needs no credentials, any origin may call it
				return true
			},
		},
	}
	if cfg.ReceiptSecret != "" {
		s.receipts = NewReceiptService(cfg.ReceiptSecret, cfg.ReceiptIssuer, cfg.ReceiptTTL)
	}
	return s
}

// Receipts returns the receipt service, nil when receipts are disabled.
func (s *Server) Receipts() *ReceiptService {
	return s.receipts
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Post("/verify", s.HandleVerify)
	r.Post("/verify/envelope", s.HandleVerifyEnvelope)
	r.Get("/ws", s.HandleWebsocket)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Verifier service listening", zap.Int("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down verifier service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": notary.FormatVersion,
	})
}

// HandleVerify verifies a hex encoded presentation.
func (s *Server) HandleVerify(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	body, ok := s.readBody(w, r, requestID)
	if !ok {
		return
	}
	resp, err := s.verify(requestID, "http", schemaVerify, body)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleVerifyEnvelope verifies a presentation envelope document.
func (s *Server) HandleVerifyEnvelope(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	body, ok := s.readBody(w, r, requestID)
	if !ok {
		return
	}
	resp, err := s.verify(requestID, "http", schemaEnvelope, body)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, requestID string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:       codeBodyTooLarge,
				Description: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				RequestID:   requestID,
			})
			return nil, false
		}
		s.writeError(w, requestID, &requestError{err: err})
		return nil, false
	}
	return body, true
}

// requestError marks a request the schema or decoder rejected.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// uncheckableError marks a verified response that assertions cannot run on.
type uncheckableError struct {
	err error
}

func (e *uncheckableError) Error() string { return "response cannot be checked: " + e.err.Error() }
func (e *uncheckableError) Unwrap() error { return e.err }

// verify validates a request body of the given kind and runs it through the
// verifier, the response checks and the receipt service.
func (s *Server) verify(requestID, source, kind string, body []byte) (*VerifyResponse, error) {
	start := time.Now()
	log := s.logger.WithRequest(requestID)

	resp, err := s.verifyBody(requestID, kind, body)
	outcome := "ok"
	if err != nil {
		outcome = errorCode(err)
		log.Info("Verification request rejected", zap.String("kind", kind), zap.String("outcome", outcome), zap.Error(err))
	} else {
		log.WithAttestation(resp.AttestationID).Info("Verification request succeeded",
			zap.String("kind", kind),
			zap.Int("matches", len(resp.Matches)))
	}
	s.metrics.ObserveVerification(source, outcome, start)
	return resp, err
}

func (s *Server) verifyBody(requestID, kind string, body []byte) (*VerifyResponse, error) {
	if err := validateRequest(kind, body); err != nil {
		return nil, &requestError{err: err}
	}

	var (
		report   *notary.Report
		attested *notary.AttestedData
		matches  []inspect.ResponseMatch
		err      error
	)
	switch kind {
	case schemaVerify:
		var req VerifyRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &requestError{err: err}
		}
		matches = req.ResponseMatches
		report, err = s.verifier.VerifyReport(req.Presentation, req.NotaryKey)
	case schemaEnvelope:
		var req EnvelopeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &requestError{err: err}
		}
		matches = req.ResponseMatches
		attested, report, err = s.verifier.VerifyEnvelope(req.Envelope, req.NotaryKey)
	default:
		return nil, fmt.Errorf("unknown request kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	resp := &VerifyResponse{
		RequestID:     requestID,
		Result:        report.Result,
		ServerName:    report.ServerName,
		AttestationID: report.AttestationID,
		Envelope:      attested,
	}
	if report.Transcript != nil {
		if req, err := inspect.ParseRequest(report.Transcript.SentUnsafe()); err == nil {
			resp.Request = &RequestSummary{Method: req.Method, Target: req.Target, Host: req.Host()}
		} else {
			s.logger.WithRequest(requestID).Debug("Disclosed request does not parse", zap.Error(err))
		}
	}
	if len(matches) > 0 {
		_, found, err := inspect.CheckResponse(report.Transcript, matches)
		if err != nil {
			var merr *inspect.MatchError
			if !errors.As(err, &merr) {
				err = &uncheckableError{err: err}
			}
			return nil, err
		}
		resp.Matches = found
	}
	if s.receipts != nil {
		receipt, err := s.receipts.Issue(report)
		if err != nil {
			return nil, err
		}
		resp.Receipt = receipt
	}
	return resp, nil
}

// errorStatus maps an error to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	var nerr *notary.Error
	var merr *inspect.MatchError
	var rerr *requestError
	var uerr *uncheckableError
	switch {
	case errors.As(err, &rerr):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.As(err, &nerr):
		switch nerr.Type {
		case notary.TypeKeyMismatch, notary.TypeVerificationFailed:
			return http.StatusUnprocessableEntity, string(nerr.Type)
		default:
			return http.StatusBadRequest, string(nerr.Type)
		}
	case errors.As(err, &merr):
		return http.StatusUnprocessableEntity, codeMatchFailed
	case errors.As(err, &uerr):
		return http.StatusUnprocessableEntity, codeResponseUnchecked
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func errorCode(err error) string {
	_, code := errorStatus(err)
	return code
}

func errorBody(requestID string, err error) (int, ErrorResponse) {
	status, code := errorStatus(err)
	desc := err.Error()
	if status == http.StatusInternalServerError {
		desc = ""
	}
	return status, ErrorResponse{Error: code, Description: desc, RequestID: requestID}
}

func (s *Server) writeError(w http.ResponseWriter, requestID string, err error) {
	status, body := errorBody(requestID, err)
	if status == http.StatusInternalServerError {
		s.logger.WithRequest(requestID).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}
