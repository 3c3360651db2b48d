package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	campaignledger "truevote/contexts/election-ledger/campaign-ledger"
	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	ledgererrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	ledgerhttp "truevote/contexts/election-ledger/campaign-ledger/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "truevote/internal/platform/httpserver/docs"
)

const tracerName = "truevote/internal/platform/httpserver"

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	ledger campaignledger.Module
	tracer trace.Tracer
	http   *http.Server
}

func New(ledger campaignledger.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		ledger: ledger,
		tracer: otel.Tracer(tracerName),
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Open vote
// streams end when their request contexts are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.route("POST /v1/campaigns", s.handleCreateCampaign)
	s.route("GET /v1/campaigns/count", s.handleCountCampaigns)
	s.route("GET /v1/campaigns/{id}", s.handleGetCampaign)
	s.route("GET /v1/campaigns/{id}/candidates/{index}", s.handleGetCandidate)
	s.route("POST /v1/campaigns/{id}/candidates", s.handleAddCandidate)
	s.route("POST /v1/campaigns/{id}/votes", s.handleCastVote)
	s.route("GET /v1/campaigns/{id}/status", s.handleStatus)
	s.route("GET /v1/campaigns/{id}/voters/{voter_id}", s.handleVoterStanding)
	s.route("GET /v1/campaigns/{id}/results", s.handleResults)
	s.route("GET /v1/campaigns/{id}/events", s.handleWatchVotes)
	s.route("GET /v1/voters/{voter_id}/campaigns", s.handleEligibleCampaigns)
	s.route("GET /v1/owners/{owner_id}/campaigns", s.handleOwnedCampaigns)
}

// route registers handler under pattern with one server span per request.
func (s *Server) route(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), pattern,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", pattern),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ledgerhttp.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.CreateCampaignHandler(r.Context(), ownerID, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCountCampaigns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Handler.CountCampaignsHandler(r.Context()))
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.GetCampaignHandler(r.Context(), campaignID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_candidate_index", "candidate index must be an integer")
		return
	}
	resp, err := s.ledger.Handler.GetCandidateHandler(r.Context(), campaignID, index)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	callerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if callerID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}

	var req ledgerhttp.AddCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.AddCandidateHandler(r.Context(), callerID, campaignID, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterID := resolveVoterID(r)
	if voterID == "" {
		writeError(w, http.StatusUnauthorized, "missing_voter", "X-Voter-Id header is required")
		return
	}
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}

	var req ledgerhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.CastVoteHandler(
		r.Context(),
		voterID,
		strings.TrimSpace(r.Header.Get("X-Admission-Grant")),
		campaignID,
		req,
	)
	if err != nil {
		if errors.Is(err, ledgererrors.ErrVotingNotOpen) {
			writeError(w, http.StatusConflict, "voting_not_open", s.votingNotOpenMessage(r.Context(), campaignID))
			return
		}
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.StatusHandler(r.Context(), campaignID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoterStanding(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.VoterStandingHandler(r.Context(), campaignID, r.PathValue("voter_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.ResultsHandler(r.Context(), campaignID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEligibleCampaigns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Handler.EligibleCampaignsHandler(r.Context(), r.PathValue("voter_id")))
}

func (s *Server) handleOwnedCampaigns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Handler.OwnedCampaignsHandler(r.Context(), r.PathValue("owner_id")))
}

// handleWatchVotes streams vote.cast events as server-sent events until the
// client goes away.
func (s *Server) handleWatchVotes(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := parseCampaignID(w, r)
	if !ok {
		return
	}
	events, err := s.ledger.Handler.WatchVotesHandler(r.Context(), campaignID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return
	}
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: vote_cast\ndata: %s\n\n", payload); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) votingNotOpenMessage(ctx context.Context, campaignID uint64) string {
	status, err := s.ledger.Handler.StatusHandler(ctx, campaignID)
	if err != nil {
		return ledgererrors.ErrVotingNotOpen.Error()
	}
	switch entities.Status(status.Status) {
	case entities.StatusScheduled:
		return "voting has not started yet"
	case entities.StatusClosed:
		return "voting has ended"
	default:
		return ledgererrors.ErrVotingNotOpen.Error()
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, ledgererrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "campaign_not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrOutOfRange):
		writeError(w, http.StatusNotFound, "candidate_not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, ledgererrors.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ledgererrors.ErrVotingNotOpen):
		writeError(w, http.StatusConflict, "voting_not_open", err.Error())
	case errors.Is(err, ledgererrors.ErrNotEligible):
		writeError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, ledgererrors.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidCandidate):
		writeError(w, http.StatusBadRequest, "invalid_candidate", err.Error())
	case errors.Is(err, ledgererrors.ErrAdmissionRequired):
		writeError(w, http.StatusUnauthorized, "admission_required", err.Error())
	case errors.Is(err, ledgererrors.ErrAdmissionDenied):
		writeError(w, http.StatusForbidden, "admission_denied", err.Error())
	case errors.Is(err, ledgererrors.ErrStreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "stream_unavailable", err.Error())
	default:
		s.logger.Error("ledger request failed",
			"event", "http_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func parseCampaignID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	campaignID, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_campaign_id", "campaign id must be a non-negative integer")
		return 0, false
	}
	return campaignID, true
}

func resolveVoterID(r *http.Request) string {
	if voterID := strings.TrimSpace(r.Header.Get("X-Voter-Id")); voterID != "" {
		return voterID
	}
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
