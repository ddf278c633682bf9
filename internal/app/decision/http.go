package decision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"orderflow/internal/domain"
	"orderflow/internal/httpx"
	"orderflow/internal/idempotency"
	"orderflow/internal/metrics"
)

// Resolver is the slice of the engine the callback surface needs.
type Resolver interface {
	Resolve(ctx context.Context, token string, d domain.Decision) error
}

// Pinger reports broker liveness for the health endpoint.
type Pinger interface {
	Ping() error
}

type Handler struct {
	wf     Resolver
	health Pinger
	m      *metrics.Workflow
	log    zerolog.Logger
}

func NewHandler(wf Resolver, health Pinger, m *metrics.Workflow, log zerolog.Logger) *Handler {
	return &Handler{wf: wf, health: health, m: m, log: log}
}

func Run(ctx context.Context, port int, h *Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /decisions", h.SubmitDecision)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", metrics.Handler())
	return httpx.New(":"+strconv.Itoa(port), mux).Run(ctx)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(); err != nil {
		httpx.WriteProblem(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type decisionRequest struct {
	ContinuationToken string `json:"continuation_token"`
	IsAccepted        *bool  `json:"is_accepted,omitempty"`
	Error             *struct {
		Code  string `json:"code"`
		Cause string `json:"cause"`
	} `json:"error,omitempty"`
}

// SubmitDecision is the inbound continuation trigger: the restaurant's
// system posts back the token from its notification together with either a
// business decision or a technical failure report.
func (h *Handler) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.m.LatencyMS.WithLabelValues("submit_decision").Observe(float64(time.Since(start).Milliseconds()))
	}()

	ctx, span := otel.Tracer("decision-service").Start(r.Context(), "SubmitDecision")
	defer span.End()

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.ContinuationToken == "" {
		httpx.WriteProblem(w, http.StatusBadRequest, "missing_field", "continuation_token is required")
		return
	}
	if (req.IsAccepted == nil) == (req.Error == nil) {
		httpx.WriteProblem(w, http.StatusBadRequest, "ambiguous_decision",
			"exactly one of is_accepted or error must be set")
		return
	}

	var (
		d    domain.Decision
		kind string
	)
	switch {
	case req.Error != nil:
		d = domain.FailureDecision(req.Error.Code, req.Error.Cause)
		kind = "failure"
	case *req.IsAccepted:
		d = domain.BusinessDecision(true)
		kind = "accepted"
	default:
		d = domain.BusinessDecision(false)
		kind = "rejected"
	}
	span.SetAttributes(attribute.String("decision.kind", kind))

	if err := h.wf.Resolve(ctx, req.ContinuationToken, d); err != nil {
		var stale *domain.StaleTokenError
		if errors.As(err, &stale) {
			h.m.StaleTokens.Inc()
			httpx.WriteProblem(w, http.StatusGone, "stale_token",
				"the decision window for this token has closed")
			return
		}
		if errors.Is(err, idempotency.ErrInProgress) {
			httpx.WriteProblem(w, http.StatusServiceUnavailable, "busy", "retry later")
			return
		}
		h.log.Error().Err(err).Str("action", "decision_failed").Str("kind", kind).Send()
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "failed to apply decision")
		return
	}

	h.m.Resolutions.WithLabelValues(kind).Inc()
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
