package order

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
	"orderflow/internal/metrics"
)

// Workflow is the slice of the engine the placement surface needs.
type Workflow interface {
	Start(ctx context.Context, orderID, restaurantName string) error
}

// StatusReader backs the order status endpoint.
type StatusReader interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
}

// Pinger reports broker liveness for the health endpoint.
type Pinger interface {
	Ping() error
}

type Handler struct {
	wf     Workflow
	orders StatusReader
	health Pinger
	m      *metrics.Workflow
	log    zerolog.Logger
}

func NewHandler(wf Workflow, orders StatusReader, health Pinger, m *metrics.Workflow, log zerolog.Logger) *Handler {
	return &Handler{wf: wf, orders: orders, health: health, m: m, log: log}
}

func Run(ctx context.Context, port int, h *Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", h.PlaceOrder)
	mux.HandleFunc("GET /orders/{order_id}", h.GetOrder)
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

type placeOrderRequest struct {
	OrderID        string `json:"order_id"`
	RestaurantName string `json:"restaurant_name"`
}

type placeOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// PlaceOrder starts the workflow and answers immediately with the placed
// order id; the caller is never blocked on the restaurant's decision.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.m.LatencyMS.WithLabelValues("place_order").Observe(float64(time.Since(start).Milliseconds()))
	}()

	ctx, span := otel.Tracer("order-service").Start(r.Context(), "PlaceOrder")
	defer span.End()

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.OrderID == "" || req.RestaurantName == "" {
		httpx.WriteProblem(w, http.StatusBadRequest, "missing_field", "order_id and restaurant_name are required")
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	if err := h.wf.Start(ctx, req.OrderID, req.RestaurantName); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			httpx.WriteProblem(w, http.StatusConflict, "duplicate_order", conflict.Error())
			return
		}
		h.log.Error().Err(err).Str("action", "place_order_failed").Str("order_id", req.OrderID).Send()
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "failed to place order")
		return
	}

	h.m.Placements.Inc()
	httpx.WriteJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID: req.OrderID,
		Status:  string(domain.StatusPlaced),
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("order_id")
	o, err := h.orders.Get(r.Context(), id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("action", "get_order_failed").Str("order_id", id).Send()
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "failed to load order")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"order_id":        o.ID,
		"restaurant_name": o.RestaurantName,
		"status":          o.Status,
		"updated_at":      o.UpdatedAt,
	})
}
