package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
	"orderflow/internal/metrics"
)

var testMetrics = metrics.New("order_test")

type stubWorkflow struct {
	startedID   string
	startedName string
	err         error
}

func (s *stubWorkflow) Start(_ context.Context, orderID, restaurantName string) error {
	s.startedID = orderID
	s.startedName = restaurantName
	return s.err
}

type stubReader struct {
	order *domain.Order
	err   error
}

func (s *stubReader) Get(context.Context, string) (*domain.Order, error) {
	return s.order, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping() error { return p.err }

func newTestHandler(wf Workflow, orders StatusReader) *Handler {
	return NewHandler(wf, orders, stubPinger{}, testMetrics, zerolog.Nop())
}

func placeRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
}

func TestPlaceOrderCreated(t *testing.T) {
	wf := &stubWorkflow{}
	h := newTestHandler(wf, &stubReader{})

	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, placeRequest(`{"order_id":"ord-1","restaurant_name":"Napoli"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ord-1", wf.startedID)
	assert.Equal(t, "Napoli", wf.startedName)

	var resp placeOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ord-1", resp.OrderID)
	assert.Equal(t, "PLACED", resp.Status)
}

func TestPlaceOrderRejectsBadJSON(t *testing.T) {
	h := newTestHandler(&stubWorkflow{}, &stubReader{})

	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, placeRequest(`{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderRequiresFields(t *testing.T) {
	h := newTestHandler(&stubWorkflow{}, &stubReader{})

	for _, body := range []string{
		`{}`,
		`{"order_id":"ord-1"}`,
		`{"restaurant_name":"Napoli"}`,
	} {
		rec := httptest.NewRecorder()
		h.PlaceOrder(rec, placeRequest(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestPlaceOrderDuplicateConflicts(t *testing.T) {
	wf := &stubWorkflow{err: &domain.ConflictError{OrderID: "ord-1"}}
	h := newTestHandler(wf, &stubReader{})

	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, placeRequest(`{"order_id":"ord-1","restaurant_name":"Napoli"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate_order")
}

func TestPlaceOrderInternalError(t *testing.T) {
	wf := &stubWorkflow{err: errors.New("broker down")}
	h := newTestHandler(wf, &stubReader{})

	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, placeRequest(`{"order_id":"ord-1","restaurant_name":"Napoli"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetOrderFound(t *testing.T) {
	reader := &stubReader{order: &domain.Order{
		ID:             "ord-1",
		RestaurantName: "Napoli",
		Status:         domain.StatusAccepted,
		UpdatedAt:      time.Now(),
	}}
	h := newTestHandler(&stubWorkflow{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil)
	req.SetPathValue("order_id", "ord-1")
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ACCEPTED"`)
}

func TestGetOrderNotFound(t *testing.T) {
	reader := &stubReader{err: domain.ErrOrderNotFound}
	h := newTestHandler(&stubWorkflow{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
	req.SetPathValue("order_id", "missing")
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderErrorBodyIsOpaque(t *testing.T) {
	reader := &stubReader{err: errors.New("connect to 10.0.0.5:5432 refused")}
	h := newTestHandler(&stubWorkflow{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil)
	req.SetPathValue("order_id", "ord-1")
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestHealthzReflectsBrokerState(t *testing.T) {
	h := newTestHandler(&stubWorkflow{}, &stubReader{})
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHandler(&stubWorkflow{}, &stubReader{},
		stubPinger{err: errors.New("connection is closed")}, testMetrics, zerolog.Nop())
	rec = httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
