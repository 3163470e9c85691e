package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/payflexi/reconciler/internal/app/service/checkout"
	"github.com/payflexi/reconciler/internal/app/service/reconcile"
	"github.com/payflexi/reconciler/internal/ledger"
	"github.com/payflexi/reconciler/internal/platform/payflexi"
	"github.com/payflexi/reconciler/pkg/config"
	"github.com/payflexi/reconciler/pkg/types"
)

const testSecret = "sk_test_secret"

type stubFetcher struct {
	status *payflexi.TransactionStatus
	err    error
	calls  int
}

func (s *stubFetcher) FetchTransaction(_ context.Context, _ string) (*payflexi.TransactionStatus, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.status, nil
}

type stubCheckout struct {
	res *checkout.CreateCheckoutResult
	err error
}

func (s *stubCheckout) CreateCheckout(_ context.Context, _ *checkout.CreateCheckoutRequest) (*checkout.CreateCheckoutResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func newTestRouter(t *testing.T, gw Gateway, co CheckoutService) (*gin.Engine, *ledger.MemoryLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := ledger.NewMemoryLedger()
	log := zap.NewNop().Sugar()
	h := &PaymentHandler{
		cfg: &config.Config{
			Payflexi: config.PayflexiConfig{
				TestMode:      true,
				TestSecretKey: testSecret,
				TestPublicKey: "pk_test",
				SuccessURL:    "/order/received",
				CheckoutURL:   "/checkout",
			},
		},
		log:      log,
		engine:   reconcile.NewEngine(mem, log),
		gateway:  gw,
		ledger:   mem,
		checkout: co,
	}

	r := gin.New()
	RegisterPaymentRoutes(r, h)
	return r, mem
}

func newOrder(t *testing.T, mem *ledger.MemoryLedger, total int64) (int64, string) {
	t.Helper()
	id, err := mem.CreateOrder(context.Background(), ledger.CreateOrderParams{
		Email: "buyer@example.com",
		Total: decimal.NewFromInt(total),
	})
	require.NoError(t, err)
	return id, payflexi.NewReference(id)
}

func webhookBody(t *testing.T, event, reference, initial, status string, amount, txn int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"data": map[string]any{
			"reference":         reference,
			"initial_reference": initial,
			"status":            status,
			"amount":            amount,
			"txn_amount":        txn,
		},
	})
	require.NoError(t, err)
	return body
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payflexi/webhook", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(payflexi.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	r, mem := newTestRouter(t, &stubFetcher{}, nil)
	orderID, ref := newOrder(t, mem, 1000)

	body := webhookBody(t, "transaction.approved", ref, ref, "approved", 1000, 1000)
	w := postWebhook(r, body, "")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, w.Body.String())

	order, err := mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPending, order.Status)
}

func TestWebhook_TamperedSignatureRejected(t *testing.T) {
	r, mem := newTestRouter(t, &stubFetcher{}, nil)
	orderID, ref := newOrder(t, mem, 1000)

	body := webhookBody(t, "transaction.approved", ref, ref, "approved", 1000, 1000)
	signature := payflexi.SignBody(append(body, ' '), testSecret)
	w := postWebhook(r, body, signature)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	order, err := mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPending, order.Status)
}

func TestWebhook_OtherEventsAcknowledgedWithoutEffect(t *testing.T) {
	r, mem := newTestRouter(t, &stubFetcher{}, nil)
	orderID, ref := newOrder(t, mem, 1000)

	body := webhookBody(t, "transaction.declined", ref, ref, "declined", 1000, 1000)
	w := postWebhook(r, body, payflexi.SignBody(body, testSecret))

	require.Equal(t, http.StatusOK, w.Code)

	order, err := mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPending, order.Status)
	require.Empty(t, mem.Notes(orderID))
}

func TestWebhook_ApprovedFullPaymentMarksPaid(t *testing.T) {
	r, mem := newTestRouter(t, &stubFetcher{}, nil)
	orderID, ref := newOrder(t, mem, 1000)

	body := webhookBody(t, "transaction.approved", ref, ref, "approved", 1000, 1000)
	w := postWebhook(r, body, payflexi.SignBody(body, testSecret))

	require.Equal(t, http.StatusOK, w.Code)

	order, err := mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPaid, order.Status)
	require.Equal(t, ref, order.TransactionID)
}

func TestWebhook_InstallmentsAccumulateAcrossDeliveries(t *testing.T) {
	r, mem := newTestRouter(t, &stubFetcher{}, nil)
	orderID, ref := newOrder(t, mem, 1000)

	first := webhookBody(t, "transaction.approved", ref, ref, "approved", 1000, 400)
	w := postWebhook(r, first, payflexi.SignBody(first, testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	order, err := mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPartiallyPaid, order.Status)

	followRef := fmt.Sprintf("%s-followup", ref)
	second := webhookBody(t, "transaction.approved", followRef, ref, "approved", 1000, 600)
	w = postWebhook(r, second, payflexi.SignBody(second, testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	order, err = mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPaid, order.Status)
}

func TestWebhook_DuplicateDeliveryIsIdempotent(t *testing.T) {
	r, mem := newTestRouter(t, &stubFetcher{}, nil)
	orderID, ref := newOrder(t, mem, 1000)

	body := webhookBody(t, "transaction.approved", ref, ref, "approved", 1000, 400)
	sig := payflexi.SignBody(body, testSecret)
	for i := 0; i < 3; i++ {
		w := postWebhook(r, body, sig)
		require.Equal(t, http.StatusOK, w.Code)
	}

	paid, ok, err := mem.GetMeta(context.Background(), orderID, ledger.MetaKeyAmountPaid)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "400", paid)
}

func TestWebhook_UnknownOrderAcknowledged(t *testing.T) {
	r, _ := newTestRouter(t, &stubFetcher{}, nil)

	ref := payflexi.NewReference(424242)
	body := webhookBody(t, "transaction.approved", ref, ref, "approved", 1000, 1000)
	w := postWebhook(r, body, payflexi.SignBody(body, testSecret))

	require.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_UnparseableBodyRejected(t *testing.T) {
	r, _ := newTestRouter(t, &stubFetcher{}, nil)

	body := []byte("{not json")
	w := postWebhook(r, body, payflexi.SignBody(body, testSecret))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func getListener(r *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/payflexi/listener?"+query, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListener_WrongListenerParam(t *testing.T) {
	r, _ := newTestRouter(t, &stubFetcher{}, nil)
	w := getListener(r, "edd-listener=other&pf_approved=1")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListener_CancelledNeverContactsProvider(t *testing.T) {
	gw := &stubFetcher{}
	r, _ := newTestRouter(t, gw, nil)

	w := getListener(r, "edd-listener=payflexi&pf_cancelled=1")
	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "payflexi-status=cancelled")
	require.Zero(t, gw.calls)
}

func TestListener_DeclinedRedirectsBackToCheckout(t *testing.T) {
	gw := &stubFetcher{}
	r, _ := newTestRouter(t, gw, nil)

	w := getListener(r, "edd-listener=payflexi&pf_declined=1")
	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "payflexi-status=declined")
	require.Zero(t, gw.calls)
}

func TestListener_ApprovedVerifiesAndReconciles(t *testing.T) {
	gw := &stubFetcher{}
	r, mem := newTestRouter(t, gw, nil)
	orderID, ref := newOrder(t, mem, 1000)
	gw.status = &payflexi.TransactionStatus{
		Status:           "approved",
		Reference:        ref,
		InitialReference: ref,
		Amount:           decimal.NewFromInt(1000),
		TxnAmount:        decimal.NewFromInt(1000),
	}

	w := getListener(r, "edd-listener=payflexi&pf_approved=1&reference="+ref)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/order/received", w.Header().Get("Location"))
	require.Equal(t, 1, gw.calls)

	order, err := mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPaid, order.Status)
}

func TestListener_ProviderSaysNotApproved(t *testing.T) {
	gw := &stubFetcher{status: &payflexi.TransactionStatus{Status: "declined"}}
	r, mem := newTestRouter(t, gw, nil)
	orderID, ref := newOrder(t, mem, 1000)

	w := getListener(r, "edd-listener=payflexi&pf_approved=1&reference="+ref)
	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "payflexi-status=failed")

	order, err := mem.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderStatusPending, order.Status)
}

func TestCheckoutEndpoint_Success(t *testing.T) {
	co := &stubCheckout{res: &checkout.CreateCheckoutResult{
		OrderID:     7,
		Reference:   "EDD-7-nonce",
		CheckoutURL: "https://checkout.payflexi.co/c/x",
	}}
	r, _ := newTestRouter(t, &stubFetcher{}, co)

	body := `{"amount":"1000","email":"buyer@example.com","currency":"USD"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"code":0`)
	require.Contains(t, w.Body.String(), "https://checkout.payflexi.co/c/x")
}

func TestCheckoutEndpoint_GatewayError(t *testing.T) {
	co := &stubCheckout{err: &payflexi.GatewayError{StatusCode: 502, Message: "upstream down"}}
	r, _ := newTestRouter(t, &stubFetcher{}, co)

	body := `{"amount":"1000","email":"buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Can't connect to the gateway, please try again.")
}
