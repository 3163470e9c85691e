package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/payflexi/reconciler/internal/app/service/checkout"
	"github.com/payflexi/reconciler/internal/app/service/eventlog"
	"github.com/payflexi/reconciler/internal/app/service/reconcile"
	"github.com/payflexi/reconciler/internal/ledger"
	"github.com/payflexi/reconciler/internal/models"
	"github.com/payflexi/reconciler/internal/platform/payflexi"
	"github.com/payflexi/reconciler/pkg/config"
	"github.com/payflexi/reconciler/pkg/logctx"
	"github.com/payflexi/reconciler/pkg/response"
	"github.com/payflexi/reconciler/pkg/types"
)

const (
	eventTransactionApproved = "transaction.approved"
	statusApproved           = "approved"
)

// Gateway is the slice of the PayFlexi client the payment handlers need.
type Gateway interface {
	FetchTransaction(ctx context.Context, reference string) (*payflexi.TransactionStatus, error)
}

// CheckoutService creates orders and remote checkout transactions.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, req *checkout.CreateCheckoutRequest) (*checkout.CreateCheckoutResult, error)
}

// PaymentHandler serves the checkout endpoint and both provider-facing
// notification channels: the browser redirect listener and the webhook.
type PaymentHandler struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	engine   *reconcile.Engine
	gateway  Gateway
	ledger   ledger.Ledger
	events   *eventlog.Service
	checkout CheckoutService
}

func NewPaymentHandler(cfg *config.Config, log *zap.SugaredLogger, engine *reconcile.Engine, gw *payflexi.Client, l ledger.Ledger, events *eventlog.Service, co *checkout.Service) *PaymentHandler {
	return &PaymentHandler{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		gateway:  gw,
		ledger:   l,
		events:   events,
		checkout: co,
	}
}

// @Summary      Create Checkout
// @Description  Creates a pending order and a PayFlexi checkout transaction, returning the hosted checkout URL.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body checkout.CreateCheckoutRequest true "Checkout request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/checkout [post]
func (h *PaymentHandler) ApiCreateCheckout(c *gin.Context) {
	var req checkout.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}

	res, err := h.checkout.CreateCheckout(c.Request.Context(), &req)
	if err != nil {
		var gerr *payflexi.GatewayError
		if errors.As(err, &gerr) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, "Can't connect to the gateway, please try again."))
			return
		}
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(res))
}

// @Summary      Redirect listener
// @Description  Handles the browser return from PayFlexi checkout. Approved payments are verified against the provider before the order is updated.
// @Tags         Payment
// @Produce      html
// @Param        edd-listener  query string true  "Must be 'payflexi'"
// @Param        reference     query string false "Transaction reference"
// @Param        pf_approved   query string false "Present when the buyer approved payment"
// @Param        pf_cancelled  query string false "Present when the buyer cancelled"
// @Param        pf_declined   query string false "Present when the payment was declined"
// @Success      302
// @Router       /payflexi/listener [get]
func (h *PaymentHandler) ApiRedirectListener(c *gin.Context) {
	log := logctx.FromGin(c, h.log)

	if c.Query("edd-listener") != "payflexi" {
		c.Status(http.StatusNotFound)
		return
	}

	// Cancelled/declined never contact the provider; the buyer goes back to
	// checkout with a user-visible error flag.
	if _, ok := c.GetQuery("pf_cancelled"); ok {
		log.Infow("redirect_cancelled")
		h.backToCheckout(c, "cancelled")
		return
	}
	if _, ok := c.GetQuery("pf_declined"); ok {
		log.Infow("redirect_declined")
		h.backToCheckout(c, "declined")
		return
	}
	if _, ok := c.GetQuery("pf_approved"); !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	reference := c.Query("reference")
	if reference == "" {
		h.backToCheckout(c, "failed")
		return
	}

	st, err := h.gateway.FetchTransaction(c.Request.Context(), reference)
	if err != nil || !st.Approved() {
		if err != nil {
			log.Errorw("redirect_verify_failed", "reference", reference, "error", err.Error())
		}
		h.backToCheckout(c, "failed")
		return
	}

	observed := observedFromStatus(st)
	h.logEvent(c, types.PaymentEventSourceRedirect, "redirect.approved", observed)

	orderID, err := h.resolveOrderID(c.Request.Context(), observed)
	if err != nil {
		log.Errorw("redirect_order_unresolved", "reference", reference, "error", err.Error())
		h.backToCheckout(c, "failed")
		return
	}

	outcome, err := h.engine.Reconcile(c.Request.Context(), orderID, observed)
	if err != nil {
		log.Errorw("redirect_reconcile_failed", "order_id", orderID, "error", err.Error())
		h.backToCheckout(c, "failed")
		return
	}

	log.Infow("redirect_handled", "order_id", orderID, "outcome", outcome)
	c.Redirect(http.StatusFound, h.cfg.Payflexi.SuccessURL)
}

// @Summary      PayFlexi webhook
// @Description  Handles signed transaction.approved events. The HMAC is verified over the raw body before anything is parsed.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        X-Payflexi-Signature header string true "HMAC-SHA-512 of the raw body, hex"
// @Success      200
// @Router       /payflexi/webhook [post]
func (h *PaymentHandler) ApiWebhook(c *gin.Context) {
	log := logctx.FromGin(c, h.log)

	raw, err := c.GetRawData()
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	// Verify over the raw body before parsing anything; reject without a body
	// so failures leak nothing about the secret.
	signature := c.GetHeader(payflexi.SignatureHeader)
	if !payflexi.VerifySignature(raw, signature, h.cfg.Payflexi.SecretKey()) {
		log.Warnw("webhook_signature_invalid")
		c.Status(http.StatusUnauthorized)
		return
	}

	var event struct {
		Event string           `json:"event"`
		Data  webhookEventData `json:"data"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Warnw("webhook_unparseable_body")
		c.Status(http.StatusBadRequest)
		return
	}

	log.Infow("webhook_received", "event", event.Event, "reference", event.Data.Reference)

	// Any event other than an approved transaction is acknowledged and
	// discarded without side effects.
	if event.Event != eventTransactionApproved || event.Data.Status != statusApproved {
		c.Status(http.StatusOK)
		return
	}

	observed := event.Data.toObserved()
	h.logEvent(c, types.PaymentEventSourceWebhook, event.Event, observed)

	orderID, err := h.resolveOrderID(c.Request.Context(), observed)
	if err != nil {
		// Unroutable reference: drop the event, acknowledge the delivery.
		log.Errorw("webhook_order_unresolved", "reference", observed.Reference, "error", err.Error())
		c.Status(http.StatusOK)
		return
	}

	outcome, err := h.engine.Reconcile(c.Request.Context(), orderID, observed)
	if errors.Is(err, ledger.ErrOrderNotFound) {
		// The reference routed to an order that does not exist. A 500 here
		// would only trigger provider redelivery of an undeliverable event.
		log.Errorw("webhook_order_unresolved", "order_id", orderID, "reference", observed.Reference)
		c.Status(http.StatusOK)
		return
	}
	if err != nil {
		log.Errorw("webhook_reconcile_failed", "order_id", orderID, "error", err.Error())
		c.Status(http.StatusInternalServerError)
		return
	}

	log.Infow("webhook_handled", "order_id", orderID, "outcome", outcome)
	c.Status(http.StatusOK)
}

type webhookEventData struct {
	Reference        string          `json:"reference"`
	InitialReference string          `json:"initial_reference"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	TxnAmount        decimal.Decimal `json:"txn_amount"`
}

func (d *webhookEventData) toObserved() *reconcile.ObservedPayment {
	initial := d.InitialReference
	if initial == "" {
		initial = d.Reference
	}
	return &reconcile.ObservedPayment{
		Reference:        d.Reference,
		InitialReference: initial,
		Status:           d.Status,
		OrderAmount:      d.Amount,
		TxnAmount:        d.TxnAmount,
	}
}

func observedFromStatus(st *payflexi.TransactionStatus) *reconcile.ObservedPayment {
	return &reconcile.ObservedPayment{
		Reference:        st.Reference,
		InitialReference: st.InitialReference,
		Status:           st.Status,
		OrderAmount:      st.Amount,
		TxnAmount:        st.TxnAmount,
	}
}

// resolveOrderID maps an observation to an order: the id embedded in the
// initial reference is authoritative; a ledger lookup by reference is the
// fallback for references minted before this service.
func (h *PaymentHandler) resolveOrderID(ctx context.Context, observed *reconcile.ObservedPayment) (int64, error) {
	if id, err := payflexi.DecodeReference(observed.InitialReference); err == nil {
		return id, nil
	}
	if id, err := h.ledger.FindOrderByTransactionReference(ctx, observed.InitialReference); err == nil {
		return id, nil
	}
	return h.ledger.FindOrderByTransactionReference(ctx, observed.Reference)
}

func (h *PaymentHandler) backToCheckout(c *gin.Context, status string) {
	c.Redirect(http.StatusFound, h.cfg.Payflexi.CheckoutURL+"?payment-mode=payflexi&payflexi-status="+status)
}

func (h *PaymentHandler) logEvent(c *gin.Context, source types.PaymentEventSource, event string, observed *reconcile.ObservedPayment) {
	if h.events == nil {
		return
	}
	var traceID string
	if v, ok := c.Get("traceID"); ok {
		if s, ok2 := v.(string); ok2 {
			traceID = s
		}
	}
	dataBytes, err := json.Marshal(observed)
	if err != nil {
		logctx.FromGin(c, h.log).Errorf("failed to marshal payment event payload: %v", err)
		return
	}
	h.events.Save(c.Request.Context(), &models.PaymentEventLog{
		Source:    source,
		Event:     event,
		Reference: observed.Reference,
		TraceID:   traceID,
		EventTime: time.Now(),
		Data:      datatypes.JSON(dataBytes),
		Status:    models.PaymentEventLogStatusReceived,
	})
}

func RegisterPaymentRoutes(r gin.IRouter, h *PaymentHandler) {
	r.POST("/api/v1/checkout", h.ApiCreateCheckout)
	r.GET("/payflexi/listener", h.ApiRedirectListener)
	// POST-only by registration; other methods never reach the handler.
	r.POST("/payflexi/webhook", h.ApiWebhook)
}
