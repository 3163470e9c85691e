package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/payflexi/reconciler/internal/app/service/orders"
	"github.com/payflexi/reconciler/internal/app/service/statistics"
	"github.com/payflexi/reconciler/pkg/logctx"
	"github.com/payflexi/reconciler/pkg/response"
)

// AdminHandler serves the operator-facing order queries behind JWT auth.
type AdminHandler struct {
	log    *zap.SugaredLogger
	orders *orders.Service
	stats  *statistics.Service
}

func NewAdminHandler(log *zap.SugaredLogger, o *orders.Service, s *statistics.Service) *AdminHandler {
	return &AdminHandler{log: log, orders: o, stats: s}
}

// @Summary      Scan Orders
// @Description  Paginated order listing with filters for the admin console.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body orders.ScanOrdersRequest true "Scan request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/orders/scan [post]
func (h *AdminHandler) ApiScanOrders(c *gin.Context) {
	var req orders.ScanOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}

	res, err := h.orders.ScanOrders(c.Request.Context(), &req)
	if err != nil {
		logctx.FromGin(c, h.log).Errorw("scan_orders_failed", "error", err.Error())
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(res))
}

// @Summary      Order Detail
// @Description  One order with its notes and reconciliation metadata.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Order ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/orders/{id} [get]
func (h *AdminHandler) ApiGetOrderDetail(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid order id"))
		return
	}

	detail, err := h.orders.GetOrderDetail(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(detail))
}

// @Summary      Order Statistics
// @Description  Daily paid order counts and gross value over a date range.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        from query string true  "Range start, RFC3339"
// @Param        to   query string true  "Range end, RFC3339"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/statistics/orders [get]
func (h *AdminHandler) ApiOrderStatistics(c *gin.Context) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "from and to must be RFC3339 timestamps"))
		return
	}

	res, err := h.stats.OrderStatistics(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT(res))
}

func RegisterAdminRoutes(r gin.IRouter, h *AdminHandler) {
	r.POST("/orders/scan", h.ApiScanOrders)
	r.GET("/orders/:id", h.ApiGetOrderDetail)
	r.GET("/statistics/orders", h.ApiOrderStatistics)
}
