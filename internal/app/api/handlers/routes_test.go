package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func routeSet(r *gin.Engine) func(string) bool {
	routes := r.Routes()
	return func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}
}

func TestRegisterPaymentRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterPaymentRoutes(r, &PaymentHandler{})

	contains := routeSet(r)
	require.True(t, contains("POST /api/v1/checkout"))
	require.True(t, contains("GET /payflexi/listener"))
	require.True(t, contains("POST /payflexi/webhook"))
	// The webhook must not answer GET; only the registered method routes.
	require.False(t, contains("GET /payflexi/webhook"))
}

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), &AdminHandler{})

	contains := routeSet(r)
	require.True(t, contains("POST /api/v1/admin/orders/scan"))
	require.True(t, contains("GET /api/v1/admin/orders/:id"))
	require.True(t, contains("GET /api/v1/admin/statistics/orders"))
}
