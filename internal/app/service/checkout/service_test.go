package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/payflexi/reconciler/internal/ledger"
	"github.com/payflexi/reconciler/internal/platform/payflexi"
	"github.com/payflexi/reconciler/pkg/config"
)

type stubGateway struct {
	lastReq *payflexi.CreateTransactionRequest
	res     *payflexi.CreateTransactionResult
	err     error
}

func (s *stubGateway) CreateTransaction(_ context.Context, req *payflexi.CreateTransactionRequest) (*payflexi.CreateTransactionResult, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Payflexi: config.PayflexiConfig{
			TestMode:      true,
			TestSecretKey: "sk_test",
			TestPublicKey: "pk_test",
			CallbackURL:   "https://store.example.com/payflexi/listener",
			Domain:        "global",
			StoreTitle:    "Example Store",
		},
	}
}

func newTestService(gw Gateway) (*Service, *ledger.MemoryLedger) {
	mem := ledger.NewMemoryLedger()
	return &Service{
		cfg:     testConfig(),
		log:     zap.NewNop().Sugar(),
		gateway: gw,
		ledger:  mem,
	}, mem
}

func TestCreateCheckout_Success(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{res: &payflexi.CreateTransactionResult{CheckoutURL: "https://checkout.payflexi.co/c/x"}}
	svc, mem := newTestService(gw)

	res, err := svc.CreateCheckout(ctx, &CreateCheckoutRequest{
		Amount:   decimal.NewFromInt(1000),
		Email:    "buyer@example.com",
		Currency: "USD",
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.payflexi.co/c/x", res.CheckoutURL)

	// Reference embeds the order id and is saved on the order before the
	// gateway call.
	decoded, err := payflexi.DecodeReference(res.Reference)
	require.NoError(t, err)
	require.Equal(t, res.OrderID, decoded)

	order, err := mem.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	require.Equal(t, res.Reference, order.TransactionID)
	require.True(t, strings.HasPrefix(gw.lastReq.Reference, "EDD-"))
	require.Equal(t, "https://store.example.com/payflexi/listener", gw.lastReq.CallbackURL)
}

func TestCreateCheckout_GatewayErrorKeepsOrderPending(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{err: &payflexi.GatewayError{Message: "invalid key"}}
	svc, mem := newTestService(gw)

	_, err := svc.CreateCheckout(ctx, &CreateCheckoutRequest{
		Amount: decimal.NewFromInt(50),
		Email:  "buyer@example.com",
	})
	require.Error(t, err)
	var gerr *payflexi.GatewayError
	require.ErrorAs(t, err, &gerr)

	// The pending order remains with a failure note for the operator.
	order, err := mem.GetOrder(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "pending", string(order.Status))
	require.NotEmpty(t, mem.Notes(1))
}

func TestCreateCheckout_Validation(t *testing.T) {
	svc, _ := newTestService(&stubGateway{})

	_, err := svc.CreateCheckout(context.Background(), &CreateCheckoutRequest{
		Amount: decimal.Zero, Email: "buyer@example.com",
	})
	require.Error(t, err)

	_, err = svc.CreateCheckout(context.Background(), &CreateCheckoutRequest{
		Amount: decimal.NewFromInt(10),
	})
	require.Error(t, err)
}

func TestCreateCheckout_NotConfigured(t *testing.T) {
	svc, _ := newTestService(&stubGateway{})
	svc.cfg.Payflexi.TestSecretKey = ""

	_, err := svc.CreateCheckout(context.Background(), &CreateCheckoutRequest{
		Amount: decimal.NewFromInt(10), Email: "buyer@example.com",
	})
	require.ErrorIs(t, err, ErrNotConfigured)
}
