package payflexi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientOptions{APIBase: srv.URL, SecretKey: "sk_test_secret", HTTPClient: srv.Client()})
}

func TestCreateTransaction_Success(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.Method + " " + r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"errors":       false,
			"checkout_url": "https://checkout.payflexi.co/c/abc",
		})
	})

	res, err := cli.CreateTransaction(context.Background(), &CreateTransactionRequest{
		Name:        "Order #12",
		Amount:      decimal.NewFromInt(1000),
		Email:       "buyer@example.com",
		Reference:   "EDD-12-nonce",
		Currency:    "USD",
		CallbackURL: "https://store.example.com/payflexi/listener",
		Domain:      "global",
		Meta:        TransactionMeta{Title: "Store purchase"},
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.payflexi.co/c/abc", res.CheckoutURL)
	require.Equal(t, "EDD-12-nonce", res.Reference)

	require.Equal(t, "Bearer sk_test_secret", gotAuth)
	require.Equal(t, "POST /merchants/transactions", gotPath)
	require.Equal(t, "EDD-12-nonce", gotBody["reference"])
	require.Equal(t, "USD", gotBody["currency"])
}

func TestCreateTransaction_ProviderError(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errors": true, "message": "invalid amount"})
	})

	_, err := cli.CreateTransaction(context.Background(), &CreateTransactionRequest{Reference: "EDD-1-x"})
	require.Error(t, err)
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Contains(t, gerr.Message, "invalid amount")
}

func TestCreateTransaction_Non2xx(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"errors": true, "message": "invalid key"})
	})

	_, err := cli.CreateTransaction(context.Background(), &CreateTransactionRequest{Reference: "EDD-1-x"})
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, http.StatusUnauthorized, gerr.StatusCode)
}

func TestFetchTransaction_Success(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/merchants/transactions/EDD-9-n1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": false,
			"data": map[string]any{
				"status":            "approved",
				"amount":            1000,
				"txn_amount":        400,
				"reference":         "EDD-9-n1",
				"initial_reference": "EDD-9-n1",
			},
		})
	})

	st, err := cli.FetchTransaction(context.Background(), "EDD-9-n1")
	require.NoError(t, err)
	require.True(t, st.Approved())
	require.True(t, st.Amount.Equal(decimal.NewFromInt(1000)))
	require.True(t, st.TxnAmount.Equal(decimal.NewFromInt(400)))
	require.Equal(t, "EDD-9-n1", st.InitialReference)
}

func TestFetchTransaction_EmptyDataIsError(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errors": false})
	})

	_, err := cli.FetchTransaction(context.Background(), "EDD-9-n1")
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
}

func TestFetchTransaction_DefaultsInitialReference(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": false,
			"data":   map[string]any{"status": "approved", "reference": "EDD-9-n1"},
		})
	})

	st, err := cli.FetchTransaction(context.Background(), "EDD-9-n1")
	require.NoError(t, err)
	require.Equal(t, "EDD-9-n1", st.InitialReference)
}
