package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/ratelimit"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

const sampleTx = `{
  "txid": "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
  "size": 225,
  "weight": 900,
  "fee": 1500,
  "status": {"confirmed": true, "block_height": 800000, "block_time": 1690000000},
  "vin": [
    {
      "txid": "aa5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
      "vout": 1,
      "prevout": {
        "scriptpubkey": "76a914...88ac",
        "scriptpubkey_address": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
        "value": 50000
      },
      "is_coinbase": false
    }
  ],
  "vout": [
    {
      "scriptpubkey": "76a914...88ac",
      "scriptpubkey_address": "12QtD5BFwRsdNsAZY76UVE1xyCGNTojH9h",
      "value": 30000
    },
    {
      "scriptpubkey": "76a914...88ac",
      "scriptpubkey_address": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
      "value": 18500
    }
  ]
}`

func newTestClient(t *testing.T, handler http.Handler, rateLimit int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, 5*time.Second, rateLimit, logger.NewNop())
	c.pacer = ratelimit.NewUnlimited()
	return c, srv
}

func TestGetTransactionNormalizes(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tx/4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b", r.URL.Path)
		w.Write([]byte(sampleTx))
	}), 60)

	tx, err := c.GetTransaction(context.Background(), "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	require.NoError(t, err)

	assert.Equal(t, int64(800000), tx.BlockHeight)
	assert.Equal(t, int64(1690000000), tx.BlockTime)
	assert.Equal(t, int64(1500), tx.Fee)
	assert.Equal(t, 225, tx.Size)
	require.Len(t, tx.Inputs, 1)
	assert.Equal(t, []string{"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"}, tx.Inputs[0].Addresses)
	assert.Equal(t, int64(50000), tx.Inputs[0].Value)
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, int64(30000), tx.Outputs[0].Value)
}

func TestGetTransactionCoinbaseAndUnconfirmed(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"txid": "bb5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
			"size": 100,
			"status": {"confirmed": false},
			"vin": [{"vout": 4294967295, "is_coinbase": true}],
			"vout": [{"scriptpubkey_address": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "value": 625000000}]
		}`))
	}), 60)

	tx, err := c.GetTransaction(context.Background(), "bb5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	require.NoError(t, err)

	assert.False(t, tx.Confirmed())
	assert.Zero(t, tx.BlockTime)
	require.Len(t, tx.Inputs, 1)
	assert.Empty(t, tx.Inputs[0].Addresses)
	assert.Zero(t, tx.Inputs[0].Value)
}

func TestGetTransactionNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Transaction not found", http.StatusNotFound)
	}), 60)

	_, err := c.GetTransaction(context.Background(), "cc5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	require.Error(t, err)
	assert.Equal(t, domain.KindDataNotFound, domain.KindOf(err))
}

func TestGetTransactionServerErrorIsExternalAPI(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), 60)

	_, err := c.GetTransaction(context.Background(), "dd5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	require.Error(t, err)
	assert.Equal(t, domain.KindExternalAPI, domain.KindOf(err))
	assert.False(t, domain.IsRateLimited(err))
}

func TestGetAddressTransactionsClampsLimit(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"txid": "1111111111111111111111111111111111111111111111111111111111111111"},
			{"txid": "2222222222222222222222222222222222222222222222222222222222222222"},
			{"txid": "3333333333333333333333333333333333333333333333333333333333333333"}
		]`))
	}), 60)

	txids, err := c.GetAddressTransactions(context.Background(), "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"1111111111111111111111111111111111111111111111111111111111111111",
		"2222222222222222222222222222222222222222222222222222222222222222",
	}, txids)
}

func TestGetAddressInfo(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"address": "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
			"chain_stats": {"funded_txo_sum": 100000, "spent_txo_sum": 40000, "tx_count": 12},
			"mempool_stats": {"tx_count": 1}
		}`))
	}), 60)

	info, err := c.GetAddressInfo(context.Background(), "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.NoError(t, err)
	assert.Equal(t, int64(60000), info.BalanceSats)
	assert.Equal(t, int64(12), info.TxCount)
	assert.Equal(t, int64(1), info.UnconfirmedTxs)
}

func TestRateLimitWindowRejects(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleTx))
	}), 2)

	ctx := context.Background()
	txid := "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

	_, err := c.GetTransaction(ctx, txid)
	require.NoError(t, err)
	_, err = c.GetTransaction(ctx, txid)
	require.NoError(t, err)

	_, err = c.GetTransaction(ctx, txid)
	require.Error(t, err)
	assert.Equal(t, domain.KindExternalAPI, domain.KindOf(err))
	assert.True(t, domain.IsRateLimited(err))

	status := c.RateLimitStatus()
	assert.Equal(t, 2, status.Count)
	assert.Equal(t, 2, status.Limit)
}

func TestRateLimitWindowResets(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleTx))
	}), 1)

	base := time.Date(2025, 11, 4, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	ctx := context.Background()
	txid := "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

	_, err := c.GetTransaction(ctx, txid)
	require.NoError(t, err)
	_, err = c.GetTransaction(ctx, txid)
	require.Error(t, err)

	now = base.Add(61 * time.Second)
	_, err = c.GetTransaction(ctx, txid)
	require.NoError(t, err)
}

func TestExtractAddresses(t *testing.T) {
	tx := &domain.BitcoinTransaction{
		Inputs: []domain.TxInput{
			{Addresses: []string{"addr-a"}},
			{Addresses: []string{"addr-b"}},
		},
		Outputs: []domain.TxOutput{
			{Addresses: []string{"addr-b"}},
			{Addresses: []string{"addr-c"}},
			{Addresses: []string{}},
		},
	}

	assert.Equal(t, []string{"addr-a", "addr-b", "addr-c"}, ExtractAddresses(tx))
}
