package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"marketchain/core"
	"marketchain/core/genesis"
	"marketchain/core/types"
	"marketchain/crypto"
	"marketchain/native/fees"
	"marketchain/services/indexer"
	"marketchain/storage"
	"marketchain/storage/trie"
)

const testChainID = 4242

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type stubIndex struct {
	sales  []indexer.Sale
	totals map[[20]byte]fees.Totals
	asked  [20]byte
}

func (s *stubIndex) Sales(mkt [20]byte, limit int) ([]indexer.Sale, error) {
	s.asked = mkt
	if limit < len(s.sales) {
		return s.sales[:limit], nil
	}
	return s.sales, nil
}

func (s *stubIndex) FeeTotals(mkt [20]byte) (fees.Totals, error) {
	s.asked = mkt
	totals, ok := s.totals[mkt]
	if !ok {
		return fees.Totals{}, indexer.ErrNotIndexed
	}
	return totals, nil
}

type fixture struct {
	handler http.Handler
	sp      *core.StateProcessor
	admin   *crypto.PrivateKey
	funded  *crypto.PrivateKey
}

func newFixture(t *testing.T, index SalesIndex, cfg ServerConfig) *fixture {
	t.Helper()
	admin, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	funded, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	adminAddr := admin.PubKey().Address().Raw()
	fundedAddr := funded.PubKey().Address().Raw()

	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	sp := core.NewStateProcessor(tr, testChainID)
	doc := fmt.Sprintf(`{"chainId": %d, "alloc": {"0x%s": "10000"}, "marketplaces": [{"name": "bazaar", "admin": "0x%s", "feeBps": 250}]}`,
		testChainID, hex.EncodeToString(fundedAddr[:]), hex.EncodeToString(adminAddr[:]))
	spec, err := genesis.ParseGenesisSpec([]byte(doc))
	require.NoError(t, err)
	_, err = sp.ApplyGenesis(spec)
	require.NoError(t, err)

	srv, err := NewServer(sp, index, cfg)
	require.NoError(t, err)
	return &fixture{handler: srv.Handler(), sp: sp, admin: admin, funded: funded}
}

func call(t *testing.T, handler http.Handler, method string, params ...interface{}) (int, rawResponse) {
	t.Helper()
	encoded := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		raw, err := json.Marshal(p)
		require.NoError(t, err)
		encoded = append(encoded, raw)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: encoded, ID: 1})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var resp rawResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestGetMarketplace(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{})
	status, resp := call(t, f.handler, "market_getMarketplace", "bazaar")
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	var result MarketplaceResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "bazaar", result.Name)
	require.Equal(t, uint16(250), result.FeeBps)
	require.Equal(t, crypto.MarketAddress(f.admin.PubKey().Address().Raw()).String(), result.Admin)
	require.True(t, strings.HasPrefix(result.Treasury, "mkt1"))

	status, resp = call(t, f.handler, "market_getMarketplace", "missing")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeNotFound, resp.Error.Code)
}

func TestSendTransactionAndBalances(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{})
	recipient, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	to := recipient.PubKey().Address()

	tx, err := types.NewTransaction(testChainID, types.TxTypeTransfer, 0, types.TransferPayload{To: common.Address(to.Raw()), Amount: 400})
	require.NoError(t, err)
	require.NoError(t, tx.Sign(f.funded.PrivateKey))

	status, resp := call(t, f.handler, "market_sendTransaction", tx)
	require.Equal(t, http.StatusOK, status, "error: %+v", resp.Error)
	var sent SendTransactionResult
	require.NoError(t, json.Unmarshal(resp.Result, &sent))
	require.Equal(t, f.funded.PubKey().Address().String(), sent.From)

	status, resp = call(t, f.handler, "market_getBalance", to.String())
	require.Equal(t, http.StatusOK, status)
	var balance BalanceResult
	require.NoError(t, json.Unmarshal(resp.Result, &balance))
	require.Equal(t, "400", balance.Balance)

	// Replaying the same nonce is rejected and leaves balances alone.
	status, resp = call(t, f.handler, "market_sendTransaction", tx)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeTxRejected, resp.Error.Code)

	raw := to.Raw()
	status, resp = call(t, f.handler, "market_getBalance", "0x"+hex.EncodeToString(raw[:]))
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(resp.Result, &balance))
	require.Equal(t, "400", balance.Balance)
}

func TestGetListingNotFound(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{})
	var asset [20]byte
	asset[0] = 9
	status, resp := call(t, f.handler, "market_getListing", "bazaar", crypto.MarketAddress(asset).String())
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeNotFound, resp.Error.Code)

	status, resp = call(t, f.handler, "market_getListing", "bazaar", "not-an-address")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestGetTokenBalanceOfEmptyHolding(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{})
	var mint [20]byte
	mint[3] = 1
	status, resp := call(t, f.handler, "market_getTokenBalance", f.admin.PubKey().Address().String(), crypto.MarketAddress(mint).String())
	require.Equal(t, http.StatusOK, status)
	var result TokenBalanceResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Equal(t, "0", result.Balance)
}

func TestGetSales(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{})
	status, resp := call(t, f.handler, "market_getSales", "bazaar")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, codeUnavailable, resp.Error.Code)

	var taker [20]byte
	taker[19] = 7
	index := &stubIndex{sales: []indexer.Sale{{
		Taker: hex.EncodeToString(taker[:]), Price: "1000", Fee: "25", Proceeds: "975", Reward: "10",
		CreatedAt: time.Unix(1_700_000_000, 0),
	}}}
	f = newFixture(t, index, ServerConfig{})
	status, resp = call(t, f.handler, "market_getSales", "bazaar", 10)
	require.Equal(t, http.StatusOK, status)
	var sales []SaleResult
	require.NoError(t, json.Unmarshal(resp.Result, &sales))
	require.Len(t, sales, 1)
	require.Equal(t, crypto.MarketAddress(taker).String(), sales[0].Taker)
	require.Equal(t, "975", sales[0].Proceeds)
	require.Equal(t, int64(1_700_000_000), sales[0].Time)

	view, err := f.sp.Marketplace("bazaar")
	require.NoError(t, err)
	require.Equal(t, view.Address, index.asked)
}

func TestGetFeeTotals(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{})
	status, resp := call(t, f.handler, "market_getFeeTotals", "bazaar")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, codeUnavailable, resp.Error.Code)

	view, err := f.sp.Marketplace("bazaar")
	require.NoError(t, err)
	index := &stubIndex{totals: map[[20]byte]fees.Totals{
		view.Address: {Wallet: view.Treasury, Gross: 2_000, Fee: 100, Net: 1_900, Count: 2},
	}}
	f = newFixture(t, index, ServerConfig{})
	status, resp = call(t, f.handler, "market_getFeeTotals", "bazaar")
	require.Equal(t, http.StatusOK, status)
	var totals FeeTotalsResult
	require.NoError(t, json.Unmarshal(resp.Result, &totals))
	require.Equal(t, crypto.MarketAddress(view.Treasury).String(), totals.Treasury)
	require.Equal(t, "2", totals.Sales)
	require.Equal(t, "100", totals.Fees)
	require.Equal(t, "1900", totals.Proceeds)

	status, resp = call(t, f.handler, "market_getFeeTotals", "unknown")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeNotFound, resp.Error.Code)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{MaxBodyBytes: 256})

	status, resp := call(t, f.handler, "market_unknown")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"1.0","method":"market_getBalance","id":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	big := `{"jsonrpc":"2.0","method":"market_getMarketplace","params":["` + strings.Repeat("a", 512) + `"],"id":1}`
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimitPerSource(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 2})
	for i := 0; i < 2; i++ {
		status, _ := call(t, f.handler, "market_getMarketplace", "bazaar")
		require.Equal(t, http.StatusOK, status)
	}
	status, resp := call(t, f.handler, "market_getMarketplace", "bazaar")
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	rec := postFrom(f.handler, "192.0.2.50:4000", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitIgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1})
	require.Equal(t, http.StatusOK, postFrom(f.handler, "203.0.113.7:5000", "198.51.100.1").Code)
	for i := 2; i < 5; i++ {
		rec := postFrom(f.handler, "203.0.113.7:5000", fmt.Sprintf("198.51.100.%d", i))
		require.Equal(t, http.StatusTooManyRequests, rec.Code, "spoofed header must not open a new bucket")
	}
}

func TestRateLimitTrustedProxyForwardsClient(t *testing.T) {
	f := newFixture(t, nil, ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1, TrustedProxies: []string{"10.0.0.0/8"}})
	require.Equal(t, http.StatusOK, postFrom(f.handler, "10.0.0.1:8080", "198.51.100.1").Code)
	require.Equal(t, http.StatusTooManyRequests, postFrom(f.handler, "10.0.0.2:8080", "198.51.100.1").Code)
	require.Equal(t, http.StatusOK, postFrom(f.handler, "10.0.0.1:8080", "198.51.100.2").Code)
}

func TestClientSource(t *testing.T) {
	srv := &Server{}
	proxies, err := parseTrustedProxies([]string{"10.0.0.1", "fd00::/8"})
	require.NoError(t, err)
	srv.proxies = proxies

	cases := []struct {
		remote, realIP, forwarded, want string
	}{
		{"192.0.2.9:1000", "198.51.100.4", "", "192.0.2.9"},
		{"192.0.2.9:1000", "", "198.51.100.4", "192.0.2.9"},
		{"10.0.0.1:1000", "198.51.100.4", "", "198.51.100.4"},
		{"10.0.0.1:1000", "", "198.51.100.5, 10.0.0.1", "198.51.100.5"},
		{"10.0.0.1:1000", "not-an-ip", "", "10.0.0.1"},
		{"[fd00::1]:1000", "", "2001:db8::7", "2001:db8::7"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
		req.RemoteAddr = tc.remote
		if tc.realIP != "" {
			req.Header.Set("X-Real-IP", tc.realIP)
		}
		if tc.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		require.Equal(t, tc.want, srv.clientSource(req), "remote %s", tc.remote)
	}

	_, err = parseTrustedProxies([]string{"proxy.local"})
	require.Error(t, err)
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	_, err = NewServer(core.NewStateProcessor(tr, testChainID), nil, ServerConfig{TrustedProxies: []string{"10.0.0.0/33"}})
	require.Error(t, err)
}

func postFrom(handler http.Handler, remote, realIP string) *httptest.ResponseRecorder {
	body := `{"jsonrpc":"2.0","method":"market_getMarketplace","params":["bazaar"],"id":1}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	req.RemoteAddr = remote
	if realIP != "" {
		req.Header.Set("X-Real-IP", realIP)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeCapsConnections(t *testing.T) {
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	srv, err := NewServer(core.NewStateProcessor(tr, testChainID), nil, ServerConfig{MaxConnections: 1})
	require.NoError(t, err)

	listener := httptest.NewUnstartedServer(nil).Listener
	done := make(chan error, 1)
	go func() { done <- srv.Serve(listener) }()

	held, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	// The second client is only accepted once the first connection is gone.
	second := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			second <- 0
			return
		}
		_ = resp.Body.Close()
		second <- resp.StatusCode
	}()
	select {
	case <-second:
		t.Fatal("connection accepted beyond the cap")
	case <-time.After(200 * time.Millisecond):
	}
	require.NoError(t, held.Close())
	select {
	case code := <-second:
		require.Equal(t, http.StatusOK, code)
	case <-time.After(5 * time.Second):
		t.Fatal("queued connection never served")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}

func TestServeAndShutdown(t *testing.T) {
	tr, err := trie.NewTrie(storage.NewMemDB(), nil)
	require.NoError(t, err)
	srv, err := NewServer(core.NewStateProcessor(tr, testChainID), nil, ServerConfig{})
	require.NoError(t, err)

	listener := httptest.NewUnstartedServer(nil).Listener
	done := make(chan error, 1)
	go func() { done <- srv.Serve(listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-done)
}
