package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"marketchain/core"
	"marketchain/core/types"
	"marketchain/native/fees"
	"marketchain/observability"
	"marketchain/services/indexer"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultReadTimeout  = 10 * time.Second
)

// Chain is the state surface served over RPC.
type Chain interface {
	ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	Marketplace(name string) (*core.MarketplaceView, error)
	Listing(name string, asset [20]byte) (*core.ListingView, error)
	Account(addr [20]byte) (*types.Account, error)
	TokenBalance(owner, mint [20]byte) (uint64, error)
}

// SalesIndex answers sales history queries. It is optional.
type SalesIndex interface {
	Sales(marketplace [20]byte, limit int) ([]indexer.Sale, error)
	FeeTotals(marketplace [20]byte) (fees.Totals, error)
}

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	RateLimitPerSecond float64
	RateLimitBurst     int
	MaxBodyBytes       int64
	ReadTimeout        time.Duration
	// TrustedProxies are IPs or CIDRs allowed to set X-Real-IP and
	// X-Forwarded-For. Headers from any other peer are ignored.
	TrustedProxies []string
	// MaxConnections caps concurrently accepted connections; zero means no cap.
	MaxConnections int
}

// Server serves the JSON-RPC API.
type Server struct {
	chain   Chain
	index   SalesIndex
	cfg     ServerConfig
	limiter *sourceLimiter
	proxies proxySet
	logger  *slog.Logger
	metrics interface {
		Observe(method string, code int, duration time.Duration)
		RecordThrottle(reason string)
	}

	httpServer *http.Server
}

// NewServer builds a server over chain. index may be nil, in which case
// market_getSales and market_getFeeTotals report the index as unavailable.
func NewServer(chain Chain, index SalesIndex, cfg ServerConfig) (*Server, error) {
	if chain == nil {
		return nil, fmt.Errorf("rpc: chain must not be nil")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	proxies, err := parseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	s := &Server{
		chain:   chain,
		index:   index,
		cfg:     cfg,
		limiter: newSourceLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		proxies: proxies,
		logger:  slog.Default(),
		metrics: observability.RPC(),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}
	return s, nil
}

// SetLogger overrides the request logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	r.Post("/rpc", s.handle)
	return otelhttp.NewHandler(r, "marketchain.rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.cfg.MaxConnections)
	}
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.logger.Info("rpc listening", "address", listener.Addr().String())
	return s.Serve(listener)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.limiter.allow(s.clientSource(r)) {
		s.metrics.RecordThrottle("rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, RPCError{Code: codeRateLimited, Message: "rate limit exceeded"})
		return
	}

	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, nil, RPCError{Code: codeInvalidRequest, Message: "failed to read request body", Data: err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}

	start := time.Now()
	result, failed := s.dispatch(r.Context(), req)
	code := 0
	if failed != nil {
		code = failed.err.Code
	}
	s.metrics.Observe(req.Method, code, time.Since(start))
	if failed != nil {
		writeError(w, failed.status, req.ID, failed.err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(ctx context.Context, req *RPCRequest) (interface{}, *failure) {
	switch req.Method {
	case "market_sendTransaction":
		return s.handleSendTransaction(ctx, req)
	case "market_getMarketplace":
		return s.handleGetMarketplace(req)
	case "market_getListing":
		return s.handleGetListing(req)
	case "market_getBalance":
		return s.handleGetBalance(req)
	case "market_getTokenBalance":
		return s.handleGetTokenBalance(req)
	case "market_getSales":
		return s.handleGetSales(req)
	case "market_getFeeTotals":
		return s.handleGetFeeTotals(req)
	case "":
		return nil, fail(http.StatusBadRequest, codeInvalidRequest, "method required", nil)
	default:
		return nil, fail(http.StatusNotFound, codeMethodNotFound, "method not found", req.Method)
	}
}
