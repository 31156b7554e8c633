package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"launchpad/core"
	"launchpad/core/types"
	"launchpad/native/multisig"
	"launchpad/native/oracle"
	"launchpad/native/presale"
	"launchpad/native/token"
	"launchpad/native/vesting"
	"launchpad/observability"
	"launchpad/storage/journal"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	limiterIdleTTL  = 10 * time.Minute
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Backend is the ledger surface served over JSON-RPC. *core.Node satisfies it.
type Backend interface {
	ChainID() uint64
	Height() uint64
	StateRoot() common.Hash
	SubmitTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	Nonce(addr common.Address) (uint64, error)
	Balance(addr common.Address, asset string) (*big.Int, error)
	Allowance(owner, spender common.Address) (*big.Int, error)
	TokenInfo() (*token.Info, error)
	PresaleStats() (*presale.Stats, error)
	PresalePhase(number uint64) (*core.PhaseView, error)
	PresalePurchase(buyer common.Address) (*core.PurchaseView, error)
	ListingPrice() (low, high *big.Int, err error)
	VestingRecord(addr common.Address) (*core.VestingView, bool, error)
	VestingStatus() (*vesting.Status, error)
	OracleQuote(asset string) (*oracle.PriceQuote, bool, error)
	MultisigOperation(module string, id common.Hash) (*multisig.Record, bool, error)
	MultisigNonce(module string) (uint64, error)
	RoleMembers(scope, role string) ([]common.Address, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// EventSource serves historical events from the receipt journal.
type EventSource interface {
	Events(ctx context.Context, filter journal.EventFilter) ([]journal.RecordedEvent, error)
}

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxBodyBytes      int64
	// RateLimitPerSec bounds lp_sendTransaction per client address. Zero
	// disables limiting.
	RateLimitPerSec float64
	RateLimitBurst  int
	AllowedOrigins  []string
	JWT             JWTConfig
	Logger          *slog.Logger
}

type Server struct {
	backend Backend
	events  EventSource
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *authenticator

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	serverMu   sync.Mutex
	httpServer *http.Server
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewServer builds the JSON-RPC server. events may be nil, in which case
// lp_getEvents reports that the journal is disabled.
func NewServer(backend Backend, events EventSource, cfg ServerConfig) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("rpc: backend must not be nil")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxRequestBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth, err := newAuthenticator(cfg.JWT)
	if err != nil {
		return nil, err
	}
	return &Server{
		backend:  backend,
		events:   events,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "rpc")),
		auth:     auth,
		limiters: make(map[string]*clientLimiter),
	}, nil
}

// Handler returns the instrumented HTTP handler: JSON-RPC on POST / and over
// a websocket on /ws, plus /healthz and /metrics.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.requestID)
	router.Use(s.cors)
	router.Post("/", s.handle)
	router.Get("/ws", s.handleWS)
	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	return otelhttp.NewHandler(router, "launchpad-rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	return srv.Serve(listener)
}

// Shutdown gracefully stops a server started with Serve.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type handlerFunc func(s *Server, w http.ResponseWriter, r *http.Request, req *RPCRequest)

var methods = map[string]handlerFunc{
	"lp_sendTransaction":   (*Server).handleSendTransaction,
	"lp_getNonce":          (*Server).handleGetNonce,
	"lp_getReceipt":        (*Server).handleGetReceipt,
	"lp_getEvents":         (*Server).handleGetEvents,
	"lp_chainInfo":         (*Server).handleChainInfo,
	"lp_moduleActions":     (*Server).handleModuleActions,
	"token_balance":        (*Server).handleTokenBalance,
	"token_allowance":      (*Server).handleTokenAllowance,
	"token_info":           (*Server).handleTokenInfo,
	"presale_stats":        (*Server).handlePresaleStats,
	"presale_phase":        (*Server).handlePresalePhase,
	"presale_purchase":     (*Server).handlePresalePurchase,
	"presale_listingPrice": (*Server).handleListingPrice,
	"vesting_record":       (*Server).handleVestingRecord,
	"vesting_status":       (*Server).handleVestingStatus,
	"oracle_quote":         (*Server).handleOracleQuote,
	"multisig_operation":   (*Server).handleMultisigOperation,
	"multisig_nonce":       (*Server).handleMultisigNonce,
	"access_roleMembers":   (*Server).handleRoleMembers,
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to parse request", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion || strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid JSON-RPC request", nil)
		return
	}
	s.dispatch(w, r, req)
}

// dispatch runs a validated request against its method handler. r carries the
// caller's headers and remote address for authentication and rate limiting.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	handler, ok := methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}

	rec := &codeRecorder{ResponseWriter: w}
	start := time.Now()
	handler(s, rec, r, req)
	module, method := splitMethod(req.Method)
	observability.ModuleMetrics().Observe(module, method, rec.code, time.Since(start))
	if rec.code != 0 {
		s.logger.Debug("rpc request failed",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("method", req.Method),
			slog.Int("code", rec.code))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"height": s.backend.Height(),
	})
}

func splitMethod(name string) (string, string) {
	if idx := strings.Index(name, "_"); idx > 0 {
		return name[:idx], name[idx+1:]
	}
	return "rpc", name
}

// codeRecorder captures the JSON-RPC error code written by a handler so the
// request can be observed once it completes.
type codeRecorder struct {
	http.ResponseWriter
	code int
}

func (c *codeRecorder) WriteHeader(status int) {
	c.ResponseWriter.WriteHeader(status)
}

func (c *codeRecorder) Write(p []byte) (int, error) {
	if c.code == 0 {
		var envelope struct {
			Error *RPCError `json:"error"`
		}
		if err := json.Unmarshal(p, &envelope); err == nil && envelope.Error != nil {
			c.code = envelope.Error.Code
		}
	}
	return c.ResponseWriter.Write(p)
}

type requestIDKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

// allowSource applies the per-client token bucket guarding transaction
// submission.
func (s *Server) allowSource(source string, now time.Time) bool {
	if s.cfg.RateLimitPerSec <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
	entry, ok := s.limiters[source]
	if !ok {
		burst := s.cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(s.cfg.RateLimitPerSec), burst)}
		s.limiters[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
