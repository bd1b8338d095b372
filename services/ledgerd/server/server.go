package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"proplend/core"
	"proplend/observability"
	"proplend/observability/audit"
)

const (
	maxBodyBytes    = 1 << 20
	headerRequestID = "X-Request-ID"
	timeLayout      = time.RFC3339Nano
)

// Config wires the server to its collaborators. Ledger and Auth are
// required; the rest are optional.
type Config struct {
	Ledger         *core.Ledger
	Auth           *Authenticator
	RateLimiter    *RateLimiter
	Idempotency    *IdempotencyStore
	Hub            *Hub
	Audit          *audit.Store
	Logger         *slog.Logger
	OriginPatterns []string
}

// Server exposes the ledger over HTTP/JSON.
type Server struct {
	ledger         *core.Ledger
	auth           *Authenticator
	limiter        *RateLimiter
	idem           *IdempotencyStore
	hub            *Hub
	audit          *audit.Store
	logger         *slog.Logger
	originPatterns []string
}

func New(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("server: ledger required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("server: authenticator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	origins := cfg.OriginPatterns
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		ledger:         cfg.Ledger,
		auth:           cfg.Auth,
		limiter:        cfg.RateLimiter,
		idem:           cfg.Idempotency,
		hub:            hub,
		audit:          cfg.Audit,
		logger:         logger,
		originPatterns: origins,
	}, nil
}

// Hub returns the event hub the ledger should emit into.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the fully instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Routes(), "ledgerd")
}

// Routes builds the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pool", s.handlePoolSummary)
		r.Get("/pool/balances/{addr}", s.handlePoolBalance)
		r.Get("/loans/{id}", s.handleGetLoan)
		r.Get("/loans", s.handleListLoans)
		r.Get("/distribution/stats", s.handleDistributionStats)
		r.Get("/market/orders/{id}", s.handleGetOrder)
		r.Get("/market/orders", s.handleActiveOrders)
		r.Get("/market/users/{addr}/orders", s.handleUserOrders)
		r.Get("/market/stats", s.handleMarketStats)
		r.Get("/tokens/{tranche}", s.handleTokenInfo)
		r.Get("/tokens/{tranche}/balances/{addr}", s.handleShareBalance)
		r.Get("/tokens/{tranche}/allowances/{owner}/{spender}", s.handleAllowance)
		r.Get("/currency/balances/{addr}", s.handleCurrencyBalance)
		r.Get("/events/ws", s.handleEventsWS)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Use(s.limiter.Middleware)
			r.Use(s.idem.Middleware)

			r.Post("/pool/deposit", s.handleDeposit)
			r.Post("/pool/withdraw", s.handleWithdraw)
			r.Post("/loans", s.handleApplyForLoan)
			r.Post("/loans/{id}/repay", s.handleRepayLoan)
			r.Post("/loans/{id}/liquidate", s.handleLiquidateLoan)
			r.Post("/market/orders", s.handleCreateOrder)
			r.Post("/market/orders/{id}/cancel", s.handleCancelOrder)
			r.Post("/market/orders/{id}/fill", s.handleFillOrder)
			r.Post("/tokens/{tranche}/transfer", s.handleShareTransfer)
			r.Post("/tokens/{tranche}/approve", s.handleShareApprove)
			r.Post("/tokens/{tranche}/transferFrom", s.handleShareTransferFrom)
			r.Post("/currency/transfer", s.handleCurrencyTransfer)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/issue", s.handleIssue)
				r.Post("/roles/grant", s.handleGrantRole)
				r.Post("/roles/revoke", s.handleRevokeRole)
				r.Post("/distributor/bind", s.handleBindDistributor)
				r.Post("/distribute", s.handleDistribute)
				r.Post("/distribute/retained", s.handleDistributeRetained)
				r.Post("/treasury", s.handleSetTreasury)
				r.Post("/recipients", s.handleSetRecipients)
				r.Post("/market/treasury", s.handleSetMarketTreasury)
				r.Get("/audit", s.handleAuditList)
				r.Get("/audit/verify", s.handleAuditVerify)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.Subscribers(),
	})
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("server: response writer cannot hijack")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		observability.HTTP().Observe(route, status)
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", route,
			"status", status,
			"request_id", requestIDFrom(r.Context()),
			"duration", time.Since(started))
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body required")
		}
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
