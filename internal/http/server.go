// Package http exposes the JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/amqp"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/cache"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/core"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/services"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store"
)

type Server struct {
	http.Server

	store    store.Store
	analyzer *services.FixedCostAnalyzer
	setup    *services.SetupManager
	budget   *services.BudgetService
	checker  *services.TransactionChecker
	unlocks  *services.UnlockManager
	events   *amqp.Client

	rateLimiter *rateLimiter
	budgetCache *cache.LRUCache[core.BudgetCalculation]
	logger      *log.Logger

	stopJanitor  context.CancelFunc
	shutdownOnce sync.Once
}

// Options configures a Server.
type Options struct {
	Addr               string
	Store              store.Store
	UnlockAccessCode   string
	Events             *amqp.Client
	RateLimitPerMinute int
	CacheTTL           time.Duration
	Logger             *log.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 120
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Second
	}

	analyzer := services.NewFixedCostAnalyzer(logger)
	budget := services.NewBudgetService(opts.Store, opts.Store, analyzer, logger)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		store:       opts.Store,
		analyzer:    analyzer,
		setup:       services.NewSetupManager(opts.Store, analyzer, logger),
		budget:      budget,
		checker:     services.NewTransactionChecker(budget, opts.Store, opts.Store, logger),
		unlocks:     services.NewUnlockManager(opts.Store, opts.UnlockAccessCode, logger),
		events:      opts.Events,
		rateLimiter: newRateLimiter(opts.RateLimitPerMinute),
		budgetCache: cache.NewLRUCache[core.BudgetCalculation](64, opts.CacheTTL),
		logger:      logger.WithComponent(log.ComponentHTTP),
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	s.stopJanitor = stopJanitor
	cache.StartJanitor(janitorCtx, 5*time.Minute, s.budgetCache)

	mux.HandleFunc("GET /api/health", s.wrap(s.handleHealth))

	mux.HandleFunc("GET /api/setup", s.wrap(s.handleGetSetup))
	mux.HandleFunc("POST /api/setup", s.wrap(s.handleSaveSetup))
	mux.HandleFunc("DELETE /api/setup", s.wrap(s.handleClearSetup))

	mux.HandleFunc("GET /api/budget/current", s.wrap(s.handleCurrentBudget))
	mux.HandleFunc("POST /api/budget/calculate", s.wrap(s.handleCalculateBudget))

	mux.HandleFunc("GET /api/transactions", s.wrap(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.wrap(s.handleCreateTransaction))
	mux.HandleFunc("POST /api/transactions/check", s.wrap(s.handleCheckTransaction))
	mux.HandleFunc("DELETE /api/transactions", s.wrap(s.handleClearTransactions))

	mux.HandleFunc("GET /api/accounts", s.wrap(s.handleListAccounts))

	mux.HandleFunc("GET /api/unlock", s.wrap(s.handleUnlockStatus))
	mux.HandleFunc("POST /api/unlock/use", s.wrap(s.handleUnlockUse))
	mux.HandleFunc("POST /api/unlock/reset", s.wrap(s.handleUnlockReset))

	mux.HandleFunc("GET /api/fixed-costs", s.wrap(s.handleFixedCosts))
	mux.HandleFunc("GET /api/behavior", s.wrap(s.handleBehavior))
	mux.HandleFunc("GET /api/explanation", s.wrap(s.handleExplanation))

	return s
}

// wrap applies security headers, rate limiting and request logging.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		clientIP := extractClientIP(r)

		setSecurityHeaders(w)
		w.Header().Set("X-Request-ID", requestID)

		if !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(r.Context(), "rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next(w, r)

		s.logger.DebugContext(r.Context(), "request handled",
			log.FieldRequestID, requestID,
			log.FieldClientIP, clientIP,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

// publishEvent sends an audit event when AMQP is wired. Publish failures are
// logged and swallowed; the API response never depends on the broker.
func (s *Server) publishEvent(ctx context.Context, eventType, txID string, amountCents int64, blocked bool, detail string) {
	if s.events == nil {
		return
	}
	msg := amqp.NewTransactionEventMessage(eventType, txID, amountCents, blocked, detail)
	if err := s.events.PublishTransactionEvent(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"event_type", eventType, log.FieldError, err)
	}
}

// invalidateBudget drops cached calculations after any mutation.
func (s *Server) invalidateBudget() {
	s.budgetCache.Purge()
}

// Shutdown stops background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopJanitor()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
