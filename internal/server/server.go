package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/headline-goat/intent-goat/internal/logger"
	"github.com/headline-goat/intent-goat/internal/notify"
	"github.com/headline-goat/intent-goat/internal/stats"
	"github.com/headline-goat/intent-goat/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server. Zero values pick the defaults.
type Options struct {
	Port      int
	TokenFile string
	// Deduper remembers ingested event ids; the SQLite store is used when nil.
	Deduper store.Deduper
	// Relay delivers /api/sales/notify; requests fail with missing_webhook
	// when nil or unconfigured.
	Relay  *notify.Relay
	Logger *logger.Logger

	ExperimentID string
	Kappa        float64

	IngestPerSecond float64
	IngestBurst     int
}

type Server struct {
	store     *store.SQLiteStore
	dedup     store.Deduper
	relay     *notify.Relay
	log       *logger.Logger
	limiter   *ipLimiter
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time

	experimentID string
	kappa        float64
}

func New(s *store.SQLiteStore, opts Options) *Server {
	if opts.Deduper == nil {
		opts.Deduper = s
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Kappa <= 0 {
		opts.Kappa = stats.DefaultKappa
	}
	if opts.IngestPerSecond <= 0 {
		opts.IngestPerSecond = 20
	}
	if opts.IngestBurst <= 0 {
		opts.IngestBurst = 40
	}

	srv := &Server{
		store:        s,
		dedup:        opts.Deduper,
		relay:        opts.Relay,
		log:          opts.Logger.With("component", "server"),
		limiter:      newIPLimiter(opts.IngestPerSecond, opts.IngestBurst),
		port:         opts.Port,
		token:        generateToken(),
		tokenFile:    opts.TokenFile,
		router:       http.NewServeMux(),
		startTime:    time.Now(),
		experimentID: opts.ExperimentID,
		kappa:        opts.Kappa,
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/api/analytics/ingest", s.limiter.Middleware(http.HandlerFunc(s.handleIngest)))
	s.router.HandleFunc("/api/optimizer/recompute", s.handleRecompute)
	s.router.HandleFunc("/api/optimizer/recompute-hier", s.handleRecomputeHier)
	s.router.HandleFunc("/api/optimizer/posteriors", s.handlePosteriors)
	s.router.HandleFunc("/api/sales/notify", s.handleSalesNotify)
	s.router.HandleFunc("/api/finance", s.handleFinance)

	// Dashboard endpoints (protected)
	s.router.Handle("/dashboard/api/summary", s.authMiddleware(http.HandlerFunc(s.handleDashboardSummary)))
	s.router.Handle("/dashboard/api/variants", s.authMiddleware(http.HandlerFunc(s.handleDashboardVariants)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, printMessages bool) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.log.Warn("failed to write token file", "path", s.tokenFile, "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if printMessages {
		fmt.Println()
		fmt.Printf("intent-goat running on http://localhost:%d\n", s.port)
		fmt.Printf("Dashboard: http://localhost:%d/dashboard/api/summary?token=%s\n", s.port, s.token)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Store() *store.SQLiteStore {
	return s.store
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
