// Package server exposes the screening core over HTTP with a uniform
// response envelope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cryptocompliance/btc-screening/internal/config"
	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
)

// AddressScreener is the address screening surface the server exposes
type AddressScreener interface {
	Screen(ctx context.Context, addr string, includeWalk bool, maxHops int, correlationID string) (*domain.ScreeningResult, error)
	ScreenBatch(ctx context.Context, addrs []string, includeWalk bool, maxHops int, correlationID string) ([]*domain.ScreeningResult, error)
}

// TxScreener is the transaction screening surface the server exposes
type TxScreener interface {
	Screen(ctx context.Context, txHash string, direction domain.TxDirection, includeMetadata bool, correlationID string) (*domain.TxScreeningResult, error)
	ScreenBatch(ctx context.Context, txHashes []string, direction domain.TxDirection, includeMetadata bool, correlationID string) ([]*domain.TxScreeningResult, error)
}

// SanctionsIndex is the sanctions surface the server exposes
type SanctionsIndex interface {
	All(ctx context.Context) ([]*domain.SanctionEntity, error)
	SearchByName(ctx context.Context, q string) ([]*domain.SanctionEntity, error)
	Metadata(ctx context.Context) (domain.SanctionsMetadata, error)
	Clear()
}

// AuditQueries is the audit query surface the server exposes
type AuditQueries interface {
	ByDate(date string) ([]domain.AuditEntry, error)
	ByCorrelationID(id string, days int) ([]domain.AuditEntry, error)
	ByAddress(addr string, days int) ([]domain.AuditEntry, error)
	Stats(days int) (*domain.AuditStats, error)
}

// IndexerStatus is the indexer health surface the server exposes
type IndexerStatus interface {
	RateLimitStatus() domain.RateLimitStatus
	GetAddressInfo(ctx context.Context, addr string) (*domain.AddressInfo, error)
}

// Server wires the screening components to HTTP routes
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	log       *logger.Logger
	addresses AddressScreener
	txs       TxScreener
	sanctions SanctionsIndex
	audit     AuditQueries
	indexer   IndexerStatus
}

// New creates the HTTP server
func New(
	cfg *config.Config,
	log *logger.Logger,
	addresses AddressScreener,
	txs TxScreener,
	sanctions SanctionsIndex,
	audit AuditQueries,
	indexer IndexerStatus,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		echo:      e,
		cfg:       cfg,
		log:       log.Named("http_server"),
		addresses: addresses,
		txs:       txs,
		sanctions: sanctions,
		audit:     audit,
		indexer:   indexer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/screening/address", s.handleScreenAddress)
	v1.POST("/screening/address/bulk", s.handleScreenAddressBulk)
	v1.POST("/screening/transaction", s.handleScreenTransaction)
	v1.POST("/screening/transaction/bulk", s.handleScreenTransactionBulk)

	v1.GET("/sanctions/entities", s.handleSanctionsEntities)
	v1.GET("/sanctions/search", s.handleSanctionsSearch)
	v1.GET("/sanctions/metadata", s.handleSanctionsMetadata)
	v1.POST("/sanctions/reload", s.handleSanctionsReload)

	v1.GET("/audit/date/:date", s.handleAuditByDate)
	v1.GET("/audit/correlation/:id", s.handleAuditByCorrelation)
	v1.GET("/audit/address/:address", s.handleAuditByAddress)
	v1.GET("/audit/stats", s.handleAuditStats)

	v1.GET("/indexer/rate-limit", s.handleRateLimitStatus)
}

// Start runs the server until the listener fails or Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.log.Info("http server listening", logger.StringField("addr", addr))

	s.echo.Server.ReadTimeout = s.cfg.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.cfg.Server.WriteTimeout

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the sanctions index loads and the indexer
// answers. A degraded dependency yields 503 with detail.
func (s *Server) handleReady(c echo.Context) error {
	ctx := c.Request().Context()

	checks := map[string]string{"sanctions": "ok", "indexer": "ok"}
	healthy := true

	if _, err := s.sanctions.Metadata(ctx); err != nil {
		checks["sanctions"] = err.Error()
		healthy = false
	}

	// The genesis coinbase address always has indexer data
	readyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.indexer.GetAddressInfo(readyCtx, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"); err != nil {
		checks["indexer"] = err.Error()
		healthy = false
	}

	if !healthy {
		return respondWithStatus(c, http.StatusServiceUnavailable, false, checks, nil)
	}
	return respond(c, http.StatusOK, checks)
}
