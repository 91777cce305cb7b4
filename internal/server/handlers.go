package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cryptocompliance/btc-screening/internal/domain"
	"github.com/cryptocompliance/btc-screening/internal/validation"
)

// envelope is the uniform response shape of the service boundary
type envelope struct {
	Success       bool       `json:"success"`
	Data          any        `json:"data,omitempty"`
	Error         *errorBody `json:"error,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
	CorrelationID string     `json:"correlation_id"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	correlationHeader     = "X-Correlation-ID"
	correlationContextKey = "correlation_id"
)

// correlationID returns the caller-supplied correlation id or mints one.
// The id is stored on the request context so every call within one
// request returns the same value.
func correlationID(c echo.Context) string {
	if id, ok := c.Get(correlationContextKey).(string); ok {
		return id
	}
	id := c.Request().Header.Get(correlationHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(correlationContextKey, id)
	return id
}

func respond(c echo.Context, status int, data any) error {
	return respondWithStatus(c, status, true, data, nil)
}

func respondWithStatus(c echo.Context, status int, success bool, data any, errBody *errorBody) error {
	return c.JSON(status, envelope{
		Success:       success,
		Data:          data,
		Error:         errBody,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID(c),
	})
}

// respondError maps a core error kind onto the documented status codes
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := domain.KindInternal
	message := "internal error"
	var details map[string]any

	var typed *domain.Error
	if e, ok := err.(*domain.Error); ok {
		typed = e
	}

	switch kind := domain.KindOf(err); kind {
	case domain.KindValidation:
		status, code = http.StatusBadRequest, kind
	case domain.KindDataNotFound:
		status, code = http.StatusNotFound, kind
	case domain.KindExternalAPI:
		code = kind
		if domain.IsRateLimited(err) {
			status = http.StatusTooManyRequests
		} else {
			status = http.StatusBadGateway
		}
	case domain.KindDataLoad:
		status, code = http.StatusInternalServerError, kind
	}

	if typed != nil {
		message = typed.Message
		details = typed.Details
	}

	return respondWithStatus(c, status, false, nil, &errorBody{
		Code:    string(code),
		Message: message,
		Details: details,
	})
}

type screenAddressRequest struct {
	Address     string `json:"address"`
	IncludeWalk bool   `json:"include_walk"`
	MaxHops     int    `json:"max_hops"`
}

func (s *Server) handleScreenAddress(c echo.Context) error {
	var req screenAddressRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.ValidationError("malformed request body"))
	}

	result, err := s.addresses.Screen(c.Request().Context(), req.Address, req.IncludeWalk, req.MaxHops, correlationID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, result)
}

type screenBulkRequest struct {
	Addresses   []string `json:"addresses"`
	IncludeWalk bool     `json:"include_walk"`
	MaxHops     int      `json:"max_hops"`
}

const maxBulkAddresses = 100

func (s *Server) handleScreenAddressBulk(c echo.Context) error {
	var req screenBulkRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.ValidationError("malformed request body"))
	}
	if len(req.Addresses) == 0 {
		return respondError(c, domain.ValidationError("addresses must not be empty"))
	}
	if len(req.Addresses) > maxBulkAddresses {
		return respondError(c, domain.ValidationError("too many addresses").
			WithDetail("max", maxBulkAddresses).WithDetail("got", len(req.Addresses)))
	}

	results, err := s.addresses.ScreenBatch(c.Request().Context(), req.Addresses, req.IncludeWalk, req.MaxHops, correlationID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{
		"requested": len(req.Addresses),
		"screened":  len(results),
		"results":   results,
	})
}

type screenTxRequest struct {
	TxHash          string `json:"tx_hash"`
	Direction       string `json:"direction"`
	IncludeMetadata bool   `json:"include_metadata"`
}

func (s *Server) handleScreenTransaction(c echo.Context) error {
	var req screenTxRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.ValidationError("malformed request body"))
	}

	direction, err := validation.NormalizeDirection(req.Direction)
	if err != nil {
		return respondError(c, err)
	}

	result, err := s.txs.Screen(c.Request().Context(), req.TxHash, direction, req.IncludeMetadata, correlationID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, result)
}

type screenTxBulkRequest struct {
	TxHashes        []string `json:"tx_hashes"`
	Direction       string   `json:"direction"`
	IncludeMetadata bool     `json:"include_metadata"`
}

const maxBulkTxs = 25

func (s *Server) handleScreenTransactionBulk(c echo.Context) error {
	var req screenTxBulkRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, domain.ValidationError("malformed request body"))
	}
	if len(req.TxHashes) == 0 {
		return respondError(c, domain.ValidationError("tx_hashes must not be empty"))
	}
	if len(req.TxHashes) > maxBulkTxs {
		return respondError(c, domain.ValidationError("too many transactions").
			WithDetail("max", maxBulkTxs).WithDetail("got", len(req.TxHashes)))
	}

	direction, err := validation.NormalizeDirection(req.Direction)
	if err != nil {
		return respondError(c, err)
	}

	results, err := s.txs.ScreenBatch(c.Request().Context(), req.TxHashes, direction, req.IncludeMetadata, correlationID(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{
		"requested": len(req.TxHashes),
		"screened":  len(results),
		"results":   results,
	})
}

func (s *Server) handleSanctionsEntities(c echo.Context) error {
	entities, err := s.sanctions.All(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{"count": len(entities), "entities": entities})
}

func (s *Server) handleSanctionsSearch(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return respondError(c, domain.ValidationError("query parameter q is required"))
	}

	entities, err := s.sanctions.SearchByName(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{"count": len(entities), "entities": entities})
}

func (s *Server) handleSanctionsMetadata(c echo.Context) error {
	md, err := s.sanctions.Metadata(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, md)
}

func (s *Server) handleSanctionsReload(c echo.Context) error {
	s.sanctions.Clear()
	md, err := s.sanctions.Metadata(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, md)
}

func (s *Server) handleAuditByDate(c echo.Context) error {
	entries, err := s.audit.ByDate(c.Param("date"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

func (s *Server) handleAuditByCorrelation(c echo.Context) error {
	entries, err := s.audit.ByCorrelationID(c.Param("id"), s.queryDays(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

func (s *Server) handleAuditByAddress(c echo.Context) error {
	entries, err := s.audit.ByAddress(c.Param("address"), s.queryDays(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, map[string]any{"count": len(entries), "entries": entries})
}

func (s *Server) handleAuditStats(c echo.Context) error {
	stats, err := s.audit.Stats(s.queryDays(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, stats)
}

func (s *Server) handleRateLimitStatus(c echo.Context) error {
	return respond(c, http.StatusOK, s.indexer.RateLimitStatus())
}

// queryDays parses the days query parameter, falling back to the
// configured audit window
func (s *Server) queryDays(c echo.Context) int {
	days := s.cfg.Audit.QueryWindowDays
	if raw := c.QueryParam("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 90 {
			days = parsed
		}
	}
	return days
}
