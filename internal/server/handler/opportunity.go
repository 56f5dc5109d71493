package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Detector runs one detection on demand.
type Detector interface {
	Detect(ctx context.Context, exchange string) (domain.Detection, error)
	DefaultExchange() string
}

// OpportunityHandler serves detection results. Latest needs a result
// reader, Recent and Best need a store; missing backends answer 501.
type OpportunityHandler struct {
	detector Detector
	latest   domain.ResultReader
	store    domain.OpportunityStore
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewOpportunityHandler creates the handler. latest and store may be nil.
func NewOpportunityHandler(detector Detector, latest domain.ResultReader, store domain.OpportunityStore, timeout time.Duration, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		detector: detector,
		latest:   latest,
		store:    store,
		timeout:  timeout,
		now:      time.Now,
		logger:   logHandler(logger, "opportunity"),
	}
}

// Latest returns the last stored record for an exchange.
// GET /api/opportunities/latest?exchange=binance
func (h *OpportunityHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.latest == nil {
		writeError(w, http.StatusNotImplemented, "result storage not configured")
		return
	}
	exchange := exchangeParam(r)
	if exchange == "" {
		exchange = h.detector.DefaultExchange()
	}

	rec, err := h.latest.Latest(r.Context(), exchange)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no result for exchange "+exchange)
			return
		}
		h.logger.ErrorContext(r.Context(), "read latest result failed",
			slog.String("exchange", exchange),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read latest result")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Recent lists stored detections, newest first.
// GET /api/opportunities/recent?exchange=&since=24h&limit=50&offset=0
func (h *OpportunityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "opportunity history not configured")
		return
	}
	rows, err := h.store.ListRecent(r.Context(), parseListOpts(r, h.now()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if rows == nil {
		rows = []domain.OpportunityRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"opportunities": rows})
}

// Best returns the most profitable stored detection in a window.
// GET /api/opportunities/best?exchange=binance&since=24h
func (h *OpportunityHandler) Best(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "opportunity history not configured")
		return
	}
	exchange := exchangeParam(r)
	if exchange == "" {
		exchange = h.detector.DefaultExchange()
	}
	now := h.now()
	since, ok := parseSince(r.URL.Query().Get("since"), now)
	if !ok {
		since = now.Add(-24 * time.Hour)
	}

	row, err := h.store.Best(r.Context(), exchange, since)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no opportunity in window")
			return
		}
		h.logger.ErrorContext(r.Context(), "best opportunity failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to query best opportunity")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Detect runs a detection synchronously and returns it.
// POST /api/detect?exchange=binance
func (h *OpportunityHandler) Detect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	d, err := h.detector.Detect(ctx, exchangeParam(r))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownExchange):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "detection timed out")
		default:
			h.logger.ErrorContext(ctx, "detection failed", slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, "market data fetch failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, d)
}
