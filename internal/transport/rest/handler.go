// Package rest provides HTTP handlers for catalog browsing.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	cerrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/service"
	"github.com/abgdnv/catalog/pkg/auth"
	"github.com/abgdnv/catalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const defaultHeartbeat = 15 * time.Second

type Handler struct {
	service   service.CatalogService
	verifier  auth.Verifier
	validate  *validator.Validate
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates the catalog API. With a nil verifier the reload endpoint is not protected.
func NewHandler(service service.CatalogService, verifier auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		verifier:  verifier,
		validate:  validator.New(),
		logger:    logger.With("component", "rest"),
		heartbeat: defaultHeartbeat,
	}
}

// SessionFacetsDto is what a session needs to render its filter controls.
type SessionFacetsDto struct {
	Version      uint64   `json:"catalogVersion"`
	Categories   []string `json:"categories"`
	Companies    []string `json:"companies"`
	Colors       []string `json:"colors"`
	MaxPrice     int64    `json:"maxPrice"`
	PriceCeiling int64    `json:"priceCeiling"`
}

// RegisterRoutes registers the HTTP routes of the catalog service.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/facets", h.Facets)
		r.Get("/products", h.Filter)

		r.Group(func(r chi.Router) {
			if h.verifier != nil {
				r.Use(web.AuthMiddleware(h.verifier, h.logger))
			}
			r.Post("/catalog/reload", h.Reload)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Get("/facets", h.SessionFacets)
				r.Post("/filters", h.SetFilter)
				r.Delete("/filters", h.ClearFilter)
				r.Put("/display", h.SetDisplay)
				r.Get("/events", h.Events)
			})
		})
	})

	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadyCheck)
}

// Facets describes the loaded catalog and its facet values.
func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	found, err := h.service.Catalog(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, uuid.Nil)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// Filter runs a stateless filter query given as query parameters.
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	q := r.URL.Query()
	ship, ok := web.ParseOptionalBool(r, w, mLogger, "ship")
	if !ok {
		return
	}
	price, present, ok := web.ParseOptionalGte(r, w, mLogger, "price", math.MinInt64)
	if !ok {
		return
	}
	query := service.FilterQuery{
		SearchName: q.Get("search"),
		Category:   q.Get("category"),
		Company:    q.Get("company"),
		Color:      q.Get("color"),
		Shipping:   ship,
	}
	if present {
		query.Price = &price
	}
	mLogger.DebugContext(r.Context(), "Received filter query", "query", query)

	result, err := h.service.Filter(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, uuid.Nil)
		return
	}
	mLogger.DebugContext(r.Context(), "Filter query answered", "total", result.Total)
	web.RespondJSON(w, mLogger, http.StatusOK, result)
}

// Reload refetches the product collection.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	mLogger.InfoContext(r.Context(), "Catalog reload requested", "subject", web.Subject(r.Context()))
	loaded, err := h.service.Reload(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Catalog reload failed", "error", err)
		web.RespondError(w, mLogger, http.StatusBadGateway, "Failed to reload catalog")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, loaded)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	view, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, uuid.Nil)
		return
	}
	mLogger.InfoContext(r.Context(), "Session created", "ID", view.ID)
	w.Header().Set("Location", "/api/v1/sessions/"+view.ID)
	web.RespondJSON(w, mLogger, http.StatusCreated, view)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	view, err := h.service.View(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, view)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	mLogger.InfoContext(r.Context(), "Session deleted", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// SessionFacets returns the facet values and price range of the session's catalog.
func (h *Handler) SessionFacets(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	view, err := h.service.View(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, SessionFacetsDto{
		Version:      view.Version,
		Categories:   view.Facets.Categories,
		Companies:    view.Facets.Companies,
		Colors:       view.Facets.Colors,
		MaxPrice:     view.MaxPrice,
		PriceCeiling: view.PriceCeiling,
	})
}

// SetFilter changes one filter. Debounced filters answer 202 with the
// value reported as pending.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var filter service.FilterDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &filter) {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to set filter", "ID", id, "type", filter.Type, "value", filter.Value)

	view, applied, err := h.service.SetFilter(r.Context(), id, filter)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	status := http.StatusOK
	if !applied {
		status = http.StatusAccepted
	}
	web.RespondJSON(w, mLogger, status, view)
}

// ClearFilter resets every filter of the session.
func (h *Handler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	view, err := h.service.ClearFilter(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, view)
}

func (h *Handler) SetDisplay(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var display service.DisplayDto
	if !web.DecodeAndValidate(w, r, mLogger, h.validate, &display) {
		return
	}
	view, err := h.service.SetDisplay(r.Context(), id, display)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, view)
}

// Events streams every committed view of the session as server-sent events.
// Views are coalesced, a slow client skips intermediate states but never sees stale ones.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerFor(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	views, cancel, err := h.service.Subscribe(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		mLogger.ErrorContext(r.Context(), "Streaming is not supported", "error", err)
		return
	}
	mLogger.DebugContext(r.Context(), "Event stream opened", "ID", id)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			mLogger.DebugContext(r.Context(), "Event stream closed by client", "ID", id)
			return
		case view, ok := <-views:
			if !ok {
				_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			data, err := json.Marshal(view)
			if err != nil {
				mLogger.ErrorContext(r.Context(), "Error encoding view", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", view.Revision, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ReadyCheck answers 200 once a catalog is loaded.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.service.Catalog(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// respondServiceError maps service errors to HTTP statuses.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, id uuid.UUID) {
	switch {
	case errors.Is(err, cerrors.ErrSessionNotFound):
		logger.WarnContext(r.Context(), "Session not found", "ID", id)
		web.RespondError(w, logger, http.StatusNotFound, fmt.Sprintf("Session with ID %s not found", id))
	case errors.Is(err, cerrors.ErrUnknownFilterType),
		errors.Is(err, cerrors.ErrInvalidFilterValue),
		errors.Is(err, cerrors.ErrInvalidDisplay):
		logger.WarnContext(r.Context(), "Rejected input", "ID", id, "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, cerrors.ErrCatalogUnavailable):
		logger.WarnContext(r.Context(), "Catalog unavailable", "error", err)
		web.RespondError(w, logger, http.StatusServiceUnavailable, "Catalog is not available")
	case errors.Is(err, cerrors.ErrSessionLimit):
		logger.WarnContext(r.Context(), "Session limit reached", "error", err)
		web.RespondError(w, logger, http.StatusTooManyRequests, "Too many sessions")
	default:
		logger.ErrorContext(r.Context(), "Unexpected service error", "ID", id, "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, "Internal error")
	}
}

// loggerFor adds the matched route; the request id comes from the context handler.
func (h *Handler) loggerFor(r *http.Request) *slog.Logger {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return h.logger.With("route", rctx.RoutePattern())
	}
	return h.logger
}
