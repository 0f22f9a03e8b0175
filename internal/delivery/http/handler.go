package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/powderchaser/backend/internal/domain"
	"github.com/powderchaser/backend/internal/pkg/logger"
	"github.com/powderchaser/backend/internal/usecase"
)

const (
	serviceName    = "powderchaser-backend"
	serviceVersion = "1.0.0"
)

// HealthChecker is implemented by cache stores that depend on an external service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service *usecase.ResortService
	health  HealthChecker
	logger  logger.Logger
}

// NewHandler creates a new HTTP handler. health may be nil.
func NewHandler(service *usecase.ResortService, health HealthChecker, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		health:  health,
		logger:  log.WithField("component", "http"),
	}
}

// Meta describes where a payload came from.
type Meta struct {
	Source       string    `json:"source"`
	Stale        bool      `json:"stale"`
	CachedAt     time.Time `json:"cached_at"`
	AgeSeconds   int64     `json:"age_seconds"`
	RefreshError string    `json:"refresh_error,omitempty"`
	Missing      []string  `json:"missing,omitempty"`
}

// Response is the envelope of every data endpoint
type Response struct {
	Data interface{} `json:"data"`
	Meta Meta        `json:"meta"`
}

func metaFrom[T any](r *usecase.SyncResult[T]) Meta {
	m := Meta{
		Source:     string(r.Source),
		Stale:      r.IsStale(),
		CachedAt:   r.CachedAt.UTC(),
		AgeSeconds: int64(r.Age / time.Second),
	}
	if r.RefreshErr != nil {
		m.RefreshError = r.RefreshErr.Error()
	}
	return m
}

func respond[T any](c *gin.Context, r *usecase.SyncResult[T]) {
	c.JSON(http.StatusOK, Response{Data: r.Value, Meta: metaFrom(r)})
}

func respondBatch[T any](c *gin.Context, r *usecase.BatchSyncResult[T]) {
	meta := metaFrom(r.SyncResult)
	meta.Missing = r.Missing
	c.JSON(http.StatusOK, Response{Data: r.Value, Meta: meta})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDecode):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func invalid(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
}

// syncOptions reads the refresh flag
func syncOptions(c *gin.Context) (usecase.SyncOptions, bool) {
	raw := c.Query("refresh")
	if raw == "" {
		return usecase.SyncOptions{}, true
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		invalid(c, "refresh must be a boolean")
		return usecase.SyncOptions{}, false
	}
	return usecase.SyncOptions{ForceRefresh: force}, true
}

// resortIDs accepts both resort_ids=a,b and repeated resort_ids parameters
func resortIDs(c *gin.Context) []string {
	var ids []string
	for _, v := range c.QueryArray("resort_ids") {
		ids = append(ids, strings.Split(v, ",")...)
	}
	return usecase.CanonicalizeKeys(ids)
}

func parseMinQuality(c *gin.Context) (domain.SnowQuality, bool) {
	raw := strings.TrimSpace(c.Query("min_quality"))
	if raw == "" {
		return "", true
	}
	q := domain.ParseSnowQuality(raw)
	if q == domain.QualityUnknown {
		invalid(c, "min_quality must be one of excellent, good, fair, poor, slushy, bad, horrible")
		return "", false
	}
	return q, true
}

func parseOptionalInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		invalid(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func parseFloat(c *gin.Context, name string, required bool) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			invalid(c, name+" is required")
			return 0, false
		}
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		invalid(c, name+" must be a number")
		return 0, false
	}
	return v, true
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	}

	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["cache"] = err.Error()
		}
	}

	c.JSON(status, body)
}

// ListResorts handles GET /resorts
func (h *Handler) ListResorts(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}
	res, err := h.service.ListResorts(c.Request.Context(), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, res)
}

// GetResort handles GET /resorts/:id
func (h *Handler) GetResort(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}
	res, err := h.service.GetResort(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, res)
}

// GetConditions handles GET /resorts/:id/conditions
func (h *Handler) GetConditions(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}
	res, err := h.service.GetConditions(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, res)
}

// GetQualitySummary handles GET /resorts/:id/snow-quality
func (h *Handler) GetQualitySummary(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}
	res, err := h.service.GetQualitySummary(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, res)
}

// GetTimeline handles GET /resorts/:id/timeline?elevation=
func (h *Handler) GetTimeline(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}
	res, err := h.service.GetTimeline(c.Request.Context(), c.Param("id"), c.Query("elevation"), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, res)
}

// GetBatchConditions handles GET /conditions/batch?resort_ids=
func (h *Handler) GetBatchConditions(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}
	res, err := h.service.GetBatchConditions(c.Request.Context(), resortIDs(c), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondBatch(c, res)
}

// GetBatchQuality handles GET /snow-quality/batch?resort_ids=
func (h *Handler) GetBatchQuality(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}
	res, err := h.service.GetBatchQuality(c.Request.Context(), resortIDs(c), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondBatch(c, res)
}

// GetRecommendations handles GET /recommendations?lat=&lng=&radius=&limit=&min_quality=
func (h *Handler) GetRecommendations(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}

	var query domain.RecommendationQuery
	if query.Latitude, ok = parseFloat(c, "lat", true); !ok {
		return
	}
	if query.Longitude, ok = parseFloat(c, "lng", true); !ok {
		return
	}
	if query.RadiusKM, ok = parseFloat(c, "radius", false); !ok {
		return
	}
	if query.Limit, ok = parseOptionalInt(c, "limit"); !ok {
		return
	}
	if query.MinQuality, ok = parseMinQuality(c); !ok {
		return
	}

	res, err := h.service.GetRecommendations(c.Request.Context(), query, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, res)
}

// GetBestRecommendations handles GET /recommendations/best?limit=&min_quality=
func (h *Handler) GetBestRecommendations(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}

	var query domain.BestRecommendationQuery
	if query.Limit, ok = parseOptionalInt(c, "limit"); !ok {
		return
	}
	if query.MinQuality, ok = parseMinQuality(c); !ok {
		return
	}

	res, err := h.service.GetBestRecommendations(c.Request.Context(), query, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, res)
}

// GetFavoritesOverview handles GET /favorites/overview?resort_ids=. A failure of
// one lookup still returns the other, with the failure listed under "errors".
func (h *Handler) GetFavoritesOverview(c *gin.Context) {
	opts, ok := syncOptions(c)
	if !ok {
		return
	}

	overview, err := h.service.GetFavoritesOverview(c.Request.Context(), resortIDs(c), opts)
	if overview == nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{"data": gin.H{"resorts": overview.Resorts}}
	switch {
	case overview.Quality != nil:
		meta := metaFrom(overview.Quality.SyncResult)
		meta.Missing = overview.Quality.Missing
		body["meta"] = meta
	case overview.Names != nil:
		body["meta"] = metaFrom(overview.Names)
	}
	if err != nil {
		h.logger.Warnf("favorites overview partially failed: %v", err)
		body["errors"] = errorMessages(err)
	}
	c.JSON(http.StatusOK, body)
}

// errorMessages flattens an errors.Join result
func errorMessages(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// ClearCache handles DELETE /cache
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("cache cleared")
	c.Status(http.StatusNoContent)
}
