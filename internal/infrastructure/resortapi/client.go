package resortapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/powderchaser/backend/internal/domain"
	"github.com/powderchaser/backend/internal/infrastructure/metrics"
	"github.com/powderchaser/backend/internal/pkg/logger"
)

const maxErrorBodyBytes = 512

// Config holds the client's transport and resilience settings
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// StatusError is a non-2xx answer from the resort API. It unwraps to the
// domain error of its class.
type StatusError struct {
	Status int
	Body   string
	kind   error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: status %d", e.kind, e.Status)
	}
	return fmt.Sprintf("%v: status %d: %s", e.kind, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// classifyStatus maps an HTTP status to nil or a *StatusError.
func classifyStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrorBodyBytes {
		snippet = snippet[:maxErrorBodyBytes]
	}

	var kind error
	switch {
	case status == http.StatusNotFound:
		kind = domain.ErrNotFound
	case status == http.StatusTooManyRequests:
		kind = domain.ErrNetwork
	case status >= 500:
		kind = domain.ErrNetwork
	case status >= 400:
		kind = domain.ErrValidation
	default:
		kind = domain.ErrNetwork
	}
	return &StatusError{Status: status, Body: snippet, kind: kind}
}

// Client talks to the resort API. It implements domain.ResortAPI.
type Client struct {
	httpClient  *http.Client
	cfg         Config
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      logger.Logger
	metrics     *metrics.Metrics
}

// NewClient creates a new resort API client
func NewClient(cfg Config, log logger.Logger, m *metrics.Metrics) *Client {
	cfg = cfg.withDefaults()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "resort-api",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Permanent answers mean the backend is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:     breaker,
		logger:      log.WithField("component", "resort_api"),
		metrics:     m,
	}
}

// exponentialBackoff returns the delay before retry number attempt (1-based).
func (c *Client) exponentialBackoff(attempt int) time.Duration {
	delay := c.cfg.InitialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > c.cfg.MaxBackoff {
		delay = c.cfg.MaxBackoff
	}
	return delay
}

// queryParam keeps query parameters in the order the backend documents them.
type queryParam struct {
	name  string
	value string
}

// encodeQuery escapes each value but keeps the comma separators of id lists literal.
func encodeQuery(params []queryParam) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		values := strings.Split(p.value, ",")
		for i, v := range values {
			values[i] = url.QueryEscape(v)
		}
		parts = append(parts, url.QueryEscape(p.name)+"="+strings.Join(values, ","))
	}
	return strings.Join(parts, "&")
}

func idsParam(ids []string) queryParam {
	return queryParam{name: "resort_ids", value: strings.Join(ids, ",")}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// getJSON performs a GET with retries on transient failures and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params []queryParam, out interface{}) error {
	reqURL := c.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + encodeQuery(params)
	}

	start := time.Now()
	body, err := c.fetchWithRetry(ctx, endpoint, reqURL)
	if err != nil {
		c.metrics.UpstreamRequest(endpoint, resultLabel(err), time.Since(start).Seconds())
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Warnf("decode error on %s: %v", endpoint, err)
		c.metrics.UpstreamRequest(endpoint, "decode", time.Since(start).Seconds())
		return fmt.Errorf("%w: failed to decode %s response: %v", domain.ErrDecode, endpoint, err)
	}

	c.metrics.UpstreamRequest(endpoint, "ok", time.Since(start).Seconds())
	return nil
}

func (c *Client) fetchWithRetry(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrNetwork, err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, reqURL)
		})
		if err == nil {
			return result.([]byte), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open: %v", domain.ErrNetwork, err)
		}
		if domain.IsPermanent(err) || ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		if attempt > c.cfg.MaxRetries {
			break
		}

		delay := c.exponentialBackoff(attempt)
		c.logger.Debugf("%s attempt %d failed: %v; retrying in %s", endpoint, attempt, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, ctx.Err())
		case <-timer.C:
		}
	}

	c.logger.Warnf("%s failed after %d attempts: %v", endpoint, c.cfg.MaxRetries+1, lastErr)
	return nil, lastErr
}

// doRequest executes a single GET and returns the body of a 2xx answer
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PowderChaser-Sync/1.0")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", domain.ErrNetwork, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRequest):
		return "validation"
	default:
		return "network"
	}
}

// ListResorts fetches every resort
func (c *Client) ListResorts(ctx context.Context) ([]domain.Resort, error) {
	var resp resortListResponse
	if err := c.getJSON(ctx, "resorts", "/resorts", nil, &resp); err != nil {
		return nil, err
	}

	resorts := make([]domain.Resort, 0, len(resp.Resorts))
	for _, dto := range resp.Resorts {
		resorts = append(resorts, MapResort(dto))
	}
	return resorts, nil
}

// GetResort fetches a single resort by id
func (c *Client) GetResort(ctx context.Context, resortID string) (*domain.Resort, error) {
	var dto resortDTO
	if err := c.getJSON(ctx, "resort", "/resorts/"+url.PathEscape(resortID), nil, &dto); err != nil {
		return nil, err
	}

	resort := MapResort(dto)
	return &resort, nil
}

// GetConditions fetches per-elevation conditions for a resort
func (c *Client) GetConditions(ctx context.Context, resortID string) ([]domain.WeatherCondition, error) {
	var resp conditionsResponse
	path := "/resorts/" + url.PathEscape(resortID) + "/conditions"
	if err := c.getJSON(ctx, "conditions", path, nil, &resp); err != nil {
		return nil, err
	}
	return MapConditions(resortID, resp.Conditions), nil
}

// GetQualitySummary fetches the full snow-quality summary for a resort
func (c *Client) GetQualitySummary(ctx context.Context, resortID string) (*domain.SnowQualitySummary, error) {
	var dto qualitySummaryDTO
	path := "/resorts/" + url.PathEscape(resortID) + "/snow-quality"
	if err := c.getJSON(ctx, "quality_summary", path, nil, &dto); err != nil {
		return nil, err
	}

	summary := MapQualitySummary(dto)
	if summary.ResortID == "" {
		summary.ResortID = resortID
	}
	return &summary, nil
}

// GetTimeline fetches the conditions timeline of one elevation
func (c *Client) GetTimeline(ctx context.Context, resortID string, level domain.ElevationLevel) (*domain.Timeline, error) {
	var resp timelineResponse
	path := "/resorts/" + url.PathEscape(resortID) + "/timeline"
	params := []queryParam{{name: "elevation", value: string(level)}}
	if err := c.getJSON(ctx, "timeline", path, params, &resp); err != nil {
		return nil, err
	}

	timeline := MapTimeline(resp, level)
	if timeline.ResortID == "" {
		timeline.ResortID = resortID
	}
	return &timeline, nil
}

// BatchConditions fetches conditions for many resorts in one call. Entries the
// backend answered with an error are left out of the result.
func (c *Client) BatchConditions(ctx context.Context, resortIDs []string) (map[string][]domain.WeatherCondition, error) {
	var resp batchConditionsResponse
	if err := c.getJSON(ctx, "batch_conditions", "/conditions/batch", []queryParam{idsParam(resortIDs)}, &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]domain.WeatherCondition, len(resp.Results))
	for id, entry := range resp.Results {
		if entry.Error != nil && *entry.Error != "" {
			c.logger.Debugf("batch conditions: %s reported error: %s", id, *entry.Error)
			continue
		}
		out[id] = MapConditions(id, entry.Conditions)
	}
	return out, nil
}

// BatchQuality fetches light quality summaries for many resorts in one call
func (c *Client) BatchQuality(ctx context.Context, resortIDs []string) (map[string]domain.SnowQualitySummaryLight, error) {
	var resp batchQualityResponse
	if err := c.getJSON(ctx, "batch_quality", "/snow-quality/batch", []queryParam{idsParam(resortIDs)}, &resp); err != nil {
		return nil, err
	}

	if resp.Count != nil && *resp.Count != len(resortIDs) {
		c.logger.Warnf("batch quality: requested %d resorts, backend reported %d", len(resortIDs), *resp.Count)
	}

	out := make(map[string]domain.SnowQualitySummaryLight, len(resp.Results))
	for id, dto := range resp.Results {
		out[id] = MapQualitySummaryLight(id, dto)
	}
	return out, nil
}

// Recommendations fetches candidates around a location
func (c *Client) Recommendations(ctx context.Context, q domain.RecommendationQuery) ([]domain.Recommendation, error) {
	params := []queryParam{
		{name: "lat", value: formatFloat(q.Latitude)},
		{name: "lng", value: formatFloat(q.Longitude)},
		{name: "radius", value: formatFloat(q.RadiusKM)},
		{name: "limit", value: strconv.Itoa(q.Limit)},
	}
	if q.MinQuality != "" {
		params = append(params, queryParam{name: "min_quality", value: string(q.MinQuality)})
	}

	var resp recommendationsResponse
	if err := c.getJSON(ctx, "recommendations", "/recommendations", params, &resp); err != nil {
		return nil, err
	}
	return mapRecommendations(resp.Recommendations), nil
}

// BestRecommendations fetches the location-independent global ranking
func (c *Client) BestRecommendations(ctx context.Context, q domain.BestRecommendationQuery) ([]domain.Recommendation, error) {
	params := []queryParam{{name: "limit", value: strconv.Itoa(q.Limit)}}
	if q.MinQuality != "" {
		params = append(params, queryParam{name: "min_quality", value: string(q.MinQuality)})
	}

	var resp recommendationsResponse
	if err := c.getJSON(ctx, "best_recommendations", "/recommendations/best", params, &resp); err != nil {
		return nil, err
	}
	return mapRecommendations(resp.Recommendations), nil
}

func mapRecommendations(dtos []recommendationDTO) []domain.Recommendation {
	out := make([]domain.Recommendation, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, MapRecommendation(dto))
	}
	return out
}
