// Package handler provides the tag request handler and its HTTP surface.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tag-gateway/internal/cache"
	"tag-gateway/internal/completion"
	"tag-gateway/internal/logger"
	"tag-gateway/internal/middleware"
	"tag-gateway/internal/models"
	"tag-gateway/internal/tags"
)

// Outcome labels used in logs and stats.
const (
	OutcomeOK               = "ok"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeMethodNotAllowed = "method_not_allowed"
	OutcomeMisconfigured    = "misconfigured"
	OutcomeUpstreamError    = "upstream_error"
	OutcomeInternalError    = "internal_error"
)

// Request is a transport-neutral tag request.
type Request struct {
	Method    string
	Body      []byte
	RequestID string
}

// Response is a transport-neutral tag response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Config holds configuration for the tag handler.
type Config struct {
	// APIKey is the completion API credential. Empty means misconfigured.
	APIKey string
}

// TagHandler validates tag requests, asks the completion API once and
// returns the sanitized tags.
type TagHandler struct {
	completer completion.Completer
	cache     cache.TagCache
	logger    *logger.Logger
	apiKey    string
}

// New creates a TagHandler. tagCache may be nil to disable caching.
func New(
	completer completion.Completer,
	tagCache cache.TagCache,
	log *logger.Logger,
	cfg *Config,
) *TagHandler {
	h := &TagHandler{
		completer: completer,
		cache:     tagCache,
		logger:    log,
	}
	if cfg != nil {
		h.apiKey = cfg.APIKey
	}
	return h
}

type tagsBody struct {
	Tags []string `json:"tags"`
}

type errorBody struct {
	Error  string  `json:"error"`
	Detail *string `json:"detail,omitempty"`
}

// requestState accumulates what a single request did, for the final log line.
type requestState struct {
	log      logger.RequestLog
	start    time.Time
	upstream time.Duration
}

// Handle runs one tag request to completion. It never returns an error:
// every failure is a Response. A panic anywhere below becomes a generic
// internal error.
func (h *TagHandler) Handle(ctx context.Context, req Request) (resp Response) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = logger.GenerateRequestID()
	}
	log := h.logger.WithRequestID(requestID)
	state := &requestState{start: time.Now()}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("tag handler panicked", "panic", fmt.Sprint(rec))
			resp = h.internalError(state, fmt.Errorf("panic: %v", rec))
		}
		h.finish(log, state, resp)
	}()

	if req.Method != http.MethodPost {
		state.log.Outcome = OutcomeMethodNotAllowed
		return Response{
			StatusCode: http.StatusMethodNotAllowed,
			Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
			Body:       []byte("Method Not Allowed"),
		}
	}

	query, err := models.ParseQuery(req.Body)
	if err != nil {
		state.log.Outcome = OutcomeInvalidInput
		state.log.Error = err.Error()
		return errorResponse(http.StatusBadRequest, validationMessage(err), nil)
	}
	state.log.Mode = query.Mode

	if h.apiKey == "" {
		state.log.Outcome = OutcomeMisconfigured
		state.log.Error = "completion API key is not configured"
		return errorResponse(http.StatusInternalServerError, "Server misconfiguration", nil)
	}

	if cached, ok := h.lookupCache(ctx, log, query); ok {
		state.log.Outcome = OutcomeOK
		state.log.CacheStatus = "hit"
		state.log.TagCount = len(cached)
		return tagsResponse(cached)
	}

	upstreamStart := time.Now()
	result, err := h.completer.Complete(ctx, models.BuildPrompt(query))
	state.upstream = time.Since(upstreamStart)
	if err != nil {
		return h.internalError(state, err)
	}
	log.LogUpstreamLatency(result.StatusCode, float64(state.upstream.Microseconds())/1000)

	if !result.OK() {
		state.log.Outcome = OutcomeUpstreamError
		state.log.Error = fmt.Sprintf("upstream status %d", result.StatusCode)
		detail := string(result.Body)
		return errorResponse(http.StatusBadGateway, "Upstream API error", &detail)
	}

	content, err := result.Content()
	if err != nil {
		return h.internalError(state, err)
	}

	tagList, outcome := tags.FromContent(content)
	state.log.Outcome = OutcomeOK
	state.log.TagCount = len(tagList)
	state.log.Fallback = outcome == tags.Unparseable
	if h.cache != nil {
		state.log.CacheStatus = "miss"
		h.cache.StoreAsync(query, tagList)
	}
	return tagsResponse(tagList)
}

// ServeHTTP adapts Handle to net/http. The body is taken from the body
// buffer middleware when present, otherwise read directly.
func (h *TagHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := middleware.BodyFromContext(r.Context())
	if body == nil && r.Method == http.MethodPost && r.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(r.Body, middleware.MaxBodyBytes))
	}

	resp := h.Handle(r.Context(), Request{
		Method:    r.Method,
		Body:      body,
		RequestID: logger.RequestIDFromContext(r.Context()),
	})

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func (h *TagHandler) lookupCache(ctx context.Context, log *logger.Logger, query models.Query) ([]string, bool) {
	if h.cache == nil {
		return nil, false
	}
	cached, hit, err := h.cache.Lookup(ctx, query)
	if err != nil {
		// Degrade to a miss.
		log.Warn("cache lookup failed", "error", err.Error())
		return nil, false
	}
	return cached, hit
}

func (h *TagHandler) internalError(state *requestState, err error) Response {
	state.log.Outcome = OutcomeInternalError
	state.log.Error = err.Error()
	return errorResponse(http.StatusInternalServerError, "internal_error", nil)
}

func (h *TagHandler) finish(log *logger.Logger, state *requestState, resp Response) {
	state.log.Status = resp.StatusCode
	state.log.TotalLatencyMs = float64(time.Since(state.start).Microseconds()) / 1000
	state.log.UpstreamMs = float64(state.upstream.Microseconds()) / 1000
	log.LogRequest(state.log)
	Record(state.log.Outcome, state.log.CacheStatus == "hit", state.log.Fallback, int64(state.log.TotalLatencyMs))
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrInputTooLong):
		return "Input too long"
	default:
		return "Missing query"
	}
}

func tagsResponse(tagList []string) Response {
	if tagList == nil {
		tagList = []string{}
	}
	return jsonResponse(http.StatusOK, tagsBody{Tags: tagList})
}

func errorResponse(statusCode int, message string, detail *string) Response {
	return jsonResponse(statusCode, errorBody{Error: message, Detail: detail})
}

func jsonResponse(statusCode int, v any) Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		// Only strings and string slices are encoded here.
		panic(fmt.Sprintf("encode response: %v", err))
	}
	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       bytes.TrimRight(buf.Bytes(), "\n"),
	}
}

// HealthHandler reports liveness and, when a cache is configured, its
// reachability.
func HealthHandler(tagCache interface{ IsHealthy(context.Context) bool }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status string `json:"status"`
			Cache  string `json:"cache"`
		}{
			Status: "healthy",
			Cache:  "disabled",
		}

		if tagCache != nil {
			status.Cache = "connected"
			if !tagCache.IsHealthy(r.Context()) {
				status.Status = "degraded"
				status.Cache = "disconnected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "healthy" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	}
}
