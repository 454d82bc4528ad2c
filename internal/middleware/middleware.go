package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/metrics"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

// Middleware runs trace injection, bearer auth and the per-IP limiter in
// front of every wrapped handler.
type Middleware struct {
	authToken  string
	authBypass bool
	limiter    *IPRateLimiter
	logger     *logger_i.Logger
}

func New(settings config.Settings) *Middleware {
	logger := logger_i.NewLogger("middleware")
	if settings.NoAuthBypass {
		logger.Warn("auth_bypass_enabled")
	}
	limit, burst := settings.HTTPRateLimit, settings.HTTPRateBurst
	if limit <= 0 {
		limit = config.RATE_LIMIT_PER_SECOND
	}
	if burst <= 0 {
		burst = config.BURST_RATE_LIMIT_PER_SECOND
	}
	return &Middleware{
		authToken:  settings.AuthToken,
		authBypass: settings.NoAuthBypass,
		limiter:    NewIPRateLimiter(rate.Limit(limit), burst),
		logger:     logger,
	}
}

func (m *Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := m.processRequest(requestResponseStruct{req: r, writer: rec, logger: m.logger})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
		} else {
			next(rec, re.req)
		}
		metrics.HttpRequestsTotal.WithLabelValues(routeLabel(r), strconv.Itoa(rec.Status)).Inc()
	}
}

// WrapHandler is Wrap for mounted http.Handlers such as the MCP endpoint.
func (m *Middleware) WrapHandler(next http.Handler) http.HandlerFunc {
	return m.Wrap(next.ServeHTTP)
}

func (m *Middleware) processRequest(re requestResponseStruct) requestResponseStruct {
	re = injectTrace(re)
	re.logger.Debug("request_received", "method", re.req.Method, "path", re.req.URL.Path)
	re = m.authenticate(re)
	if re.badRequest.isBadRequest {
		return re
	}
	return m.rateLimiter(re)
}

// routeLabel prefers the chi pattern so ids do not explode the label set.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
