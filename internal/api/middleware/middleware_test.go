package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
)

func TestSetupMiddleware(t *testing.T) {
	e := echo.New()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	SetupMiddleware(e, m)

	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
	assert.NoError(t, err, "リクエストIDはUUIDで振られる")
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200")))
}

func TestSetupMiddleware_WithoutMetrics(t *testing.T) {
	e := echo.New()
	SetupMiddleware(e, nil)

	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_HandlesError(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger())
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestLogger_PropagatesRequestID(t *testing.T) {
	original := logger.Get()
	defer logger.Set(original)
	core, logs := observer.New(zapcore.InfoLevel)
	logger.Set(zap.New(core))

	e := echo.New()
	SetupMiddleware(e, nil)
	e.GET("/work", func(c echo.Context) error {
		logger.FromContext(c.Request().Context()).Info("処理中")
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/work", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	handlerLogs := logs.FilterMessage("処理中").All()
	require.Len(t, handlerLogs, 1)
	assert.Equal(t, "req-123", handlerLogs[0].ContextMap()["request_id"])

	accessLogs := logs.FilterMessage("request completed").All()
	require.Len(t, accessLogs, 1)
	assert.Equal(t, "req-123", accessLogs[0].ContextMap()["request_id"])
}

func TestRequestLogger_RecoversPanic(t *testing.T) {
	e := echo.New()
	SetupMiddleware(e, nil)
	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPrometheusMiddleware(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := echo.New()
	e.Use(PrometheusMiddleware(m))

	e.GET("/api/v1/bookings/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})
	e.GET("/error", func(c echo.Context) error {
		return errors.New("unexpected")
	})
	e.GET("/conflict", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	})

	for _, path := range []string{"/api/v1/bookings/a", "/api/v1/bookings/b", "/error", "/conflict"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	// ルート定義単位で集計される
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/bookings/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/error", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/conflict", "409")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight), "完了したリクエストは処理中に残らない")
}

func TestPrometheusMiddleware_InFlight(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := echo.New()
	e.Use(PrometheusMiddleware(m))

	var during float64
	e.GET("/slow", func(c echo.Context) error {
		during = testutil.ToFloat64(m.HTTPRequestsInFlight)
		return c.NoContent(http.StatusNoContent)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Equal(t, 1.0, during)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight))
}
