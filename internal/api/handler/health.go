package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"

	defaultReadyTimeout = 2 * time.Second
)

// Checker は依存先1つの疎通確認
type Checker func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Checker
	timeout time.Duration
}

// NewHealthHandler は /ready で確認する依存先（名前 → 確認関数）を受け取る
func NewHealthHandler(checks map[string]Checker) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: defaultReadyTimeout}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check はプロセスが応答できることだけを返す（依存先は見ない）
// @Summary ヘルスチェック
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    statusOK,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Ready は全依存先を並行に確認し、1つでも失敗すれば503を返す
// @Summary レディネスチェック
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		healthy = true
		g       errgroup.Group
	)
	for name, check := range h.checks {
		g.Go(func() error {
			result := statusOK
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			results[name] = result
			healthy = healthy && result == statusOK
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{Status: statusOK, Timestamp: time.Now().Format(time.RFC3339), Checks: results}
	code := http.StatusOK
	if !healthy {
		resp.Status = statusUnavailable
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}
