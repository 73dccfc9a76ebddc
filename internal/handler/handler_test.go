package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"jutjubic/internal/domain"
	"jutjubic/internal/middleware"
	"jutjubic/internal/repository"
	"jutjubic/internal/service"
	"jutjubic/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopAudit struct {
	events []service.AuditEvent
}

func (a *nopAudit) LogEvent(_ context.Context, e service.AuditEvent) {
	a.events = append(a.events, e)
}

// withUser stands in for RequireAuth.
func withUser(user *domain.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, user.ID)
		c.Set(middleware.ContextUser, user)
		c.Next()
	}
}

func newTestUser(name, role string) *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		Email:    name + "@jutjubic.test",
		Username: name,
		Role:     role,
		IsActive: true,
	}
}

func newRedisLimiter(t *testing.T, policy service.RateLimitPolicy) (service.RateLimiter, *miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := repository.NewRateLimitRepository(rdb, logger.NewNop())
	return service.NewRateLimiter(repo, policy, logger.NewNop()), mr, rdb
}

func doJSON(r http.Handler, method, target string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func loginPolicy() service.RateLimitPolicy {
	return service.RateLimitPolicy{
		Name:         domain.RateLimitScopeLogin,
		Prefix:       service.LoginRateLimitPrefix,
		MaxAttempts:  5,
		Window:       time.Minute,
		FailOpen:     true,
		StoreTimeout: time.Second,
	}
}

func TestHealthHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := &stubPinger{}
	h := NewHealthHandler(db, rdb, logger.NewNop())
	r := gin.New()
	r.GET("/health", h.Check)

	if w := doJSON(r, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Errorf("healthy status = %d, want 200", w.Code)
	}

	db.err = context.DeadlineExceeded
	w := doJSON(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("db down status = %d, want 503", w.Code)
	}
	checks := decodeBody(t, w)["checks"].(map[string]interface{})
	if checks["database"] != "unavailable" || checks["redis"] != "ok" {
		t.Errorf("checks = %v", checks)
	}

	db.err = nil
	mr.Close()
	if w := doJSON(r, http.MethodGet, "/health", nil, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("redis down status = %d, want 503", w.Code)
	}
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(context.Context) error { return p.err }
