package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/testutil"
	pkgerrors "github.com/turtacn/substance-resolver/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func run(h gin.HandlerFunc, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	h(c)
	return w
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("1.2.3", CheckFunc{Component: "db", Fn: func(context.Context) error {
		return errors.New("down")
	}})
	w := run(h.Liveness, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	holder := substance.NewHolder(nil)
	h := NewHealthHandler("v", StoreChecker(holder), CheckFunc{Component: "redis", Fn: func(context.Context) error { return nil }})

	w := run(h.Readiness, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["reference_store"].Status)
	assert.Equal(t, "healthy", resp.Components["redis"].Status)

	holder.Swap(testutil.SampleStore(t))
	w = run(h.Readiness, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_DetailedDegraded(t *testing.T) {
	h := NewHealthHandler("v", CheckFunc{Component: "postgres", Fn: func(context.Context) error {
		return errors.New("connection refused")
	}})
	w := run(h.Detailed, "/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp DetailedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connection refused", resp.Components["postgres"].Error)
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"bad request keeps message", pkgerrors.New(pkgerrors.ErrCodeBadRequest, "missing").WithDetail("parameter=query"),
			http.StatusBadRequest, "COMMON_002", "missing: parameter=query"},
		{"store unavailable keeps message", pkgerrors.New(pkgerrors.ErrCodeStoreUnavailable, "reference store is not loaded"),
			http.StatusServiceUnavailable, "SUB_001", "reference store is not loaded"},
		{"internal is masked", pkgerrors.New(pkgerrors.ErrCodeDatabaseError, "pq: secret detail"),
			http.StatusInternalServerError, "COMMON_012", "database error"},
		{"plain error is internal", errors.New("boom"),
			http.StatusInternalServerError, "COMMON_001", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := run(func(c *gin.Context) { writeAppError(c, tt.err) }, "/")
			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.msg, body.Message)
		})
	}
}
