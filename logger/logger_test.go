package logger_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/nota-engine/config"
	"github.com/warp/nota-engine/logger"
)

func TestNew_FallsBackOnBadLevel(t *testing.T) {
	l, err := logger.New(&config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "loud", Format: "console"}})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestMiddleware_LogsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := middleware.RequestID(logger.Middleware(zap.New(core))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/cycles", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http_request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "/api/cycles", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}
