package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zapcore"
)

func TestSetupLoggerLevel(t *testing.T) {
	logger := SetupLogger("bookingservice", "debug")
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger = SetupLogger("bookingservice", "nonsense")
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestSetupTracerExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := SetupTracer(context.Background(), "bookingservice", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), "probe")
}

func TestMetricsRouter(t *testing.T) {
	healthy := true
	h := MetricsRouter(map[string]ReadyCheck{
		"postgres": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("down")
		},
	})

	for path, want := range map[string]int{"/healthz": http.StatusOK, "/readyz": http.StatusOK, "/metrics": http.StatusOK} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, rec.Code, path)
	}

	healthy = false
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "postgres")
}
