package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theblitlabs/sandbox-provisioner/internal/monitoring/health"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status health.Status
		code   int
	}{
		{"ok", health.StatusOK, http.StatusOK},
		{"warning", health.StatusWarning, http.StatusOK},
		{"error", health.StatusError, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := health.NewHealthChecker(0)
			defer checker.Stop()
			checker.Register("docker", func(context.Context) (health.Status, string) {
				return tt.status, "checked"
			})
			checker.CheckAll()

			rec := httptest.NewRecorder()
			NewHealthHandler(checker).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.code, rec.Code)

			var body healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			require.Contains(t, body.Components, "docker")
			assert.Equal(t, "checked", body.Components["docker"].Message)
		})
	}
}
