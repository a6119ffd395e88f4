package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/config"
	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/services"
)

type requestKey struct{}

func staticOptions() (services.ProvisionOptions, error) {
	return services.ProvisionOptions{
		Sandbox: config.SandboxConfig{SourceRepo: "https://github.com/example/flask-api.git", Port: 5000},
		Agent:   config.AgentConfig{APIKey: "dd-secret"},
	}, nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestInitSandbox_Success(t *testing.T) {
	provisioner := new(MockProvisionService)
	provisioner.On("Provision", mock.Anything, mock.Anything).
		Return(&models.ProvisionResult{URL: "https://sb-1.sandbox.test", SandboxID: "sb-1"}, nil)

	h := NewSandboxHandler(provisioner, new(MockRelayService), staticOptions)
	rec := httptest.NewRecorder()
	h.InitSandbox(rec, httptest.NewRequest(http.MethodPost, "/api/sandbox-init", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"url": "https://sb-1.sandbox.test"}, decodeBody(t, rec))
	provisioner.AssertExpectations(t)
}

func TestInitSandbox_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "configuration",
			err:     models.NewConfigurationError("DD_API_KEY"),
			message: "DD_API_KEY environment variable is not set",
		},
		{
			name:    "dependency install",
			err:     models.NewDependencyInstallError(errors.New("pip exited with code 1")),
			message: "Failed to install Python dependencies",
		},
		{
			name:    "environment creation hides cause",
			err:     models.NewEnvironmentCreationError(errors.New("quota exceeded")),
			message: "Failed to create sandbox",
		},
		{
			name:    "unexpected error",
			err:     errors.New("boom"),
			message: "Failed to create sandbox",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provisioner := new(MockProvisionService)
			provisioner.On("Provision", mock.Anything, mock.Anything).Return(nil, tt.err)

			h := NewSandboxHandler(provisioner, new(MockRelayService), staticOptions)
			rec := httptest.NewRecorder()
			h.InitSandbox(rec, httptest.NewRequest(http.MethodPost, "/api/sandbox-init", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, map[string]string{"error": tt.message}, decodeBody(t, rec))
		})
	}
}

func TestInitSandbox_SurvivesClientDisconnect(t *testing.T) {
	provisioner := new(MockProvisionService)
	provisioner.On("Provision", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil && ctx.Value(requestKey{}) == "req-1"
	}), mock.Anything).Return(&models.ProvisionResult{URL: "https://sb-1.sandbox.test"}, nil)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), requestKey{}, "req-1"))
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/sandbox-init", nil).WithContext(ctx)

	h := NewSandboxHandler(provisioner, new(MockRelayService), staticOptions)
	rec := httptest.NewRecorder()
	h.InitSandbox(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	provisioner.AssertExpectations(t)
}

func TestInitSandbox_OptionsError(t *testing.T) {
	provisioner := new(MockProvisionService)
	failing := func() (services.ProvisionOptions, error) {
		return services.ProvisionOptions{}, errors.New("bad config file")
	}

	h := NewSandboxHandler(provisioner, new(MockRelayService), failing)
	rec := httptest.NewRecorder()
	h.InitSandbox(rec, httptest.NewRequest(http.MethodPost, "/api/sandbox-init", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	provisioner.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
}

func TestCall_Success(t *testing.T) {
	relay := new(MockRelayService)
	relay.On("Fetch", mock.Anything, "http://sandbox.test").Return(json.RawMessage(`{"data":[1,2]}`), nil)

	h := NewSandboxHandler(new(MockProvisionService), relay, staticOptions)
	rec := httptest.NewRecorder()
	h.Call(rec, httptest.NewRequest(http.MethodPost, "/api/call", strings.NewReader(`{"sandboxUrl":"http://sandbox.test"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[1,2]}`, rec.Body.String())
}

func TestCall_MissingSandboxURL(t *testing.T) {
	bodies := []string{`{}`, `{"sandboxUrl":""}`, `{"sandboxUrl":null}`}

	for _, body := range bodies {
		relay := new(MockRelayService)
		h := NewSandboxHandler(new(MockProvisionService), relay, staticOptions)

		rec := httptest.NewRecorder()
		h.Call(rec, httptest.NewRequest(http.MethodPost, "/api/call", strings.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, map[string]string{"error": "sandboxUrl is required"}, decodeBody(t, rec))
		relay.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	}
}

func TestCall_UnreadableBody(t *testing.T) {
	bodies := []string{``, `not json`, `{"sandboxUrl":5}`}

	for _, body := range bodies {
		relay := new(MockRelayService)
		h := NewSandboxHandler(new(MockProvisionService), relay, staticOptions)

		rec := httptest.NewRecorder()
		h.Call(rec, httptest.NewRequest(http.MethodPost, "/api/call", strings.NewReader(body)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code, body)
		assert.Equal(t, map[string]string{"error": "Failed to fetch data from sandbox"}, decodeBody(t, rec))
		relay.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	}
}

func TestCall_WhitespaceURL(t *testing.T) {
	h := NewSandboxHandler(new(MockProvisionService), services.NewRelayService(time.Second), staticOptions)

	rec := httptest.NewRecorder()
	h.Call(rec, httptest.NewRequest(http.MethodPost, "/api/call", strings.NewReader(`{"sandboxUrl":"  "}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCall_DownstreamUnavailable(t *testing.T) {
	var calls int32
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer downstream.Close()

	h := NewSandboxHandler(new(MockProvisionService), services.NewRelayService(5*time.Second), staticOptions)
	rec := httptest.NewRecorder()
	body := `{"sandboxUrl":"` + downstream.URL + `"}`
	h.Call(rec, httptest.NewRequest(http.MethodPost, "/api/call", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Failed to fetch data from sandbox"}, decodeBody(t, rec))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
