package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/theblitlabs/sandbox-provisioner/internal/core/models"
	"github.com/theblitlabs/sandbox-provisioner/internal/telemetry"
	"github.com/theblitlabs/sandbox-provisioner/pkg/logger"
)

const (
	dataPath        = "/api/data"
	maxRelayedBytes = 10 << 20
)

// RelayService forwards a single data request to a sandboxed application.
type RelayService struct {
	client *http.Client
	log    zerolog.Logger
}

func NewRelayService(timeout time.Duration) *RelayService {
	return NewRelayServiceWithClient(&http.Client{Timeout: timeout})
}

func NewRelayServiceWithClient(client *http.Client) *RelayService {
	return &RelayService{
		client: client,
		log:    logger.WithComponent("relay"),
	}
}

// Fetch performs GET <sandboxURL>/api/data and returns the JSON body. Every
// failure wraps models.ErrDownstreamFailed, except an empty URL which is
// models.ErrSandboxURLRequired and makes no request.
func (s *RelayService) Fetch(ctx context.Context, sandboxURL string) (json.RawMessage, error) {
	if strings.TrimSpace(sandboxURL) == "" {
		return nil, models.ErrSandboxURLRequired
	}

	start := time.Now()
	body, err := s.fetch(ctx, sandboxURL)

	status := "ok"
	if err != nil {
		status = "error"
		telemetry.RecordError("downstream", "relay")
		s.log.Error().Err(err).Str("sandbox_url", sandboxURL).Msg("Error calling sandboxed API")
	}
	telemetry.RecordRelay(status, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDownstreamFailed, err)
	}
	return body, nil
}

func (s *RelayService) fetch(ctx context.Context, sandboxURL string) (json.RawMessage, error) {
	base, err := url.Parse(strings.TrimRight(sandboxURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid sandbox url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("invalid sandbox url %q", sandboxURL)
	}
	endpoint := base.String() + dataPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	s.log.Debug().Str("endpoint", endpoint).Int("bytes", len(body)).Msg("Relayed sandbox data")
	return json.RawMessage(body), nil
}
