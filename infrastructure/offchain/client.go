// Package offchain is the HTTP client for the bundle metadata service.
package offchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	pkgerrors "artion-backend/pkg/errors"
)

const serviceName = "bundle-service"

const (
	createBundlePath = "/bundle/createBundle"
	removeBundlePath = "/bundle/removeBundle"
	statusSuccess    = "success"
)

var tracer = otel.Tracer("artion-backend/infrastructure/offchain")

// errServer marks failures that count against the circuit breaker: 5xx
// responses and transport errors, client timeouts included
var errServer = errors.New("bundle service server error")

// envelope is the response wrapper used by the bundle service
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type removeBundleRequest struct {
	BundleID string `json:"bundleID"`
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default breaker settings
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Client implements ports.BundleService over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

var _ ports.BundleService = (*Client)(nil)

// NewClient creates a bundle service client
func NewClient(baseURL string, timeout time.Duration, breaker BreakerConfig, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: breaker.MaxRequests,
		Interval:    breaker.Interval,
		Timeout:     breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Client errors are the caller's fault and do not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, errServer)
		},
	})
	return c
}

// CreateBundle registers a bundle and returns the id assigned by the service.
func (c *Client) CreateBundle(ctx context.Context, req ports.CreateBundleRequest, authToken string) (string, error) {
	ctx, span := tracer.Start(ctx, "offchain.CreateBundle")
	defer span.End()
	span.SetAttributes(
		attribute.String("bundle.name", req.Name),
		attribute.Int("bundle.items", len(req.Items)),
	)

	data, err := c.post(ctx, createBundlePath, req, authToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var bundleID string
	if err := json.Unmarshal(data, &bundleID); err != nil || bundleID == "" {
		err = pkgerrors.NewExternalError(serviceName, fmt.Errorf("response carries no bundle id: %s", string(data)))
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.String("bundle.id", bundleID))
	c.logger.Info("Bundle created", zap.String("bundle_id", bundleID), zap.Int("items", len(req.Items)))
	return bundleID, nil
}

// DeleteBundle removes a bundle created earlier
func (c *Client) DeleteBundle(ctx context.Context, bundleID string, authToken string) error {
	ctx, span := tracer.Start(ctx, "offchain.DeleteBundle")
	defer span.End()
	span.SetAttributes(attribute.String("bundle.id", bundleID))

	if _, err := c.post(ctx, removeBundlePath, removeBundleRequest{BundleID: bundleID}, authToken); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.logger.Info("Bundle removed", zap.String("bundle_id", bundleID))
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, authToken string) (json.RawMessage, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, path, body, authToken)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, pkgerrors.NewUnavailableError(serviceName).WithCause(err)
		case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
			return nil, pkgerrors.NewTimeoutError(serviceName + path).WithCause(err)
		}
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.NewExternalError(serviceName, err)
	}
	return result.(json.RawMessage), nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) do(ctx context.Context, path string, body interface{}, authToken string) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, errServer, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: failed to read response: %w", path, errServer, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%s: %w: status %d", path, errServer, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, pkgerrors.NewUnauthorizedError("bundle service rejected the auth token").
			WithDetail("status", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, pkgerrors.NewExternalError(serviceName, fmt.Errorf("%s: invalid response body: %w", path, err)).
			WithDetail("status", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || env.Status != statusSuccess {
		return nil, pkgerrors.NewExternalError(serviceName, fmt.Errorf("%s: status %d, %s: %s", path, resp.StatusCode, env.Status, string(env.Data))).
			WithDetail("status", resp.StatusCode)
	}
	return env.Data, nil
}
