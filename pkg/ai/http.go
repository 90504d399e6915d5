package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	providerHTTP        = "http"
	maxGatewayBodyBytes = 1 << 20
)

// HTTPConfig configures the hosted detection gateway client.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Transform  URLTransformer
	Logger     zerolog.Logger
}

// HTTPDetector calls a hosted service exposing /detect-erd and /detect-rubric.
type HTTPDetector struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	xform   URLTransformer
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewHTTPDetector validates the configuration and constructs the client.
func NewHTTPDetector(cfg HTTPConfig) (*HTTPDetector, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("detection gateway url is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPDetector{
		baseURL: base,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		client:  client,
		xform:   cfg.Transform,
		tracer:  otel.Tracer("github.com/noah-isme/erducate-api/pkg/ai/http"),
		logger:  cfg.Logger.With().Str("component", "http_detector").Logger(),
	}, nil
}

// DetectERD posts the (transformed) image URL to /detect-erd.
func (d *HTTPDetector) DetectERD(parent context.Context, imageURL string) (ERDDetection, error) {
	ctx, span := d.tracer.Start(parent, "gateway.detect_erd")
	defer span.End()

	source := imageURL
	if d.xform != nil {
		source = d.xform(imageURL)
	}

	body, err := d.post(ctx, "erd", "/detect-erd", map[string]string{"imageUrl": source})
	if err != nil {
		return ERDDetection{}, d.fail(span, "erd", err)
	}

	result, err := ParseERDDetection(body)
	if err != nil {
		return ERDDetection{}, d.fail(span, "erd", err)
	}

	span.SetAttributes(attribute.Bool("erd.is_erd", result.IsERD), attribute.Int("erd.elements", len(result.Elements)))
	return result, nil
}

// DetectRubric posts the rubric text to /detect-rubric.
func (d *HTTPDetector) DetectRubric(parent context.Context, rubricText string) (RubricDetection, error) {
	ctx, span := d.tracer.Start(parent, "gateway.detect_rubric")
	defer span.End()

	body, err := d.post(ctx, "rubric", "/detect-rubric", map[string]string{"rubricText": rubricText})
	if err != nil {
		return RubricDetection{}, d.fail(span, "rubric", err)
	}

	result, err := ParseRubricDetection(body)
	if err != nil {
		return RubricDetection{}, d.fail(span, "rubric", err)
	}

	span.SetAttributes(attribute.Bool("rubric.is_erd_rubric", result.IsERDRubric))
	return result, nil
}

func (d *HTTPDetector) post(parent context.Context, operation, path string, payload interface{}) ([]byte, error) {
	start := time.Now()
	defer func() {
		detectionDuration.WithLabelValues(providerHTTP, operation).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode detection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBodyBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		d.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("detection gateway returned error status")
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}

	return body, nil
}

func (d *HTTPDetector) fail(span trace.Span, operation string, err error) error {
	detectionFailures.WithLabelValues(providerHTTP, operation, failureKind(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
