package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultFetchTimeout bounds downloading the answer-scheme image before it is sent to the model.
const DefaultFetchTimeout = 8 * time.Second

const maxImageBytes = 8 << 20

var (
	detectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "erducate",
		Subsystem: "ai",
		Name:      "detection_duration_seconds",
		Help:      "Duration of AI detection calls",
	}, []string{"provider", "operation"})

	detectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "erducate",
		Subsystem: "ai",
		Name:      "detection_failures_total",
		Help:      "Number of failed AI detection calls",
	}, []string{"provider", "operation", "kind"})
)

// URLTransformer rewrites an image URL before it is fetched, e.g. to request a smaller derivative.
type URLTransformer func(string) string

// fetchImage downloads the image under its own deadline and returns it as a data URL.
func fetchImage(parent context.Context, client *http.Client, url string, budget time.Duration) (string, error) {
	if budget <= 0 {
		budget = DefaultFetchTimeout
	}

	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build image request: %v", ErrUnavailable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: image fetch returned status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", classifyTransportError(err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("%w: image exceeds %d bytes", ErrUnavailable, maxImageBytes)
	}

	contentType := mimetype.Detect(data).String()
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: fetched content is %s, not an image", ErrUnavailable, contentType)
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
