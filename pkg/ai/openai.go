package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const providerOpenAI = "openai"

// OpenAIConfig defines configuration options for the OpenAI-compatible detector.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float32
	FetchTimeout time.Duration
	HTTPClient   *http.Client
	Transform    URLTransformer
	Logger       zerolog.Logger
}

// OpenAIDetector implements Detector against a vision-capable chat completion API.
type OpenAIDetector struct {
	client     *openai.Client
	httpClient *http.Client
	cfg        OpenAIConfig
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewOpenAIDetector builds a detector using the provided configuration.
func NewOpenAIDetector(cfg OpenAIConfig) (*OpenAIDetector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = httpClient

	return &OpenAIDetector{
		client:     openai.NewClientWithConfig(config),
		httpClient: httpClient,
		cfg:        cfg,
		tracer:     otel.Tracer("github.com/noah-isme/erducate-api/pkg/ai/openai"),
		logger:     cfg.Logger.With().Str("component", "openai_detector").Logger(),
	}, nil
}

// DetectERD fetches the answer-scheme image and asks the model to list its ERD elements.
func (d *OpenAIDetector) DetectERD(parent context.Context, imageURL string) (ERDDetection, error) {
	ctx, span := d.tracer.Start(parent, "openai.detect_erd", trace.WithAttributes(
		attribute.String("model", d.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		detectionDuration.WithLabelValues(providerOpenAI, "erd").Observe(time.Since(start).Seconds())
	}()

	source := imageURL
	if d.cfg.Transform != nil {
		source = d.cfg.Transform(imageURL)
	}

	dataURL, err := fetchImage(ctx, d.httpClient, source, d.cfg.FetchTimeout)
	if err != nil {
		return ERDDetection{}, d.fail(span, "erd", err)
	}

	content, err := d.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: erdSystemPrompt()},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: "Analyse this diagram and return JSON."},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		},
	})
	if err != nil {
		return ERDDetection{}, d.fail(span, "erd", err)
	}

	result, err := ParseERDDetection([]byte(content))
	if err != nil {
		d.logger.Warn().Str("raw", truncate(content, 512)).Msg("unparseable erd detection response")
		return ERDDetection{}, d.fail(span, "erd", err)
	}

	span.SetAttributes(
		attribute.Bool("erd.is_erd", result.IsERD),
		attribute.Int("erd.elements", len(result.Elements)),
	)
	return result, nil
}

// DetectRubric asks the model whether the text is an ERD marking rubric and to structure it.
func (d *OpenAIDetector) DetectRubric(parent context.Context, rubricText string) (RubricDetection, error) {
	ctx, span := d.tracer.Start(parent, "openai.detect_rubric", trace.WithAttributes(
		attribute.String("model", d.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		detectionDuration.WithLabelValues(providerOpenAI, "rubric").Observe(time.Since(start).Seconds())
	}()

	content, err := d.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: rubricSystemPrompt()},
		{Role: openai.ChatMessageRoleUser, Content: "# Rubric\n" + rubricText + "\nReturn JSON."},
	})
	if err != nil {
		return RubricDetection{}, d.fail(span, "rubric", err)
	}

	result, err := ParseRubricDetection([]byte(content))
	if err != nil {
		d.logger.Warn().Str("raw", truncate(content, 512)).Msg("unparseable rubric detection response")
		return RubricDetection{}, d.fail(span, "rubric", err)
	}

	span.SetAttributes(attribute.Bool("rubric.is_erd_rubric", result.IsERDRubric))
	return result, nil
}

func (d *OpenAIDetector) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          d.cfg.Model,
		MaxTokens:      d.cfg.MaxTokens,
		Temperature:    d.cfg.Temperature,
		Messages:       messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", classifyTransportError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

func (d *OpenAIDetector) fail(span trace.Span, operation string, err error) error {
	detectionFailures.WithLabelValues(providerOpenAI, operation, failureKind(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func erdSystemPrompt() string {
	return "You review entity-relationship diagrams for a database course. Decide whether the image is an ERD. " +
		"Respond with a JSON object: {\"isERD\": boolean, \"reason\": string, \"elements\": [...]}. " +
		"When isERD is false, explain why in reason and omit elements. " +
		"Each element has name, type (entity|relationship|attribute), subType, confidence (0-100). " +
		"Entity subType: strong|weak. Relationship subType: one-to-one|one-to-many|many-to-many, with from and to naming entities. " +
		"Attribute subType: primary_key|foreign_key|regular|derived|multivalued|composite, with belongsTo naming its owner and " +
		"belongsToType (entity|relationship|attribute)."
}

func rubricSystemPrompt() string {
	return "You check marking rubrics for ERD exercises. Decide whether the text is a rubric for grading an " +
		"entity-relationship diagram. Respond with a JSON object: {\"isERDRubric\": boolean, \"reason\": string, " +
		"\"structured\": {\"criteria\": [{\"name\": string, \"marks\": number, \"description\": string}]}}. " +
		"Omit structured when isERDRubric is false."
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
