package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const erdDetectionSchema = `{
  "type": "object",
  "required": ["isERD"],
  "properties": {
    "isERD": {"type": "boolean"},
    "reason": {"type": ["string", "null"]},
    "elements": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "id": {"type": ["string", "null"]},
          "name": {"type": "string", "minLength": 1},
          "type": {"enum": ["entity", "relationship", "attribute"]},
          "subType": {"type": ["string", "null"]},
          "confidence": {"type": "number", "minimum": 0, "maximum": 100},
          "from": {"type": ["string", "null"]},
          "to": {"type": ["string", "null"]},
          "belongsTo": {"type": ["string", "null"]},
          "belongsToType": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

const rubricDetectionSchema = `{
  "type": "object",
  "required": ["isERDRubric"],
  "properties": {
    "isERDRubric": {"type": "boolean"},
    "reason": {"type": ["string", "null"]},
    "structured": {}
  }
}`

var (
	erdSchema    = jsonschema.MustCompileString("erd_detection.schema.json", erdDetectionSchema)
	rubricSchema = jsonschema.MustCompileString("rubric_detection.schema.json", rubricDetectionSchema)
)

// StripCodeFence removes a surrounding markdown code fence, with or without a language tag.
func StripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		firstLine := strings.TrimSpace(trimmed[:newline])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// ParseERDDetection decodes and validates an ERD detection response.
func ParseERDDetection(raw []byte) (ERDDetection, error) {
	var result ERDDetection
	if err := decodeValidated(raw, erdSchema, &result); err != nil {
		return ERDDetection{}, err
	}
	return result, nil
}

// ParseRubricDetection decodes and validates a rubric detection response.
func ParseRubricDetection(raw []byte) (RubricDetection, error) {
	var result RubricDetection
	if err := decodeValidated(raw, rubricSchema, &result); err != nil {
		return RubricDetection{}, err
	}
	if bytes.Equal(bytes.TrimSpace(result.Structured), []byte("null")) {
		result.Structured = nil
	}
	return result, nil
}

func decodeValidated(raw []byte, schema *jsonschema.Schema, target interface{}) error {
	content := []byte(StripCodeFence(string(raw)))
	if len(content) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	var document interface{}
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := json.Unmarshal(content, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return nil
}

// classifyTransportError maps a transport failure to ErrTimeout or ErrUnavailable.
func classifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "unavailable"
	}
}
