package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{input: `{"isERD":true}`, expected: `{"isERD":true}`},
		{input: "```json\n{\"isERD\":true}\n```", expected: `{"isERD":true}`},
		{input: "```\n{\"isERD\":true}\n```", expected: `{"isERD":true}`},
		{input: "  ```JSON\n{\"a\":1}\n```  ", expected: `{"a":1}`},
		{input: "```{\"isERD\":false}```", expected: `{"isERD":false}`},
	}
	for _, tc := range cases {
		require.Equal(t, tc.expected, StripCodeFence(tc.input), "input %q", tc.input)
	}
}

func TestParseERDDetection(t *testing.T) {
	raw := "```json\n" + `{
	  "isERD": true,
	  "reason": "",
	  "elements": [
	    {"name": "Student", "type": "entity", "subType": "strong", "confidence": 98},
	    {"name": "Enrols", "type": "relationship", "subType": "many-to-many", "confidence": 91, "from": "Student", "to": "Course"},
	    {"name": "student_id", "type": "attribute", "subType": "primary_key", "confidence": 99.5, "belongsTo": "Student", "belongsToType": "entity"}
	  ]
	}` + "\n```"

	result, err := ParseERDDetection([]byte(raw))
	require.NoError(t, err)
	require.True(t, result.IsERD)
	require.Len(t, result.Elements, 3)
	require.Equal(t, "Enrols", result.Elements[1].Name)
	require.Equal(t, "Course", result.Elements[1].To)
	require.InDelta(t, 99.5, result.Elements[2].Confidence, 0.001)
}

func TestParseERDDetectionNotERD(t *testing.T) {
	result, err := ParseERDDetection([]byte(`{"isERD": false, "reason": "this is a flowchart"}`))
	require.NoError(t, err)
	require.False(t, result.IsERD)
	require.Equal(t, "this is a flowchart", result.Reason)
	require.Empty(t, result.Elements)
}

func TestParseERDDetectionRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"the image shows an ERD",
		`{"reason": "missing flag"}`,
		`{"isERD": true, "elements": [{"name": "X", "type": "table"}]}`,
		`{"isERD": true, "elements": [{"name": "X", "type": "entity", "confidence": 140}]}`,
	}
	for _, input := range inputs {
		_, err := ParseERDDetection([]byte(input))
		require.ErrorIs(t, err, ErrMalformedResponse, "input %q", input)
	}
}

func TestParseRubricDetection(t *testing.T) {
	result, err := ParseRubricDetection([]byte(`{"isERDRubric": true, "structured": {"criteria": [{"name": "Entities", "marks": 10}]}}`))
	require.NoError(t, err)
	require.True(t, result.IsERDRubric)
	require.JSONEq(t, `{"criteria": [{"name": "Entities", "marks": 10}]}`, string(result.Structured))

	result, err = ParseRubricDetection([]byte(`{"isERDRubric": false, "reason": "essay marking guide", "structured": null}`))
	require.NoError(t, err)
	require.False(t, result.IsERDRubric)
	require.Nil(t, result.Structured)

	_, err = ParseRubricDetection([]byte(`{"isERDRubric": "yes"}`))
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClassifyTransportError(t *testing.T) {
	require.ErrorIs(t, classifyTransportError(context.DeadlineExceeded), ErrTimeout)
	require.ErrorIs(t, classifyTransportError(fmt.Errorf("post: %w", context.DeadlineExceeded)), ErrTimeout)
	require.ErrorIs(t, classifyTransportError(errors.New("connection refused")), ErrUnavailable)

	malformed := fmt.Errorf("%w: bad", ErrMalformedResponse)
	require.Same(t, malformed, classifyTransportError(malformed))

	require.Equal(t, "timeout", failureKind(classifyTransportError(context.DeadlineExceeded)))
	require.Equal(t, "malformed", failureKind(malformed))
	require.Equal(t, "unavailable", failureKind(errors.New("boom")))
}
