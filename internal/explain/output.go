package explain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anthropicapi "github.com/tjfontaine/api-explainer/internal/api/anthropic"
	"github.com/tjfontaine/api-explainer/internal/domain"
)

// FallbackNarrative is returned when the model output cannot be trusted.
const FallbackNarrative = "We sent a request and received a response. (AI returned unparseable JSON.)"

// FallbackResult returns the guaranteed safe explanation.
func FallbackResult() domain.ExplainResult {
	return domain.ExplainResult{
		Narrative: FallbackNarrative,
		KeyValues: []domain.KeyValueFact{},
		Timeline: []domain.TimelineStep{
			{Step: "request_sent"},
			{Step: "response_ok"},
		},
		Flags: []string{FlagLLMParseFailure},
	}
}

// ValidateOutput extracts the generated text from a provider success body
// and parses it as an explanation. When anything does not conform the
// fallback result is returned, degraded is true and reason says why.
func ValidateOutput(raw []byte) (result domain.ExplainResult, degraded bool, reason error) {
	r, err := parseOutput(raw)
	if err != nil {
		return FallbackResult(), true, err
	}
	return r, false, nil
}

func parseOutput(raw []byte) (domain.ExplainResult, error) {
	var resp anthropicapi.MessagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.ExplainResult{}, fmt.Errorf("decode provider response: %w", err)
	}

	text := stripFence(resp.FirstText())
	if text == "" {
		return domain.ExplainResult{}, errors.New("empty model output")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return domain.ExplainResult{}, fmt.Errorf("decode model output: %w", err)
	}
	if dec.More() {
		return domain.ExplainResult{}, errors.New("trailing data after model output")
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return domain.ExplainResult{}, errors.New("model output is not an object")
	}
	return resultFromObject(obj)
}

// stripFence removes a surrounding ``` or ```json code fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return ""
	}
	text = text[nl+1:]
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// resultFromObject applies the explanation shape. Unknown keys are dropped,
// duplicate flags keep their first occurrence and sequences beyond the size
// limits are truncated.
func resultFromObject(obj map[string]any) (domain.ExplainResult, error) {
	var r domain.ExplainResult

	narrative, ok := obj["narrative"].(string)
	if !ok {
		return r, errors.New("narrative must be a string")
	}
	r.Narrative = narrative

	if raw, present := obj["key_values"]; present {
		items, ok := raw.([]any)
		if !ok {
			return r, errors.New("key_values must be an array")
		}
		for i, item := range items {
			kv, err := factFromObject(item)
			if err != nil {
				return r, fmt.Errorf("key_values[%d]: %w", i, err)
			}
			r.KeyValues = append(r.KeyValues, kv)
		}
	}

	if raw, present := obj["timeline"]; present {
		items, ok := raw.([]any)
		if !ok {
			return r, errors.New("timeline must be an array")
		}
		for i, item := range items {
			step, err := stepFromObject(item)
			if err != nil {
				return r, fmt.Errorf("timeline[%d]: %w", i, err)
			}
			r.Timeline = append(r.Timeline, step)
		}
	}

	if raw, present := obj["flags"]; present {
		items, ok := raw.([]any)
		if !ok {
			return r, errors.New("flags must be an array")
		}
		seen := make(map[string]bool, len(items))
		for i, item := range items {
			flag, ok := item.(string)
			if !ok {
				return r, fmt.Errorf("flags[%d] must be a string", i)
			}
			if seen[flag] {
				continue
			}
			seen[flag] = true
			r.Flags = append(r.Flags, flag)
		}
	}

	if len(r.KeyValues) > domain.MaxKeyValues {
		r.KeyValues = r.KeyValues[:domain.MaxKeyValues]
	}
	if len(r.Timeline) > domain.MaxTimelineSize {
		r.Timeline = r.Timeline[:domain.MaxTimelineSize]
	}
	r.Normalize()
	return r, nil
}

func factFromObject(item any) (domain.KeyValueFact, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return domain.KeyValueFact{}, errors.New("must be an object")
	}
	label, ok := obj["label"].(string)
	if !ok || label == "" {
		return domain.KeyValueFact{}, errors.New("label must be a non-empty string")
	}
	raw, present := obj["value"]
	if !present {
		return domain.KeyValueFact{}, errors.New("value is required")
	}
	value, ok := domain.ScalarOf(raw)
	if !ok {
		return domain.KeyValueFact{}, errors.New("value must be a string, number, boolean or null")
	}
	return domain.KeyValueFact{Label: label, Value: value}, nil
}

func stepFromObject(item any) (domain.TimelineStep, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return domain.TimelineStep{}, errors.New("must be an object")
	}
	step, ok := obj["step"].(string)
	if !ok || step == "" {
		return domain.TimelineStep{}, errors.New("step must be a non-empty string")
	}
	ts := domain.TimelineStep{Step: step}
	if raw, present := obj["detail"]; present {
		detail, ok := raw.(string)
		if !ok {
			return domain.TimelineStep{}, errors.New("detail must be a string")
		}
		ts.Detail = detail
	}
	return ts, nil
}

