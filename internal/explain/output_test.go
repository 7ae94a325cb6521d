package explain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/api-explainer/internal/domain"
)

// messagesBody wraps model text in a provider success envelope.
func messagesBody(t *testing.T, text string) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"id":      "msg_1",
		"type":    "message",
		"role":    "assistant",
		"model":   "claude-3-5-haiku-latest",
		"content": []map[string]any{{"type": "text", "text": text}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestValidateOutput_Passthrough(t *testing.T) {
	text := `{
		"narrative": "You created a $19.99 charge.",
		"key_values": [{"label":"id","value":"ch_1"},{"label":"amount","value":1999},{"label":"refunded","value":false},{"label":"note","value":null}],
		"timeline": [{"step":"request_sent","detail":"POST /charges"},{"step":"response_ok"}],
		"flags": ["test-mode"],
		"confidence": 0.9
	}`

	got, degraded, reason := ValidateOutput(messagesBody(t, text))
	if degraded {
		t.Fatalf("expected conforming output, got %v", reason)
	}

	want := domain.ExplainResult{
		Narrative: "You created a $19.99 charge.",
		KeyValues: []domain.KeyValueFact{
			{Label: "id", Value: domain.StringValue("ch_1")},
			{Label: "amount", Value: domain.NumberValue(1999)},
			{Label: "refunded", Value: domain.BoolValue(false)},
			{Label: "note", Value: domain.NullValue()},
		},
		Timeline: []domain.TimelineStep{
			{Step: "request_sent", Detail: "POST /charges"},
			{Step: "response_ok"},
		},
		Flags: []string{"test-mode"},
	}
	if diff := cmp.Diff(want, got, fieldValues); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateOutput_DefaultsSequences(t *testing.T) {
	got, degraded, _ := ValidateOutput(messagesBody(t, `{"narrative":"Short."}`))
	if degraded {
		t.Fatal("expected conforming output")
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"narrative":"Short.","key_values":[],"timeline":[],"flags":[]}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestValidateOutput_Fenced(t *testing.T) {
	text := "```json\n{\"narrative\":\"Fenced.\",\"flags\":[]}\n```"

	got, degraded, _ := ValidateOutput(messagesBody(t, text))
	if degraded {
		t.Fatal("fenced JSON should be accepted")
	}
	if got.Narrative != "Fenced." {
		t.Errorf("Narrative = %q", got.Narrative)
	}
}

func TestValidateOutput_Truncates(t *testing.T) {
	text := `{"narrative":"Many.",
		"key_values":[{"label":"a","value":1},{"label":"b","value":2},{"label":"c","value":3},{"label":"d","value":4},{"label":"e","value":5},{"label":"f","value":6},{"label":"g","value":7}],
		"timeline":[{"step":"1"},{"step":"2"},{"step":"3"},{"step":"4"},{"step":"5"},{"step":"6"}]}`

	got, degraded, _ := ValidateOutput(messagesBody(t, text))
	if degraded {
		t.Fatal("expected conforming output")
	}
	if len(got.KeyValues) != domain.MaxKeyValues {
		t.Errorf("%d key values", len(got.KeyValues))
	}
	if len(got.Timeline) != domain.MaxTimelineSize {
		t.Errorf("%d timeline steps", len(got.Timeline))
	}
}

func TestValidateOutput_DedupesFlags(t *testing.T) {
	text := `{"narrative":"x","flags":["test-mode","idempotent","test-mode","idempotent","retry"]}`

	got, degraded, _ := ValidateOutput(messagesBody(t, text))
	if degraded {
		t.Fatal("expected conforming output")
	}
	if diff := cmp.Diff([]string{"test-mode", "idempotent", "retry"}, got.Flags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateOutput_Fallback(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"provider body not json", []byte(`<html>oops</html>`)},
		{"no content", []byte(`{"type":"message","content":[]}`)},
		{"non-json text", messagesBody(t, "Sure! Here is the explanation you asked for.")},
		{"missing narrative", messagesBody(t, `{"key_values":[]}`)},
		{"narrative not string", messagesBody(t, `{"narrative":42}`)},
		{"key_values not array", messagesBody(t, `{"narrative":"x","key_values":{"id":"ch_1"}}`)},
		{"nested fact value", messagesBody(t, `{"narrative":"x","key_values":[{"label":"meta","value":{"a":1}}]}`)},
		{"fact value missing", messagesBody(t, `{"narrative":"x","key_values":[{"label":"id"}]}`)},
		{"empty label", messagesBody(t, `{"narrative":"x","key_values":[{"label":"","value":1}]}`)},
		{"step missing", messagesBody(t, `{"narrative":"x","timeline":[{"detail":"d"}]}`)},
		{"detail not string", messagesBody(t, `{"narrative":"x","timeline":[{"step":"s","detail":3}]}`)},
		{"flag not string", messagesBody(t, `{"narrative":"x","flags":[true]}`)},
		{"array document", messagesBody(t, `[{"narrative":"x"}]`)},
		{"trailing text", messagesBody(t, `{"narrative":"x"} and more`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, degraded, reason := ValidateOutput(tt.raw)
			if !degraded {
				t.Fatal("expected degraded result")
			}
			if reason == nil {
				t.Error("degraded result without a reason")
			}
			if diff := cmp.Diff(FallbackResult(), got, fieldValues); diff != "" {
				t.Errorf("fallback mismatch (-want +got):\n%s", diff)
			}
			if !got.HasFlag("llm-json-parse-failed") {
				t.Error("missing parse-failed flag")
			}
		})
	}
}

func TestFallbackResult_Independent(t *testing.T) {
	a := FallbackResult()
	a.Flags[0] = "mutated"

	if b := FallbackResult(); b.Flags[0] != FlagLLMParseFailure {
		t.Error("FallbackResult shares state between calls")
	}
}
