package explain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tjfontaine/api-explainer/internal/domain"
	"github.com/tjfontaine/api-explainer/internal/provider/anthropic"
)

// SystemPrompt states the output contract to the model.
const SystemPrompt = `You are an API demo explainer.
Return a STRICT JSON object with keys: narrative (string), key_values (list of {label,value}),
timeline (list of {step,detail}), flags (list of strings).
- Keep narrative in layman terms (1–2 sentences).
- key_values: pick 3–6 salient fields (ids, totals, statuses).
- timeline: 3–5 steps max, e.g., request_sent -> processing -> response_ok/response_error.
Do not include any additional keys.`

// BuildPrompt renders the single user message describing the interaction.
func BuildPrompt(req *domain.ExplainRequest) anthropic.Prompt {
	ep := req.Endpoint

	status := "N/A"
	if req.Status != nil {
		status = strconv.Itoa(*req.Status)
	}

	var b strings.Builder
	b.WriteString("Explain this API interaction.\n\n")
	b.WriteString("Endpoint:\n")
	fmt.Fprintf(&b, "- Method: %s\n", ep.Method)
	fmt.Fprintf(&b, "- URL: %s\n", ep.URL())
	fmt.Fprintf(&b, "- Use case: %s\n", ep.UseCase)
	fmt.Fprintf(&b, "- Description: %s\n\n", ep.Description)
	fmt.Fprintf(&b, "Request body (JSON):\n%s\n\n", indentJSON(req.RequestBody))
	fmt.Fprintf(&b, "HTTP status (if real): %s\n\n", status)
	fmt.Fprintf(&b, "Response body (JSON):\n%s\n\n", indentJSON(req.ResponseBody))
	b.WriteString("Return JSON only.")

	return anthropic.Prompt{System: SystemPrompt, User: b.String()}
}

func indentJSON(body domain.Body) string {
	if body == nil {
		body = domain.Body{}
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
