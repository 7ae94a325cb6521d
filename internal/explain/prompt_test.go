package explain

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	req := mustParse(t, `{
		"endpoint": {"method":"POST","baseUrl":"https://api.stripe.com","path":"/v1/charges","useCase":"Take a payment","description":"Creates a charge"},
		"requestBody": {"amount":1999,"currency":"usd"},
		"responseBody": {"id":"ch_1","paid":true},
		"status": 200
	}`)

	p := BuildPrompt(req)

	if p.System != SystemPrompt {
		t.Error("system prompt not set")
	}
	for _, want := range []string{
		"Explain this API interaction.",
		"- Method: POST",
		"- URL: https://api.stripe.com/v1/charges",
		"- Use case: Take a payment",
		"- Description: Creates a charge",
		"Request body (JSON):\n{\n  \"amount\": 1999,\n  \"currency\": \"usd\"\n}",
		"HTTP status (if real): 200",
		"Response body (JSON):\n{\n  \"id\": \"ch_1\",\n  \"paid\": true\n}",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("user message missing %q\n%s", want, p.User)
		}
	}
	if !strings.HasSuffix(p.User, "Return JSON only.") {
		t.Error("user message should end with the JSON instruction")
	}
}

func TestBuildPrompt_NoStatus(t *testing.T) {
	p := BuildPrompt(mustParse(t, `{}`))

	if !strings.Contains(p.User, "HTTP status (if real): N/A") {
		t.Errorf("expected N/A status:\n%s", p.User)
	}
	if !strings.Contains(p.User, "Request body (JSON):\n{}") {
		t.Errorf("expected empty request body:\n%s", p.User)
	}
}

func TestSystemPrompt_StatesContract(t *testing.T) {
	for _, want := range []string{"narrative", "key_values", "timeline", "flags", "3–6", "3–5", "Do not include any additional keys."} {
		if !strings.Contains(SystemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}
