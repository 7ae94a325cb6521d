package explain

import (
	"fmt"
	"math/rand"

	"github.com/tjfontaine/api-explainer/internal/domain"
)

// Flag values attached to explanations.
const (
	FlagDemoMode        = "demo-mode"
	FlagLLMParseFailure = "llm-json-parse-failed"
)

// IDSource produces identifiers for demo objects when the response body has none.
type IDSource func() string

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomID returns "obj_" followed by six lowercase alphanumerics.
func RandomID() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return "obj_" + string(b)
}

// StaticID returns an IDSource that always yields id.
func StaticID(id string) IDSource {
	return func() string { return id }
}

// DemoExplainer synthesizes explanations locally without calling a model.
type DemoExplainer struct {
	ids IDSource
}

// NewDemoExplainer creates a DemoExplainer. A nil source uses RandomID.
func NewDemoExplainer(ids IDSource) *DemoExplainer {
	if ids == nil {
		ids = RandomID
	}
	return &DemoExplainer{ids: ids}
}

// Explain builds a deterministic explanation from req. It never fails.
func (d *DemoExplainer) Explain(req *domain.ExplainRequest) domain.ExplainResult {
	if req == nil {
		req = EmptyRequest()
	}
	ep := req.Endpoint

	amount, hasAmount := demoAmount(req.RequestBody)
	currency := domain.StringValue("USD")
	if c, ok := req.RequestBody.Lookup("currency"); ok && present(c) {
		currency = c
	}

	succeeded := true
	if req.Status != nil && *req.Status >= 400 {
		succeeded = false
	}

	var narrative string
	if succeeded {
		clause := ""
		if hasAmount {
			clause = fmt.Sprintf("$%.2f ", amount/100)
		}
		narrative = fmt.Sprintf("Demo mode: created a sample %sobject via %s %s.", clause, ep.Method, ep.Path)
	} else {
		narrative = fmt.Sprintf("Demo mode: simulated an error response for %s.", ep.Path)
	}

	facts := []domain.KeyValueFact{
		{Label: "endpoint", Value: domain.StringValue(ep.Method + " " + ep.URL())},
		{Label: "id", Value: d.demoID(req.ResponseBody)},
	}
	if hasAmount {
		facts = append(facts, domain.KeyValueFact{Label: "amount", Value: domain.NumberValue(amount)})
	}
	status := "succeeded"
	if !succeeded {
		status = "error"
	}
	facts = append(facts,
		domain.KeyValueFact{Label: "currency", Value: currency},
		domain.KeyValueFact{Label: "status", Value: domain.StringValue(status)},
	)

	last := domain.TimelineStep{Step: "response_ok", Detail: "Mocked success"}
	if !succeeded {
		last = domain.TimelineStep{Step: "response_error", Detail: "Mocked failure"}
	}

	return domain.ExplainResult{
		Narrative: narrative,
		KeyValues: facts,
		Timeline: []domain.TimelineStep{
			{Step: "request_sent", Detail: "Sent from DemoForge UI"},
			{Step: "api_simulated", Detail: "Demo mode enabled; no external call"},
			last,
		},
		Flags: []string{FlagDemoMode},
	}
}

func (d *DemoExplainer) demoID(body domain.Body) domain.FieldValue {
	for _, key := range []string{"id", "charge_id"} {
		if v, ok := body.Lookup(key); ok && present(v) {
			return v
		}
	}
	return domain.StringValue(d.ids())
}

// demoAmount returns the first of amount, total or price that holds a
// number or numeric string.
func demoAmount(body domain.Body) (float64, bool) {
	for _, key := range []string{"amount", "total", "price"} {
		v, ok := body.Lookup(key)
		if !ok || v.IsNull() {
			continue
		}
		if _, isBool := v.Bool(); isBool {
			return 0, false
		}
		return v.Float()
	}
	return 0, false
}

// present reports whether v carries something other than null or "".
func present(v domain.FieldValue) bool {
	if v.IsNull() {
		return false
	}
	if s, ok := v.Str(); ok && s == "" {
		return false
	}
	return true
}
