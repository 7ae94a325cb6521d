package explain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tjfontaine/api-explainer/internal/domain"
)

// ParseRequest decodes a raw request body and validates it. Malformed JSON
// and non-object documents are reported as an issue on the empty path.
func ParseRequest(data []byte) (*domain.ExplainRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.ErrInvalidPayload([]domain.Issue{{
			Path:    "",
			Code:    domain.IssueInvalidJSON,
			Message: fmt.Sprintf("Malformed JSON: %v", err),
		}}).WithCause(err)
	}
	if dec.More() {
		return nil, domain.ErrInvalidPayload([]domain.Issue{{
			Path:    "",
			Code:    domain.IssueInvalidJSON,
			Message: "Unexpected data after JSON document",
		}})
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.ErrInvalidPayload([]domain.Issue{
			typeIssue("", "object", raw),
		})
	}
	return ValidateRequest(obj)
}

// ValidateRequest builds an ExplainRequest from a decoded JSON object. Every
// failing field is reported in a single InvalidPayload error. Unknown keys
// are ignored and a null field is treated as absent.
func ValidateRequest(raw map[string]any) (*domain.ExplainRequest, error) {
	v := &validator{}

	req := &domain.ExplainRequest{
		Endpoint:     v.endpoint(raw["endpoint"]),
		RequestBody:  v.body("requestBody", raw["requestBody"]),
		ResponseBody: v.body("responseBody", raw["responseBody"]),
		Status:       v.status(raw["status"]),
	}

	if len(v.issues) > 0 {
		return nil, domain.ErrInvalidPayload(v.issues)
	}
	return req, nil
}

// EmptyRequest is the context used when a demo call carries an unusable
// payload: default endpoint, empty bodies, status 200.
func EmptyRequest() *domain.ExplainRequest {
	status := 200
	return &domain.ExplainRequest{
		Endpoint:     defaultEndpoint(),
		RequestBody:  domain.Body{},
		ResponseBody: domain.Body{},
		Status:       &status,
	}
}

func defaultEndpoint() domain.EndpointDescriptor {
	return domain.EndpointDescriptor{
		Method:  domain.DefaultMethod,
		BaseURL: domain.DefaultBaseURL,
		Path:    domain.DefaultPath,
	}
}

type validator struct {
	issues []domain.Issue
}

func (v *validator) add(path, code, msg string) {
	v.issues = append(v.issues, domain.Issue{Path: path, Code: code, Message: msg})
}

func (v *validator) endpoint(raw any) domain.EndpointDescriptor {
	ep := defaultEndpoint()
	if raw == nil {
		return ep
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		v.issues = append(v.issues, typeIssue("endpoint", "object", raw))
		return ep
	}

	if method, ok := v.str(obj, "endpoint.method", "method"); ok && method != "" {
		upper := strings.ToUpper(method)
		if isMethod(upper) {
			ep.Method = upper
		} else {
			v.add("endpoint.method", domain.IssueInvalidValue,
				fmt.Sprintf("Invalid method %q, expected one of %s", method, strings.Join(domain.Methods, ", ")))
		}
	}
	if baseURL, ok := v.str(obj, "endpoint.baseUrl", "baseUrl"); ok && baseURL != "" {
		ep.BaseURL = baseURL
	}
	if path, ok := v.str(obj, "endpoint.path", "path"); ok && path != "" {
		ep.Path = path
	}
	if useCase, ok := v.str(obj, "endpoint.useCase", "useCase"); ok {
		ep.UseCase = useCase
	}
	if desc, ok := v.str(obj, "endpoint.description", "description"); ok {
		ep.Description = desc
	}
	return ep
}

// str reads an optional string field, recording an issue when it has another type.
func (v *validator) str(obj map[string]any, path, key string) (string, bool) {
	raw, present := obj[key]
	if !present || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		v.issues = append(v.issues, typeIssue(path, "string", raw))
		return "", false
	}
	return s, true
}

func (v *validator) body(path string, raw any) domain.Body {
	body := domain.Body{}
	if raw == nil {
		return body
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		v.issues = append(v.issues, typeIssue(path, "object", raw))
		return body
	}

	for key, val := range obj {
		if key == "" {
			v.add(path, domain.IssueInvalidValue, "Field names must not be empty")
			continue
		}
		body[key] = coerce(val)
	}
	return body
}

func (v *validator) status(raw any) *int {
	if raw == nil {
		return nil
	}

	var f float64
	switch n := raw.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return intPtr(int(i))
		}
		parsed, err := n.Float64()
		if err != nil {
			v.add("status", domain.IssueInvalidValue, "Expected integer, received "+n.String())
			return nil
		}
		f = parsed
	case float64:
		f = n
	case int:
		return intPtr(n)
	default:
		v.issues = append(v.issues, typeIssue("status", "number", raw))
		return nil
	}

	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		v.add("status", domain.IssueInvalidValue, fmt.Sprintf("Expected integer, received %v", f))
		return nil
	}
	return intPtr(int(f))
}

// coerce turns a decoded JSON value into a scalar. Objects and arrays become
// their compact JSON text.
func coerce(raw any) domain.FieldValue {
	if fv, ok := domain.ScalarOf(raw); ok {
		return fv
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return domain.StringValue(fmt.Sprint(raw))
	}
	return domain.StringValue(string(data))
}

func isMethod(m string) bool {
	for _, allowed := range domain.Methods {
		if m == allowed {
			return true
		}
	}
	return false
}

func typeIssue(path, expected string, got any) domain.Issue {
	return domain.Issue{
		Path:    path,
		Code:    domain.IssueInvalidType,
		Message: fmt.Sprintf("Expected %s, received %s", expected, jsonType(got)),
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func intPtr(i int) *int { return &i }
