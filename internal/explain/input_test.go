package explain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/api-explainer/internal/domain"
)

// fieldValues compares the scalar union by value.
var fieldValues = cmp.Comparer(func(a, b domain.FieldValue) bool { return a == b })

func TestParseRequest_Defaults(t *testing.T) {
	req, err := ParseRequest([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &domain.ExplainRequest{
		Endpoint: domain.EndpointDescriptor{
			Method:  "POST",
			BaseURL: "https://api.example.com",
			Path:    "/endpoint",
		},
		RequestBody:  domain.Body{},
		ResponseBody: domain.Body{},
	}
	if diff := cmp.Diff(want, req, fieldValues); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRequest_Normalizes(t *testing.T) {
	body := `{
		"endpoint": {"method": "patch", "baseUrl": "https://api.stripe.com", "path": "/v1/charges", "useCase": "refund"},
		"requestBody": {"amount": 1999, "live": false, "note": null, "meta": {"a": [1, 2]}},
		"responseBody": {"id": "ch_1"},
		"status": 201,
		"extra": "ignored"
	}`

	req, err := ParseRequest([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := 201
	want := &domain.ExplainRequest{
		Endpoint: domain.EndpointDescriptor{
			Method:  "PATCH",
			BaseURL: "https://api.stripe.com",
			Path:    "/v1/charges",
			UseCase: "refund",
		},
		RequestBody: domain.Body{
			"amount": domain.NumberValue(1999),
			"live":   domain.BoolValue(false),
			"note":   domain.NullValue(),
			"meta":   domain.StringValue(`{"a":[1,2]}`),
		},
		ResponseBody: domain.Body{"id": domain.StringValue("ch_1")},
		Status:       &status,
	}
	if diff := cmp.Diff(want, req, fieldValues); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	if _, ok := req.RequestBody.Lookup("note"); !ok {
		t.Error("null field should be present")
	}
	if _, ok := req.RequestBody.Lookup("absent"); ok {
		t.Error("absent field should not be present")
	}
}

func TestParseRequest_Issues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []domain.Issue
	}{
		{
			name: "malformed json",
			body: `{"endpoint":`,
			want: []domain.Issue{{Path: "", Code: domain.IssueInvalidJSON}},
		},
		{
			name: "array document",
			body: `[1,2]`,
			want: []domain.Issue{{Path: "", Code: domain.IssueInvalidType}},
		},
		{
			name: "request body is a string",
			body: `{"requestBody":"amount=1999"}`,
			want: []domain.Issue{{Path: "requestBody", Code: domain.IssueInvalidType}},
		},
		{
			name: "fractional status",
			body: `{"status":200.5}`,
			want: []domain.Issue{{Path: "status", Code: domain.IssueInvalidValue}},
		},
		{
			name: "string status",
			body: `{"status":"200"}`,
			want: []domain.Issue{{Path: "status", Code: domain.IssueInvalidType}},
		},
		{
			name: "unknown method",
			body: `{"endpoint":{"method":"FETCH"}}`,
			want: []domain.Issue{{Path: "endpoint.method", Code: domain.IssueInvalidValue}},
		},
		{
			name: "every failure collected",
			body: `{"endpoint":{"path":42,"baseUrl":true},"requestBody":[],"responseBody":"x","status":false}`,
			want: []domain.Issue{
				{Path: "endpoint.baseUrl", Code: domain.IssueInvalidType},
				{Path: "endpoint.path", Code: domain.IssueInvalidType},
				{Path: "requestBody", Code: domain.IssueInvalidType},
				{Path: "responseBody", Code: domain.IssueInvalidType},
				{Path: "status", Code: domain.IssueInvalidType},
			},
		},
	}

	ignoreMessage := cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Message"
	}, cmp.Ignore())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))

			var derr *domain.Error
			if !errors.As(err, &derr) {
				t.Fatalf("expected *domain.Error, got %v", err)
			}
			if derr.Type != domain.ErrorTypeInvalidPayload {
				t.Fatalf("Type = %s", derr.Type)
			}
			if derr.HTTPStatusCode() != 400 {
				t.Errorf("HTTPStatusCode() = %d", derr.HTTPStatusCode())
			}
			if diff := cmp.Diff(tt.want, derr.Issues, ignoreMessage); diff != "" {
				t.Errorf("issues mismatch (-want +got):\n%s", diff)
			}
			for _, is := range derr.Issues {
				if is.Message == "" {
					t.Errorf("issue %q has no message", is.Path)
				}
			}
		})
	}
}

func TestValidateRequest_NullsAreAbsent(t *testing.T) {
	req, err := ValidateRequest(map[string]any{
		"endpoint":    nil,
		"requestBody": nil,
		"status":      nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != nil {
		t.Errorf("Status = %v, want nil", *req.Status)
	}
	if req.Endpoint.Method != "POST" || len(req.RequestBody) != 0 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestValidateRequest_FloatStatus(t *testing.T) {
	req, err := ValidateRequest(map[string]any{"status": float64(404)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status == nil || *req.Status != 404 {
		t.Errorf("Status = %v", req.Status)
	}
}
