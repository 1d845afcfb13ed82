package transport

import (
	"encoding/json"
	"testing"

	"github.com/rivermark/ironlake/internal/op"
)

func TestParse_GatewayShape(t *testing.T) {
	raw := []byte(`{"httpMethod":"POST","path":"/","body":"{\"operation\":\"QUERY\"}"}`)
	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.Method != "POST" || req.Path != "/" {
		t.Errorf("got method=%q path=%q", req.Method, req.Path)
	}
	if string(req.Body) != `{"operation":"QUERY"}` {
		t.Errorf("Body = %q", req.Body)
	}
}

func TestParse_FunctionURLShape(t *testing.T) {
	raw := []byte(`{"rawPath":"/invoke","body":"{}","requestContext":{"http":{"method":"POST","path":"/invoke"}}}`)
	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.Method != "POST" || req.Path != "/invoke" {
		t.Errorf("got method=%q path=%q", req.Method, req.Path)
	}
}

func TestParse_FunctionURLShape_FallsBackToRawPath(t *testing.T) {
	raw := []byte(`{"rawPath":"/fallback","body":"{}","requestContext":{"http":{"method":"GET"}}}`)
	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.Path != "/fallback" {
		t.Errorf("Path = %q, want /fallback", req.Path)
	}
}

func TestParse_UnrecognizedShape(t *testing.T) {
	if _, err := Parse([]byte(`{"foo":"bar"}`)); err == nil {
		t.Fatal("expected an error for an unrecognized wire shape")
	}
}

func TestRequest_Envelope(t *testing.T) {
	req := &Request{Body: []byte(`{"request_id":"r1","operation":"QUERY","tenant_id":"t1"}`)}
	env, err := req.Envelope()
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.RequestID != "r1" || env.Operation != op.Query || env.TenantID != "t1" {
		t.Errorf("got %+v", env)
	}
}

func TestRequest_Envelope_InvalidJSON(t *testing.T) {
	req := &Request{Body: []byte(`not json`)}
	if _, err := req.Envelope(); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestFromOpResponse_Success(t *testing.T) {
	resp := &op.Response{RequestID: "r1", Result: map[string]interface{}{"rows": 3}}
	wire := FromOpResponse("r1", resp, 12)
	if wire.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", wire.StatusCode)
	}
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(wire.Body), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
}

func TestFromOpResponse_Failure(t *testing.T) {
	tests := []struct {
		code       op.Code
		wantStatus int
	}{
		{op.CodeTableNotFound, 400},
		{op.CodeInvalidFilter, 400},
		{op.CodeCatalogUnavailable, 503},
		{op.CodeEngineUnavailable, 503},
		{op.CodeInternal, 500},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			resp := &op.Response{RequestID: "r1", Code: tt.code, Error: "boom"}
			wire := FromOpResponse("r1", resp, 5)
			if wire.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", wire.StatusCode, tt.wantStatus)
			}
			var body map[string]interface{}
			if err := json.Unmarshal([]byte(wire.Body), &body); err != nil {
				t.Fatalf("unmarshal body: %v", err)
			}
			errObj, ok := body["error"].(map[string]interface{})
			if !ok {
				t.Fatalf("error = %v, want an object", body["error"])
			}
			if errObj["code"] != string(tt.code) {
				t.Errorf("error.code = %v, want %q", errObj["code"], tt.code)
			}
			if errObj["message"] != "boom" {
				t.Errorf("error.message = %v, want boom", errObj["message"])
			}
		})
	}
}

func TestFromError(t *testing.T) {
	wire := FromError("r1", errTest("boom"), 1)
	if wire.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", wire.StatusCode)
	}
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(wire.Body), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("error = %v, want an object", body["error"])
	}
	if errObj["message"] != "boom" {
		t.Errorf("error.message = %v, want boom", errObj["message"])
	}
	if errObj["code"] != string(op.CodeInternal) {
		t.Errorf("error.code = %v, want %q", errObj["code"], op.CodeInternal)
	}
}

func TestCORSPreamble(t *testing.T) {
	resp := CORSPreamble()
	if resp.StatusCode != 204 {
		t.Errorf("StatusCode = %d, want 204", resp.StatusCode)
	}
	if resp.Headers["Access-Control-Allow-Origin"] != "*" {
		t.Error("expected CORS origin header")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
