package lambda

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
)

func newTestProxy() *Proxy {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/languages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"via": c.Request.URL.Path})
	})
	return NewProxy(r, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandle_V2Event(t *testing.T) {
	p := newTestProxy()
	event := `{
		"version": "2.0",
		"rawPath": "/api/languages",
		"headers": {"accept": "application/json"},
		"requestContext": {"domainName": "abc.lambda-url.us-east-1.on.aws", "http": {"method": "GET", "path": "/api/languages"}}
	}`

	out, err := p.Handle(context.Background(), json.RawMessage(event))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp, ok := out.(events.APIGatewayV2HTTPResponse)
	if !ok {
		t.Fatalf("expected a v2 response, got %T", out)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, "/api/languages") {
		t.Errorf("unexpected body %q", resp.Body)
	}
}

func TestHandle_V1Event(t *testing.T) {
	p := newTestProxy()
	event := `{"httpMethod": "GET", "path": "/api/languages", "headers": {}, "requestContext": {"domainName": "api.example.com", "stage": "prod"}}`

	out, err := p.Handle(context.Background(), json.RawMessage(event))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp, ok := out.(events.APIGatewayProxyResponse)
	if !ok {
		t.Fatalf("expected a v1 response, got %T", out)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHandle_ConsoleTestEvent(t *testing.T) {
	p := newTestProxy()

	out, err := p.Handle(context.Background(), json.RawMessage(`{"key1":"value1","key2":"value2"}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	resp := out.(events.APIGatewayV2HTTPResponse)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHandle_Unsupported(t *testing.T) {
	p := newTestProxy()

	tests := []struct {
		name  string
		event string
	}{
		{"unknown shape", `{"Records": []}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Handle(context.Background(), json.RawMessage(tt.event))
			if err == nil {
				t.Fatal("expected an error")
			}
			if resp := out.(events.APIGatewayV2HTTPResponse); resp.StatusCode != 500 {
				t.Errorf("expected 500, got %d", resp.StatusCode)
			}
		})
	}
}
