// Package lambda adapts the gin router to AWS Lambda events from API Gateway
// (REST and HTTP APIs), ALB and Lambda Function URLs.
package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
)

// Proxy dispatches raw Lambda events to the router
type Proxy struct {
	v1     *ginadapter.GinLambda
	v2     *ginadapter.GinLambdaV2
	logger *slog.Logger
}

// NewProxy wraps router for both payload format versions
func NewProxy(router *gin.Engine, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		v1:     ginadapter.New(router),
		v2:     ginadapter.NewV2(router),
		logger: logger,
	}
}

// eventProbe holds just enough of an event to tell the formats apart
type eventProbe struct {
	HTTPMethod     string `json:"httpMethod"`
	RequestContext struct {
		HTTP struct {
			Method string `json:"method"`
		} `json:"http"`
	} `json:"requestContext"`
	Key1 *json.RawMessage `json:"key1"`
}

// Handle is the Lambda entry point. Payload v2 (Function URLs, HTTP APIs) is
// tried first, then v1 (REST APIs, ALB).
func (p *Proxy) Handle(ctx context.Context, event json.RawMessage) (interface{}, error) {
	var probe eventProbe
	if err := json.Unmarshal(event, &probe); err != nil {
		p.logger.Error("Failed to parse Lambda event", "error", err)
		return textResponse(500, "Failed to process event"), err
	}

	switch {
	case probe.RequestContext.HTTP.Method != "":
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(event, &req); err != nil {
			return textResponse(500, "Failed to process event"), err
		}
		p.logger.Debug("Handling API Gateway v2 event", "method", req.RequestContext.HTTP.Method, "path", req.RawPath)
		return p.v2.ProxyWithContext(ctx, req)

	case probe.HTTPMethod != "":
		var req events.APIGatewayProxyRequest
		if err := json.Unmarshal(event, &req); err != nil {
			return textResponse(500, "Failed to process event"), err
		}
		p.logger.Debug("Handling API Gateway v1 event", "method", req.HTTPMethod, "path", req.Path)
		return p.v1.ProxyWithContext(ctx, req)

	case probe.Key1 != nil:
		// console test event
		return events.APIGatewayV2HTTPResponse{
			StatusCode: 200,
			Body:       `{"message":"codesnap Lambda function is working! Use a real HTTP request or API Gateway integration."}`,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}

	p.logger.Warn("Unsupported Lambda event", "event", string(event))
	return textResponse(500, "Unsupported event type - this function expects API Gateway or Lambda Function URL events"),
		fmt.Errorf("unsupported event type")
}

func textResponse(status int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}
